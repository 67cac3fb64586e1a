package ecosystemcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	pathutils "github.com/temirov/depbot/internal/utils/path"
)

const (
	objectStoreSchemePrefixConstant       = "s3://"
	objectStoreLocationTemplateConstant   = "s3://%s/%s"
	objectNotFoundCodeConstant            = "NoSuchKey"
	bucketNotFoundCodeConstant            = "NoSuchBucket"
	snapshotContentTypeConstant           = "application/json"
	defaultObjectStoreEndpointConstant    = "s3.amazonaws.com"
	defaultObjectStoreRegionConstant      = "us-east-1"
	snapshotDirectoryPermissionsConstant  = 0o755
	snapshotFilePermissionsConstant       = 0o644
	snapshotTemporarySuffixConstant       = ".tmp"
	snapshotNotFoundMessageConstant       = "ecosystem cache snapshot not found"
	emptyLocationMessageConstant          = "ecosystem cache location is empty"
	invalidObjectLocationTemplateConstant = "ecosystem cache location %q must be s3://bucket/key"
	objectClientCreationTemplateConstant  = "create object store client: %w"
	objectReadErrorTemplateConstant       = "read %s: %w"
	objectWriteErrorTemplateConstant      = "write %s: %w"
	fileDirectoryCreationTemplateConstant = "create snapshot directory %s: %w"
)

var (
	// ErrSnapshotNotFound indicates the store holds no snapshot yet.
	ErrSnapshotNotFound = errors.New(snapshotNotFoundMessageConstant)
	// ErrEmptyLocation indicates no cache location was configured.
	ErrEmptyLocation = errors.New(emptyLocationMessageConstant)
)

// SnapshotStore reads and writes the serialized cache.
type SnapshotStore interface {
	Read(executionContext context.Context) ([]byte, error)
	Write(executionContext context.Context, content []byte) error
	Location() string
}

// ObjectStoreConfiguration describes how to reach an S3-compatible endpoint.
// Empty credentials fall back to the standard AWS environment variables.
type ObjectStoreConfiguration struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// OpenSnapshotStore selects a store for location: s3://bucket/key for object storage, any other value
// for a local file path.
func OpenSnapshotStore(location string, objectStoreConfiguration ObjectStoreConfiguration, homeExpander *pathutils.HomeExpander) (SnapshotStore, error) {
	trimmedLocation := strings.TrimSpace(location)
	if len(trimmedLocation) == 0 {
		return nil, ErrEmptyLocation
	}
	if !strings.HasPrefix(trimmedLocation, objectStoreSchemePrefixConstant) {
		return NewFileSnapshotStore(homeExpander.Expand(trimmedLocation)), nil
	}

	bucket, key, parsed := strings.Cut(strings.TrimPrefix(trimmedLocation, objectStoreSchemePrefixConstant), "/")
	if !parsed || len(bucket) == 0 || len(strings.Trim(key, "/")) == 0 {
		return nil, fmt.Errorf(invalidObjectLocationTemplateConstant, trimmedLocation)
	}
	return NewMinioObjectSnapshotStore(objectStoreConfiguration, bucket, strings.Trim(key, "/"))
}

// FileSnapshotStore keeps the snapshot in a local file.
type FileSnapshotStore struct {
	filePath string
}

// NewFileSnapshotStore constructs a file-backed store.
func NewFileSnapshotStore(filePath string) *FileSnapshotStore {
	return &FileSnapshotStore{filePath: filePath}
}

// Location returns the file path.
func (store *FileSnapshotStore) Location() string {
	return store.filePath
}

// Read returns the file content or ErrSnapshotNotFound.
func (store *FileSnapshotStore) Read(context.Context) ([]byte, error) {
	content, readError := os.ReadFile(store.filePath)
	if errors.Is(readError, fs.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	return content, readError
}

// Write replaces the file through a temporary sibling so readers never see a partial snapshot.
func (store *FileSnapshotStore) Write(_ context.Context, content []byte) error {
	directory := filepath.Dir(store.filePath)
	if mkdirError := os.MkdirAll(directory, snapshotDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(fileDirectoryCreationTemplateConstant, directory, mkdirError)
	}
	temporaryPath := store.filePath + snapshotTemporarySuffixConstant
	if writeError := os.WriteFile(temporaryPath, content, snapshotFilePermissionsConstant); writeError != nil {
		return writeError
	}
	return os.Rename(temporaryPath, store.filePath)
}

// ObjectReadWriter is the subset of object storage operations the snapshot store uses.
type ObjectReadWriter interface {
	ReadObject(executionContext context.Context, bucket string, key string) ([]byte, error)
	WriteObject(executionContext context.Context, bucket string, key string, content []byte) error
}

// ObjectSnapshotStore keeps the snapshot as a single object in a bucket.
type ObjectSnapshotStore struct {
	objects ObjectReadWriter
	bucket  string
	key     string
}

// NewObjectSnapshotStore constructs a store over an arbitrary object client.
func NewObjectSnapshotStore(objects ObjectReadWriter, bucket string, key string) *ObjectSnapshotStore {
	return &ObjectSnapshotStore{objects: objects, bucket: bucket, key: key}
}

// NewMinioObjectSnapshotStore constructs a store backed by minio-go.
func NewMinioObjectSnapshotStore(configuration ObjectStoreConfiguration, bucket string, key string) (*ObjectSnapshotStore, error) {
	endpoint := strings.TrimSpace(configuration.Endpoint)
	if len(endpoint) == 0 {
		endpoint = defaultObjectStoreEndpointConstant
	}
	region := strings.TrimSpace(configuration.Region)
	if len(region) == 0 {
		region = defaultObjectStoreRegionConstant
	}

	objectCredentials := credentials.NewEnvAWS()
	if len(strings.TrimSpace(configuration.AccessKeyID)) > 0 {
		objectCredentials = credentials.NewStaticV4(strings.TrimSpace(configuration.AccessKeyID), strings.TrimSpace(configuration.SecretAccessKey), "")
	}

	client, clientError := minio.New(endpoint, &minio.Options{
		Creds:  objectCredentials,
		Secure: configuration.UseSSL,
		Region: region,
	})
	if clientError != nil {
		return nil, fmt.Errorf(objectClientCreationTemplateConstant, clientError)
	}
	return NewObjectSnapshotStore(minioObjectReadWriter{client: client}, bucket, key), nil
}

// Location returns the s3:// URL of the snapshot object.
func (store *ObjectSnapshotStore) Location() string {
	return fmt.Sprintf(objectStoreLocationTemplateConstant, store.bucket, store.key)
}

// Read returns the object content or ErrSnapshotNotFound.
func (store *ObjectSnapshotStore) Read(executionContext context.Context) ([]byte, error) {
	content, readError := store.objects.ReadObject(executionContext, store.bucket, store.key)
	if readError != nil {
		if errors.Is(readError, ErrSnapshotNotFound) {
			return nil, readError
		}
		return nil, fmt.Errorf(objectReadErrorTemplateConstant, store.Location(), readError)
	}
	return content, nil
}

// Write uploads the snapshot object.
func (store *ObjectSnapshotStore) Write(executionContext context.Context, content []byte) error {
	if writeError := store.objects.WriteObject(executionContext, store.bucket, store.key, content); writeError != nil {
		return fmt.Errorf(objectWriteErrorTemplateConstant, store.Location(), writeError)
	}
	return nil
}

type minioObjectReadWriter struct {
	client *minio.Client
}

func (readWriter minioObjectReadWriter) ReadObject(executionContext context.Context, bucket string, key string) ([]byte, error) {
	object, getError := readWriter.client.GetObject(executionContext, bucket, key, minio.GetObjectOptions{})
	if getError != nil {
		return nil, translateObjectError(getError)
	}
	defer object.Close()

	content, readError := io.ReadAll(object)
	if readError != nil {
		return nil, translateObjectError(readError)
	}
	return content, nil
}

func (readWriter minioObjectReadWriter) WriteObject(executionContext context.Context, bucket string, key string, content []byte) error {
	_, putError := readWriter.client.PutObject(executionContext, bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: snapshotContentTypeConstant,
	})
	return putError
}

func translateObjectError(objectError error) error {
	switch minio.ToErrorResponse(objectError).Code {
	case objectNotFoundCodeConstant, bucketNotFoundCodeConstant:
		return ErrSnapshotNotFound
	default:
		return objectError
	}
}
