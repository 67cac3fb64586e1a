package orgsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	"github.com/temirov/depbot/internal/ecosystems"
)

const (
	treeTruncatedMessageConstant = "repository tree truncated, detection may be incomplete"
	fingerprintSeparatorConstant = "\n"
)

// hostTreeSource exposes one repository reference to the detector.
type hostTreeSource struct {
	host       RepositoryHost
	logger     *zap.Logger
	repository string
	reference  string
}

func (source hostTreeSource) ListFiles(executionContext context.Context) ([]ecosystems.TreeEntry, error) {
	snapshot, listError := source.host.ListTree(executionContext, source.repository, source.reference)
	if listError != nil {
		return nil, listError
	}
	if snapshot.Truncated {
		source.logger.Warn(treeTruncatedMessageConstant, zap.String(logFieldRepositoryConstant, source.repository))
	}
	entries := make([]ecosystems.TreeEntry, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		entries = append(entries, ecosystems.TreeEntry{Path: entry.Path, SHA: entry.SHA})
	}
	return entries, nil
}

func (source hostTreeSource) ReadFile(executionContext context.Context, path string) ([]byte, error) {
	fileContent, readError := source.host.GetFileContent(executionContext, source.repository, path, source.reference)
	if readError != nil {
		return nil, readError
	}
	return fileContent.Content, nil
}

// Fingerprint derives the ecosystem cache key of a repository from its default branch, its last
// push, and the digest of the detection exclusions.
func Fingerprint(defaultBranch string, pushedAt string, exclusionsDigest string) string {
	digest := sha256.Sum256([]byte(defaultBranch + fingerprintSeparatorConstant + pushedAt + fingerprintSeparatorConstant + exclusionsDigest))
	return hex.EncodeToString(digest[:])
}
