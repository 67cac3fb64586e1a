package ecosystemcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/repos/shared"
)

const (
	snapshotAbsentMessageConstant       = "ecosystem cache snapshot absent, starting empty"
	snapshotUnreadableMessageConstant   = "ecosystem cache snapshot unreadable, starting empty"
	snapshotCorruptMessageConstant      = "ecosystem cache snapshot corrupt, starting empty"
	snapshotEntrySkippedMessageConstant = "ecosystem cache snapshot entry skipped"
	snapshotLoadedMessageConstant       = "ecosystem cache snapshot loaded"
	logFieldStoreConstant               = "store"
	logFieldEntryCountConstant          = "entry_count"
	logFieldRepositoryKeyConstant       = "repository"
	snapshotEncodeErrorTemplateConstant = "encode ecosystem cache snapshot: %w"
	snapshotWriteErrorTemplateConstant  = "write ecosystem cache snapshot to %s: %w"
	snapshotIndentPrefixConstant        = ""
	snapshotIndentValueConstant         = "  "
)

type snapshotEcosystem struct {
	Name        string   `json:"name"`
	Directories []string `json:"directories"`
}

type snapshotEntry struct {
	Fingerprint    string              `json:"fingerprint"`
	ManifestDigest string              `json:"manifest_digest"`
	Ecosystems     []snapshotEcosystem `json:"ecosystems"`
}

// Load reads a snapshot from store. Absent, unreadable, or corrupt snapshots yield an empty cache
// and a warning; Load never fails.
func Load(executionContext context.Context, store SnapshotStore, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := New()
	if store == nil {
		return cache
	}

	storeField := zap.String(logFieldStoreConstant, store.Location())
	content, readError := store.Read(executionContext)
	if readError != nil {
		if errors.Is(readError, ErrSnapshotNotFound) {
			logger.Warn(snapshotAbsentMessageConstant, storeField)
		} else {
			logger.Warn(snapshotUnreadableMessageConstant, storeField, zap.Error(readError))
		}
		return cache
	}

	var snapshot map[string]snapshotEntry
	if decodeError := json.Unmarshal(content, &snapshot); decodeError != nil {
		logger.Warn(snapshotCorruptMessageConstant, storeField, zap.Error(decodeError))
		return cache
	}

	for repositoryKey, entry := range snapshot {
		repository, identityError := shared.ParseRepositoryIdentity(repositoryKey)
		if identityError != nil {
			logger.Warn(snapshotEntrySkippedMessageConstant, storeField, zap.String(logFieldRepositoryKeyConstant, repositoryKey), zap.Error(identityError))
			continue
		}

		var detectedEntries []ecosystems.Entry
		for _, ecosystem := range entry.Ecosystems {
			for _, directory := range ecosystem.Directories {
				detectedEntries = append(detectedEntries, ecosystems.Entry{Ecosystem: ecosystems.Name(ecosystem.Name), Directory: directory})
			}
		}
		cache.Put(repository, entry.Fingerprint, ecosystems.NewDetectionResult(repository, entry.Fingerprint, entry.ManifestDigest, detectedEntries))
	}

	logger.Debug(snapshotLoadedMessageConstant, storeField, zap.Int(logFieldEntryCountConstant, cache.Len()))
	return cache
}

// Save writes the cache to store as indented JSON with sorted keys.
func (cache *Cache) Save(executionContext context.Context, store SnapshotStore) error {
	snapshot := make(map[string]snapshotEntry)
	for repositoryKey, result := range cache.snapshotEntries() {
		entry := snapshotEntry{
			Fingerprint:    result.Fingerprint,
			ManifestDigest: result.ManifestDigest,
			Ecosystems:     []snapshotEcosystem{},
		}
		for _, ecosystem := range result.Ecosystems() {
			entry.Ecosystems = append(entry.Ecosystems, snapshotEcosystem{Name: string(ecosystem.Name), Directories: ecosystem.Directories})
		}
		snapshot[repositoryKey] = entry
	}

	content, encodeError := json.MarshalIndent(snapshot, snapshotIndentPrefixConstant, snapshotIndentValueConstant)
	if encodeError != nil {
		return fmt.Errorf(snapshotEncodeErrorTemplateConstant, encodeError)
	}
	if writeError := store.Write(executionContext, append(content, '\n')); writeError != nil {
		return fmt.Errorf(snapshotWriteErrorTemplateConstant, store.Location(), writeError)
	}
	return nil
}
