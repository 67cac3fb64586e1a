package ecosystemcache

import (
	"sync"

	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/repos/shared"
)

// LookupOutcome distinguishes cache hits from misses.
type LookupOutcome int

// Lookup outcomes.
const (
	LookupMiss LookupOutcome = iota
	LookupHit
)

// LookupResult is the explicit outcome of Cache.Get.
type LookupResult struct {
	Outcome LookupOutcome
	Result  ecosystems.DetectionResult
}

// Hit reports whether the lookup found a result for the requested fingerprint.
func (lookup LookupResult) Hit() bool {
	return lookup.Outcome == LookupHit
}

// Cache maps repository identity to the detection computed for a fingerprint.
// It is safe for concurrent use.
type Cache struct {
	entriesGuard sync.Mutex
	entries      map[string]ecosystems.DetectionResult
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]ecosystems.DetectionResult)}
}

// Get returns a hit only when the stored fingerprint equals fingerprint.
func (cache *Cache) Get(repository shared.RepositoryIdentity, fingerprint string) LookupResult {
	cache.entriesGuard.Lock()
	defer cache.entriesGuard.Unlock()

	storedResult, exists := cache.entries[repository.String()]
	if !exists || storedResult.Fingerprint != fingerprint {
		return LookupResult{Outcome: LookupMiss}
	}
	return LookupResult{Outcome: LookupHit, Result: storedResult.Clone()}
}

// Put stores result under repository and fingerprint, replacing any previous entry.
func (cache *Cache) Put(repository shared.RepositoryIdentity, fingerprint string, result ecosystems.DetectionResult) {
	storedResult := result.Clone()
	storedResult.Repository = repository
	storedResult.Fingerprint = fingerprint

	cache.entriesGuard.Lock()
	defer cache.entriesGuard.Unlock()
	cache.entries[repository.String()] = storedResult
}

// Len reports the number of cached repositories.
func (cache *Cache) Len() int {
	cache.entriesGuard.Lock()
	defer cache.entriesGuard.Unlock()
	return len(cache.entries)
}

func (cache *Cache) snapshotEntries() map[string]ecosystems.DetectionResult {
	cache.entriesGuard.Lock()
	defer cache.entriesGuard.Unlock()

	copiedEntries := make(map[string]ecosystems.DetectionResult, len(cache.entries))
	for key, result := range cache.entries {
		copiedEntries[key] = result.Clone()
	}
	return copiedEntries
}
