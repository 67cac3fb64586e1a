package ecosystems

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"github.com/temirov/depbot/internal/repos/shared"
)

const (
	detectionCompletedMessageConstant = "ecosystems detected"
	logFieldRepositoryConstant        = "repository"
	logFieldEntryCountConstant        = "entry_count"
	logFieldManifestCountConstant     = "manifest_count"
	digestLineTemplateConstant        = "%s %s\n"
	doublestarMetaCharactersConstant  = "*?[{"
)

// DefaultExclusionPatterns lists gitignore-syntax patterns for vendored and generated trees.
var DefaultExclusionPatterns = []string{
	"**/node_modules/",
	"**/vendor/",
	"**/.git/",
	"**/third_party/",
}

// TreeEntry is one file of a repository tree snapshot.
type TreeEntry struct {
	Path string
	SHA  string
}

// TreeSource gives the detector read access to a repository snapshot.
type TreeSource interface {
	ListFiles(executionContext context.Context) ([]TreeEntry, error)
	ReadFile(executionContext context.Context, filePath string) ([]byte, error)
}

type manifestRule struct {
	ecosystem     Name
	pattern       string
	contentMarker string
}

var manifestRules = []manifestRule{
	{ecosystem: GitHubActions, pattern: ".github/workflows/*.{yml,yaml}"},
	{ecosystem: NPM, pattern: "**/package.json"},
	{ecosystem: Cargo, pattern: "**/Cargo.lock"},
	{ecosystem: Cargo, pattern: "**/Cargo.toml", contentMarker: "[workspace]"},
	{ecosystem: GoModules, pattern: "**/go.mod"},
	{ecosystem: Pip, pattern: "**/requirements.txt"},
	{ecosystem: Pip, pattern: "**/pyproject.toml"},
	{ecosystem: UV, pattern: "**/uv.lock"},
	{ecosystem: UV, pattern: "**/pyproject.toml", contentMarker: "[tool.uv"},
	{ecosystem: Bundler, pattern: "**/Gemfile.lock"},
	{ecosystem: Docker, pattern: "**/Dockerfile"},
	{ecosystem: Terraform, pattern: "**/.terraform.lock.hcl"},
	{ecosystem: GitSubmodule, pattern: ".gitmodules"},
}

// Detector maps manifest files to ecosystems.
type Detector struct {
	logger           *zap.Logger
	exclusions       *ignore.GitIgnore
	exclusionsDigest string
}

// NewDetector builds a Detector that skips the default exclusions plus extraExclusions.
func NewDetector(logger *zap.Logger, extraExclusions []string) (*Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	exclusionLines := append([]string(nil), DefaultExclusionPatterns...)
	for _, exclusion := range extraExclusions {
		trimmedExclusion := strings.TrimSpace(exclusion)
		if len(trimmedExclusion) == 0 {
			continue
		}
		if strings.ContainsAny(trimmedExclusion, doublestarMetaCharactersConstant) && !doublestar.ValidatePattern(strings.TrimSuffix(trimmedExclusion, "/")) {
			return nil, fmt.Errorf(invalidExclusionTemplateConstant, trimmedExclusion, doublestar.ErrBadPattern)
		}
		exclusionLines = append(exclusionLines, trimmedExclusion)
	}

	for _, rule := range manifestRules {
		if !doublestar.ValidatePattern(rule.pattern) {
			return nil, fmt.Errorf(invalidManifestTemplateConstant, rule.pattern, rule.ecosystem, doublestar.ErrBadPattern)
		}
	}

	exclusionsDigest := sha256.Sum256([]byte(strings.Join(exclusionLines, "\n")))
	return &Detector{
		logger:           logger,
		exclusions:       ignore.CompileIgnoreLines(exclusionLines...),
		exclusionsDigest: hex.EncodeToString(exclusionsDigest[:]),
	}, nil
}

// ExclusionsDigest identifies the exclusion patterns in effect. Detectors built with the same
// patterns in the same order share a digest.
func (detector *Detector) ExclusionsDigest() string {
	return detector.exclusionsDigest
}

// Detect lists the tree once and reads only manifests whose classification depends on content.
// A repository without manifests yields an empty result.
func (detector *Detector) Detect(executionContext context.Context, repository shared.RepositoryIdentity, fingerprint string, tree TreeSource) (DetectionResult, error) {
	treeEntries, listError := tree.ListFiles(executionContext)
	if listError != nil {
		return DetectionResult{}, DetectionIOError{Repository: repository.String(), Cause: listError}
	}

	sortedEntries := append([]TreeEntry(nil), treeEntries...)
	slices.SortFunc(sortedEntries, func(left TreeEntry, right TreeEntry) int {
		return strings.Compare(left.Path, right.Path)
	})

	contentCache := make(map[string][]byte)
	readContent := func(filePath string) ([]byte, error) {
		if cachedContent, cached := contentCache[filePath]; cached {
			return cachedContent, nil
		}
		content, readError := tree.ReadFile(executionContext, filePath)
		if readError != nil {
			return nil, DetectionIOError{Repository: repository.String(), Path: filePath, Cause: readError}
		}
		contentCache[filePath] = content
		return content, nil
	}

	var detectedEntries []Entry
	var manifestEntries []TreeEntry
	for _, treeEntry := range sortedEntries {
		entryPath := strings.TrimPrefix(treeEntry.Path, "/")
		if detector.exclusions.MatchesPath(entryPath) {
			continue
		}

		isManifest := false
		for _, rule := range manifestRules {
			matched, matchError := doublestar.Match(rule.pattern, entryPath)
			if matchError != nil || !matched {
				continue
			}
			isManifest = true

			if len(rule.contentMarker) > 0 {
				content, readError := readContent(entryPath)
				if readError != nil {
					return DetectionResult{}, readError
				}
				if !bytes.Contains(content, []byte(rule.contentMarker)) {
					continue
				}
			}

			detectedEntries = append(detectedEntries, Entry{Ecosystem: rule.ecosystem, Directory: manifestDirectory(rule.ecosystem, entryPath)})
		}
		if isManifest {
			manifestEntries = append(manifestEntries, TreeEntry{Path: entryPath, SHA: treeEntry.SHA})
		}
	}

	result := NewDetectionResult(repository, fingerprint, manifestDigest(manifestEntries), withoutUVClaimedPip(detectedEntries))
	detector.logger.Debug(
		detectionCompletedMessageConstant,
		zap.String(logFieldRepositoryConstant, repository.String()),
		zap.Int(logFieldEntryCountConstant, len(result.Entries)),
		zap.Int(logFieldManifestCountConstant, len(manifestEntries)),
	)
	return result, nil
}

func manifestDirectory(ecosystem Name, manifestPath string) string {
	if definition, known := Lookup(ecosystem); known && definition.RootOnly {
		return rootDirectoryConstant
	}
	return NormalizeDirectory(path.Dir(manifestPath))
}

// withoutUVClaimedPip drops pip entries in directories that uv manages.
func withoutUVClaimedPip(entries []Entry) []Entry {
	uvDirectories := make(map[string]struct{})
	for _, entry := range entries {
		if entry.Ecosystem == UV {
			uvDirectories[entry.Directory] = struct{}{}
		}
	}

	filteredEntries := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Ecosystem == Pip {
			if _, claimed := uvDirectories[entry.Directory]; claimed {
				continue
			}
		}
		filteredEntries = append(filteredEntries, entry)
	}
	return filteredEntries
}

func manifestDigest(manifestEntries []TreeEntry) string {
	hasher := sha256.New()
	for _, manifestEntry := range manifestEntries {
		fmt.Fprintf(hasher, digestLineTemplateConstant, manifestEntry.Path, manifestEntry.SHA)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
