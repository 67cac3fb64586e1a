package ecosystems

import (
	"slices"
	"strings"

	"github.com/temirov/depbot/internal/repos/shared"
)

const (
	rootDirectoryConstant      = "/"
	directorySeparatorConstant = "/"
)

// Entry is one detected (ecosystem, directory) pair. Directory uses Dependabot form: "/" or "/path/to/dir".
type Entry struct {
	Ecosystem Name
	Directory string
}

// Ecosystem groups the directories detected for one ecosystem.
type Ecosystem struct {
	Name        Name
	Directories []string
	SortKey     int
}

// DetectionResult is the immutable outcome of detecting one repository.
type DetectionResult struct {
	Repository     shared.RepositoryIdentity
	Entries        []Entry
	Fingerprint    string
	ManifestDigest string
}

// NewDetectionResult builds a result with distinct entries ordered by ecosystem sort key, then directory.
func NewDetectionResult(repository shared.RepositoryIdentity, fingerprint string, manifestDigest string, entries []Entry) DetectionResult {
	distinctEntries := make([]Entry, 0, len(entries))
	seenEntries := make(map[Entry]struct{}, len(entries))
	for _, entry := range entries {
		normalizedEntry := Entry{Ecosystem: entry.Ecosystem, Directory: NormalizeDirectory(entry.Directory)}
		if _, seen := seenEntries[normalizedEntry]; seen {
			continue
		}
		seenEntries[normalizedEntry] = struct{}{}
		distinctEntries = append(distinctEntries, normalizedEntry)
	}
	slices.SortFunc(distinctEntries, CompareEntries)

	return DetectionResult{
		Repository:     repository,
		Entries:        distinctEntries,
		Fingerprint:    fingerprint,
		ManifestDigest: manifestDigest,
	}
}

// CompareEntries orders entries by ecosystem, then directory.
func CompareEntries(left Entry, right Entry) int {
	if ecosystemOrder := Compare(left.Ecosystem, right.Ecosystem); ecosystemOrder != 0 {
		return ecosystemOrder
	}
	return strings.Compare(left.Directory, right.Directory)
}

// Ecosystems groups entries by ecosystem in sort order.
func (result DetectionResult) Ecosystems() []Ecosystem {
	var grouped []Ecosystem
	for _, entry := range result.Entries {
		if len(grouped) == 0 || grouped[len(grouped)-1].Name != entry.Ecosystem {
			grouped = append(grouped, Ecosystem{Name: entry.Ecosystem, SortKey: SortKey(entry.Ecosystem)})
		}
		lastIndex := len(grouped) - 1
		grouped[lastIndex].Directories = append(grouped[lastIndex].Directories, entry.Directory)
	}
	return grouped
}

// Clone returns a deep copy so cached results cannot be altered through shared slices.
func (result DetectionResult) Clone() DetectionResult {
	clonedResult := result
	clonedResult.Entries = append([]Entry(nil), result.Entries...)
	return clonedResult
}

// NormalizeDirectory converts a repository-relative directory into Dependabot form.
func NormalizeDirectory(directory string) string {
	trimmedDirectory := strings.Trim(strings.TrimSpace(directory), directorySeparatorConstant)
	if len(trimmedDirectory) == 0 || trimmedDirectory == "." {
		return rootDirectoryConstant
	}
	return rootDirectoryConstant + trimmedDirectory
}
