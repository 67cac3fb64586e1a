package dependabot

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/temirov/depbot/internal/overrides"
)

const (
	// ConfigurationPath is the repository path of the Dependabot configuration.
	ConfigurationPath = ".github/dependabot.yml"
	// DocumentVersion is the only supported Dependabot configuration version.
	DocumentVersion = 2

	generatedHeaderConstant = "# This file is generated by depbot. DO NOT EDIT.\n" +
		"# Change the override rules and run depbot sync instead.\n"
	renderIndentConstant = 2
)

// ScheduleEntry is the schedule block of an update entry.
type ScheduleEntry struct {
	Interval string `yaml:"interval"`
	Day      string `yaml:"day,omitempty"`
	Time     string `yaml:"time,omitempty"`
	Timezone string `yaml:"timezone,omitempty"`
	Cronjob  string `yaml:"cronjob,omitempty"`
}

// CooldownEntry is the cooldown block of an update entry.
type CooldownEntry struct {
	DefaultDays     int      `yaml:"default-days,omitempty"`
	SemverMajorDays int      `yaml:"semver-major-days,omitempty"`
	SemverMinorDays int      `yaml:"semver-minor-days,omitempty"`
	SemverPatchDays int      `yaml:"semver-patch-days,omitempty"`
	Include         []string `yaml:"include,omitempty"`
	Exclude         []string `yaml:"exclude,omitempty"`
}

// BranchNameEntry is the pull-request-branch-name block of an update entry.
type BranchNameEntry struct {
	Separator string `yaml:"separator"`
}

// UpdateEntry is one element of the updates list.
type UpdateEntry struct {
	PackageEcosystem      string                         `yaml:"package-ecosystem"`
	Directory             string                         `yaml:"directory,omitempty"`
	Directories           []string                       `yaml:"directories,omitempty"`
	Schedule              ScheduleEntry                  `yaml:"schedule"`
	Cooldown              *CooldownEntry                 `yaml:"cooldown,omitempty"`
	Groups                map[string]overrides.GroupRule `yaml:"groups,omitempty"`
	TargetBranch          string                         `yaml:"target-branch,omitempty"`
	Registries            []string                       `yaml:"registries,omitempty"`
	Allow                 []overrides.DependencyRule     `yaml:"allow,omitempty"`
	Ignore                []overrides.DependencyRule     `yaml:"ignore,omitempty"`
	CommitMessage         *overrides.CommitMessage       `yaml:"commit-message,omitempty"`
	PullRequestBranchName *BranchNameEntry               `yaml:"pull-request-branch-name,omitempty"`
	Labels                []string                       `yaml:"labels,omitempty"`
	Assignees             []string                       `yaml:"assignees,omitempty"`
	Reviewers             []string                       `yaml:"reviewers,omitempty"`
	Milestone             *int                           `yaml:"milestone,omitempty"`
	OpenPullRequestsLimit *int                           `yaml:"open-pull-requests-limit,omitempty"`
	RebaseStrategy        string                         `yaml:"rebase-strategy,omitempty"`
	Vendor                *bool                          `yaml:"vendor,omitempty"`
	VersioningStrategy    string                         `yaml:"versioning-strategy,omitempty"`
	InsecureCodeExecution string                         `yaml:"insecure-external-code-execution,omitempty"`
}

// EntryDirectories lists the directories an entry covers.
func (entry UpdateEntry) EntryDirectories() []string {
	if len(entry.Directories) > 0 {
		return entry.Directories
	}
	return []string{entry.Directory}
}

// ConfigDocument is a Dependabot configuration, either synthesized or parsed from a repository.
type ConfigDocument struct {
	Version    int                           `yaml:"version"`
	Registries map[string]overrides.Registry `yaml:"registries,omitempty"`
	Updates    []UpdateEntry                 `yaml:"updates"`

	content []byte
}

// Ecosystems lists the distinct package ecosystems in entry order.
func (document ConfigDocument) Ecosystems() []string {
	var ecosystemNames []string
	seenEcosystems := make(map[string]struct{}, len(document.Updates))
	for _, entry := range document.Updates {
		if _, seen := seenEcosystems[entry.PackageEcosystem]; seen {
			continue
		}
		seenEcosystems[entry.PackageEcosystem] = struct{}{}
		ecosystemNames = append(ecosystemNames, entry.PackageEcosystem)
	}
	return ecosystemNames
}

// Content returns the committed bytes of a parsed document or renders a synthesized one.
func (document ConfigDocument) Content() ([]byte, error) {
	if document.content != nil {
		return bytes.Clone(document.content), nil
	}
	return Render(document)
}

// Render serializes the document with the generated-file header and two-space indentation.
func Render(document ConfigDocument) ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteString(generatedHeaderConstant)

	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(renderIndentConstant)
	if encodeError := encoder.Encode(document); encodeError != nil {
		return nil, encodeError
	}
	if closeError := encoder.Close(); closeError != nil {
		return nil, closeError
	}
	return buffer.Bytes(), nil
}

// ParseDocument reads a committed Dependabot configuration.
func ParseDocument(content []byte) (ConfigDocument, error) {
	var document ConfigDocument
	if decodeError := yaml.Unmarshal(content, &document); decodeError != nil {
		return ConfigDocument{}, DocumentParseError{Cause: decodeError}
	}
	document.content = bytes.Clone(content)
	if document.content == nil {
		document.content = []byte{}
	}
	return document, nil
}

// Canonicalize re-serializes any YAML content with comments removed and mapping keys sorted.
func Canonicalize(content []byte) ([]byte, error) {
	var parsedContent any
	if decodeError := yaml.Unmarshal(content, &parsedContent); decodeError != nil {
		return nil, DocumentParseError{Cause: decodeError}
	}
	canonicalContent, encodeError := yaml.Marshal(parsedContent)
	if encodeError != nil {
		return nil, encodeError
	}
	return canonicalContent, nil
}

// Equal reports whether two documents have the same canonical form.
func Equal(left ConfigDocument, right ConfigDocument) (bool, error) {
	leftCanonical, leftError := canonicalDocument(left)
	if leftError != nil {
		return false, leftError
	}
	rightCanonical, rightError := canonicalDocument(right)
	if rightError != nil {
		return false, rightError
	}
	return bytes.Equal(leftCanonical, rightCanonical), nil
}

func canonicalDocument(document ConfigDocument) ([]byte, error) {
	content, contentError := document.Content()
	if contentError != nil {
		return nil, contentError
	}
	return Canonicalize(content)
}
