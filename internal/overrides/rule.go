package overrides

import (
	"reflect"
)

const mapstructureTagNameConstant = "mapstructure"

// GroupRule mirrors a Dependabot groups entry.
type GroupRule struct {
	AppliesTo       string   `mapstructure:"applies-to" yaml:"applies-to,omitempty"`
	DependencyType  string   `mapstructure:"dependency-type" yaml:"dependency-type,omitempty"`
	Patterns        []string `mapstructure:"patterns" yaml:"patterns,omitempty"`
	ExcludePatterns []string `mapstructure:"exclude-patterns" yaml:"exclude-patterns,omitempty"`
	UpdateTypes     []string `mapstructure:"update-types" yaml:"update-types,omitempty"`
}

// DependencyRule mirrors a Dependabot allow or ignore entry. A bare string in the rule source
// is read as a dependency-name pattern.
type DependencyRule struct {
	DependencyName string   `mapstructure:"dependency-name" yaml:"dependency-name,omitempty"`
	DependencyType string   `mapstructure:"dependency-type" yaml:"dependency-type,omitempty"`
	Versions       []string `mapstructure:"versions" yaml:"versions,omitempty"`
	UpdateTypes    []string `mapstructure:"update-types" yaml:"update-types,omitempty"`
}

// CommitMessage mirrors a Dependabot commit-message block.
type CommitMessage struct {
	Prefix            string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	PrefixDevelopment string `mapstructure:"prefix-development" yaml:"prefix-development,omitempty"`
	Include           string `mapstructure:"include" yaml:"include,omitempty"`
}

// Registry is a top-level private registry definition emitted verbatim.
type Registry map[string]any

// Rule holds the optional settings of one scope. Every field is a pointer, slice, or map;
// nil means the scope does not set it.
type Rule struct {
	ScheduleInterval      *string              `mapstructure:"schedule-interval"`
	ScheduleDay           *string              `mapstructure:"schedule-day"`
	ScheduleTime          *string              `mapstructure:"schedule-time"`
	ScheduleTimezone      *string              `mapstructure:"schedule-timezone"`
	ScheduleCronjob       *string              `mapstructure:"schedule-cronjob"`
	Grouping              map[string]GroupRule `mapstructure:"grouping"`
	TargetBranch          *string              `mapstructure:"target-branch"`
	Reviewers             []string             `mapstructure:"reviewers"`
	Assignees             []string             `mapstructure:"assignees"`
	Labels                []string             `mapstructure:"labels"`
	Allow                 []DependencyRule     `mapstructure:"allow"`
	Ignore                []DependencyRule     `mapstructure:"ignore"`
	CommitMessage         *CommitMessage       `mapstructure:"commit-message"`
	OpenPullRequestsLimit *int                 `mapstructure:"open-pull-requests-limit"`
	Milestone             *int                 `mapstructure:"milestone"`
	UseRegistries         []string             `mapstructure:"use-registries"`
	RebaseStrategy        *string              `mapstructure:"rebase-strategy"`
	Vendor                *bool                `mapstructure:"vendor"`
	VersioningStrategy    *string              `mapstructure:"versioning-strategy"`
	CooldownDays          *int                 `mapstructure:"cooldown-days"`
	CooldownMajorDays     *int                 `mapstructure:"cooldown-semver-major-days"`
	CooldownMinorDays     *int                 `mapstructure:"cooldown-semver-minor-days"`
	CooldownPatchDays     *int                 `mapstructure:"cooldown-semver-patch-days"`
	CooldownInclude       []string             `mapstructure:"cooldown-include"`
	CooldownExclude       []string             `mapstructure:"cooldown-exclude"`
	InsecureCodeExecution *string              `mapstructure:"insecure-external-code-execution"`
	BranchNameSeparator   *string              `mapstructure:"pull-request-branch-name-separator"`
	Enabled               *bool                `mapstructure:"enabled"`
	Directories           []string             `mapstructure:"directories"`
}

// Overlay returns base with every field set in over replacing the base value.
func (base Rule) Overlay(over Rule) Rule {
	resultValue := reflect.ValueOf(&base).Elem()
	overValue := reflect.ValueOf(over)
	for fieldIndex := 0; fieldIndex < overValue.NumField(); fieldIndex++ {
		if !overValue.Field(fieldIndex).IsNil() {
			resultValue.Field(fieldIndex).Set(overValue.Field(fieldIndex))
		}
	}
	return base
}

// combine merges two declarations of the same scope. Fields set by both with different values
// are reported by their rule-source key.
func (base Rule) combine(other Rule) (Rule, []string) {
	var conflictingFields []string
	baseValue := reflect.ValueOf(base)
	otherValue := reflect.ValueOf(other)
	ruleType := baseValue.Type()
	for fieldIndex := 0; fieldIndex < ruleType.NumField(); fieldIndex++ {
		baseField, otherField := baseValue.Field(fieldIndex), otherValue.Field(fieldIndex)
		if baseField.IsNil() || otherField.IsNil() {
			continue
		}
		if !reflect.DeepEqual(baseField.Interface(), otherField.Interface()) {
			conflictingFields = append(conflictingFields, ruleType.Field(fieldIndex).Tag.Get(mapstructureTagNameConstant))
		}
	}
	return base.Overlay(other), conflictingFields
}

// IsEmpty reports whether the rule sets no field.
func (base Rule) IsEmpty() bool {
	baseValue := reflect.ValueOf(base)
	for fieldIndex := 0; fieldIndex < baseValue.NumField(); fieldIndex++ {
		if !baseValue.Field(fieldIndex).IsNil() {
			return false
		}
	}
	return true
}
