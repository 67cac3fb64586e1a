package overrides

import (
	"maps"
	"slices"
	"strings"

	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/repos/shared"
)

// Schedule is the resolved Dependabot schedule block.
type Schedule struct {
	Interval string
	Day      string
	Time     string
	Timezone string
	Cronjob  string
}

// Settings holds the resolved, emit-ready values of one update directive.
type Settings struct {
	Schedule              Schedule
	Groups                map[string]GroupRule
	TargetBranch          string
	Reviewers             []string
	Assignees             []string
	Labels                []string
	Allow                 []DependencyRule
	Ignore                []DependencyRule
	CommitMessage         *CommitMessage
	OpenPullRequestsLimit *int
	Milestone             *int
	Registries            []string
	RebaseStrategy        string
	Vendor                *bool
	VersioningStrategy    string
	InsecureCodeExecution string
	BranchNameSeparator   string
	Cooldown              Cooldown
}

// Cooldown holds the resolved cooldown settings. Day counts are nil when unset.
type Cooldown struct {
	DefaultDays *int
	MajorDays   *int
	MinorDays   *int
	PatchDays   *int
	Include     []string
	Exclude     []string
}

// IsSet reports whether any cooldown period is positive.
func (cooldown Cooldown) IsSet() bool {
	for _, days := range []*int{cooldown.DefaultDays, cooldown.MajorDays, cooldown.MinorDays, cooldown.PatchDays} {
		if days != nil && *days > 0 {
			return true
		}
	}
	return false
}

// UpdateDirective is the fully resolved instruction for one (repository, ecosystem, directory).
type UpdateDirective struct {
	Repository   shared.RepositoryIdentity
	Ecosystem    ecosystems.Name
	Directory    string
	Settings     Settings
	Supplemented bool
}

// CompareDirectives orders directives by ecosystem sort key, then directory.
func CompareDirectives(left UpdateDirective, right UpdateDirective) int {
	return ecosystems.CompareEntries(
		ecosystems.Entry{Ecosystem: left.Ecosystem, Directory: left.Directory},
		ecosystems.Entry{Ecosystem: right.Ecosystem, Directory: right.Directory},
	)
}

// Resolve folds the global, organization, repository, and repository ecosystem rules over every
// detected entry, drops disabled directives, and appends supplemental directories.
func Resolve(repository shared.RepositoryIdentity, detection ecosystems.DetectionResult, rules RuleSet) ([]UpdateDirective, error) {
	if !strings.EqualFold(detection.Repository.String(), repository.String()) {
		return nil, DetectionMismatchError{Expected: repository.String(), Actual: detection.Repository.String()}
	}

	repositoryKey := strings.ToLower(repository.Name)
	repositoryRule := rules.global.
		Overlay(rules.organizations[strings.ToLower(repository.Owner.String())]).
		Overlay(rules.repositories[repositoryKey])

	directives := make([]UpdateDirective, 0, len(detection.Entries))
	detectedEntries := make(map[ecosystems.Entry]struct{}, len(detection.Entries))
	for _, entry := range detection.Entries {
		detectedEntries[entry] = struct{}{}
		ecosystemRule := rules.repositoryEcosystems[repositoryEcosystemKey{repository: repositoryKey, ecosystem: entry.Ecosystem}]
		if directive, enabled := buildDirective(repository, entry, repositoryRule.Overlay(ecosystemRule), false); enabled {
			directives = append(directives, directive)
		}
	}

	for scopeKey, ecosystemRule := range rules.repositoryEcosystems {
		if scopeKey.repository != repositoryKey {
			continue
		}
		for _, directory := range ecosystemRule.Directories {
			supplementalEntry := ecosystems.Entry{Ecosystem: scopeKey.ecosystem, Directory: directory}
			if _, detected := detectedEntries[supplementalEntry]; detected {
				continue
			}
			detectedEntries[supplementalEntry] = struct{}{}
			if directive, enabled := buildDirective(repository, supplementalEntry, repositoryRule.Overlay(ecosystemRule), true); enabled {
				directives = append(directives, directive)
			}
		}
	}

	slices.SortFunc(directives, CompareDirectives)
	return directives, nil
}

func buildDirective(repository shared.RepositoryIdentity, entry ecosystems.Entry, rule Rule, supplemented bool) (UpdateDirective, bool) {
	if rule.Enabled != nil && !*rule.Enabled {
		return UpdateDirective{}, false
	}
	return UpdateDirective{
		Repository:   repository,
		Ecosystem:    entry.Ecosystem,
		Directory:    entry.Directory,
		Settings:     settingsFromRule(rule, entry.Ecosystem),
		Supplemented: supplemented,
	}, true
}

func settingsFromRule(rule Rule, ecosystem ecosystems.Name) Settings {
	settings := Settings{
		Schedule: Schedule{
			Interval: valueOrEmpty(rule.ScheduleInterval),
			Day:      valueOrEmpty(rule.ScheduleDay),
			Time:     valueOrEmpty(rule.ScheduleTime),
			Timezone: valueOrEmpty(rule.ScheduleTimezone),
			Cronjob:  valueOrEmpty(rule.ScheduleCronjob),
		},
		Groups:                maps.Clone(rule.Grouping),
		TargetBranch:          valueOrEmpty(rule.TargetBranch),
		Reviewers:             slices.Clone(rule.Reviewers),
		Assignees:             slices.Clone(rule.Assignees),
		Labels:                slices.Clone(rule.Labels),
		Allow:                 slices.Clone(rule.Allow),
		Ignore:                slices.Clone(rule.Ignore),
		CommitMessage:         rule.CommitMessage,
		OpenPullRequestsLimit: rule.OpenPullRequestsLimit,
		Milestone:             rule.Milestone,
		Registries:            slices.Clone(rule.UseRegistries),
		RebaseStrategy:        valueOrEmpty(rule.RebaseStrategy),
		Vendor:                rule.Vendor,
		VersioningStrategy:    valueOrEmpty(rule.VersioningStrategy),
		InsecureCodeExecution: valueOrEmpty(rule.InsecureCodeExecution),
		BranchNameSeparator:   valueOrEmpty(rule.BranchNameSeparator),
	}
	if ecosystems.SupportsCooldown(ecosystem) {
		settings.Cooldown = Cooldown{
			DefaultDays: rule.CooldownDays,
			MajorDays:   rule.CooldownMajorDays,
			MinorDays:   rule.CooldownMinorDays,
			PatchDays:   rule.CooldownPatchDays,
			Include:     slices.Clone(rule.CooldownInclude),
			Exclude:     slices.Clone(rule.CooldownExclude),
		}
	}
	return settings
}

func valueOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
