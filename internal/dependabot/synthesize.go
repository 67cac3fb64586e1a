package dependabot

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/overrides"
)

const (
	duplicateEntryReasonTemplateConstant = "duplicate update entry for %s %s on target branch %q"
	mixedRepositoriesReasonTemplate      = "directives span repositories %s and %s"
)

type entryKey struct {
	ecosystem    ecosystems.Name
	directory    string
	targetBranch string
}

// Synthesize builds the configuration document for one repository's directives. The output is
// independent of directive order. Directives of one ecosystem with identical non-empty grouping
// and otherwise identical settings fold into a single entry listing all their directories.
func Synthesize(directives []overrides.UpdateDirective, registries map[string]overrides.Registry) (ConfigDocument, error) {
	orderedDirectives := slices.Clone(directives)
	slices.SortFunc(orderedDirectives, func(left overrides.UpdateDirective, right overrides.UpdateDirective) int {
		if directiveOrder := overrides.CompareDirectives(left, right); directiveOrder != 0 {
			return directiveOrder
		}
		return strings.Compare(left.Settings.TargetBranch, right.Settings.TargetBranch)
	})

	for _, directive := range orderedDirectives {
		if directive.Repository != orderedDirectives[0].Repository {
			return ConfigDocument{}, InternalInvariantError{
				Repository: orderedDirectives[0].Repository.String(),
				Reason:     fmt.Sprintf(mixedRepositoriesReasonTemplate, orderedDirectives[0].Repository, directive.Repository),
			}
		}
	}

	type foldedEntry struct {
		ecosystem   ecosystems.Name
		settings    overrides.Settings
		directories []string
	}
	var foldedEntries []foldedEntry
	for _, directive := range orderedDirectives {
		foldIndex := slices.IndexFunc(foldedEntries, func(candidate foldedEntry) bool {
			return candidate.ecosystem == directive.Ecosystem &&
				len(candidate.settings.Groups) > 0 &&
				reflect.DeepEqual(candidate.settings, directive.Settings)
		})
		if foldIndex >= 0 {
			foldedEntries[foldIndex].directories = append(foldedEntries[foldIndex].directories, directive.Directory)
			continue
		}
		foldedEntries = append(foldedEntries, foldedEntry{ecosystem: directive.Ecosystem, settings: directive.Settings, directories: []string{directive.Directory}})
	}

	document := ConfigDocument{Version: DocumentVersion, Updates: make([]UpdateEntry, 0, len(foldedEntries))}
	seenKeys := make(map[entryKey]struct{})
	for _, folded := range foldedEntries {
		for _, directory := range folded.directories {
			key := entryKey{ecosystem: folded.ecosystem, directory: directory, targetBranch: folded.settings.TargetBranch}
			if _, seen := seenKeys[key]; seen {
				return ConfigDocument{}, InternalInvariantError{
					Repository: orderedDirectives[0].Repository.String(),
					Reason:     fmt.Sprintf(duplicateEntryReasonTemplateConstant, folded.ecosystem, directory, folded.settings.TargetBranch),
				}
			}
			seenKeys[key] = struct{}{}
		}
		document.Updates = append(document.Updates, buildUpdateEntry(folded.ecosystem, folded.directories, folded.settings))
	}

	if len(registries) > 0 {
		document.Registries = maps.Clone(registries)
	}
	return document, nil
}

func buildUpdateEntry(ecosystem ecosystems.Name, directories []string, settings overrides.Settings) UpdateEntry {
	entry := UpdateEntry{
		PackageEcosystem: string(ecosystem),
		Schedule: ScheduleEntry{
			Interval: settings.Schedule.Interval,
			Day:      settings.Schedule.Day,
			Time:     settings.Schedule.Time,
			Timezone: settings.Schedule.Timezone,
			Cronjob:  settings.Schedule.Cronjob,
		},
		Groups:                settings.Groups,
		TargetBranch:          settings.TargetBranch,
		Registries:            settings.Registries,
		Allow:                 settings.Allow,
		Ignore:                settings.Ignore,
		CommitMessage:         settings.CommitMessage,
		Labels:                settings.Labels,
		Assignees:             settings.Assignees,
		Reviewers:             settings.Reviewers,
		Milestone:             settings.Milestone,
		OpenPullRequestsLimit: settings.OpenPullRequestsLimit,
		RebaseStrategy:        settings.RebaseStrategy,
		Vendor:                settings.Vendor,
		VersioningStrategy:    settings.VersioningStrategy,
		InsecureCodeExecution: settings.InsecureCodeExecution,
	}
	if len(directories) == 1 {
		entry.Directory = directories[0]
	} else {
		entry.Directories = directories
	}
	if len(settings.BranchNameSeparator) > 0 {
		entry.PullRequestBranchName = &BranchNameEntry{Separator: settings.BranchNameSeparator}
	}
	if settings.Cooldown.IsSet() {
		entry.Cooldown = &CooldownEntry{
			DefaultDays:     positiveDays(settings.Cooldown.DefaultDays),
			SemverMajorDays: positiveDays(settings.Cooldown.MajorDays),
			SemverMinorDays: positiveDays(settings.Cooldown.MinorDays),
			SemverPatchDays: positiveDays(settings.Cooldown.PatchDays),
			Include:         settings.Cooldown.Include,
			Exclude:         settings.Cooldown.Exclude,
		}
	}
	return entry
}

func positiveDays(days *int) int {
	if days == nil || *days < 0 {
		return 0
	}
	return *days
}
