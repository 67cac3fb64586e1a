package overrides

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/Masterminds/semver/v3"

	"github.com/temirov/depbot/internal/ecosystems"
)

const (
	invalidEnumValueTemplateConstant        = "%s: %q is not one of %s"
	negativeValueTemplateConstant           = "%s: must not be negative, got %d"
	invalidGroupTemplateConstant            = "grouping.%s: %w"
	invalidTimeTemplateConstant             = "schedule-time: %q is not HH:MM"
	invalidTimezoneTemplateConstant         = "schedule-timezone: %q: %w"
	invalidVersionsTemplateConstant         = "ignore: %q versions %q: %w"
	emptyVersionsTemplateConstant           = "ignore: %q versions must not contain empty entries"
	directoriesOutsideEcosystemScopeMessage = "directories may only be set on repository ecosystem rules"
	invalidRepositoryKeyMessageConstant     = "repository keys must be bare repository names"
	registryTypeMissingMessageConstant      = "registry must declare a type"
	emptyDependencyNameMessageConstant      = "dependency rules require a dependency-name or dependency-type"
	enumValueSeparatorConstant              = ", "
	registryTypeKeyConstant                 = "type"
	commitMessageIncludeScopeConstant       = "scope"
	scheduleIntervalFieldConstant           = "schedule-interval"
	scheduleDayFieldConstant                = "schedule-day"
	versioningStrategyFieldConstant         = "versioning-strategy"
	rebaseStrategyFieldConstant             = "rebase-strategy"
	groupAppliesToFieldConstant             = "grouping.applies-to"
	groupDependencyTypeFieldConstant        = "grouping.dependency-type"
	groupUpdateTypesFieldConstant           = "grouping.update-types"
	ignoreUpdateTypesFieldConstant          = "ignore.update-types"
	dependencyTypeFieldConstant             = "dependency-type"
	commitMessageIncludeFieldConstant       = "commit-message.include"
	openPullRequestsLimitFieldConstant      = "open-pull-requests-limit"
	cooldownDaysFieldConstant               = "cooldown-days"
	cooldownMajorDaysFieldConstant          = "cooldown-semver-major-days"
	cooldownMinorDaysFieldConstant          = "cooldown-semver-minor-days"
	cooldownPatchDaysFieldConstant          = "cooldown-semver-patch-days"
	cooldownIncludeFieldConstant            = "cooldown-include"
	cooldownExcludeFieldConstant            = "cooldown-exclude"
	insecureCodeExecutionFieldConstant      = "insecure-external-code-execution"
	branchNameSeparatorFieldConstant        = "pull-request-branch-name-separator"
	tooManyPatternsTemplateConstant         = "%s: at most %d entries are allowed, got %d"
	maximumCooldownPatternsConstant         = 150
	milestoneFieldConstant                  = "milestone"
)

var (
	errDirectoriesOutsideEcosystemScope = errors.New(directoriesOutsideEcosystemScopeMessage)
	errInvalidRepositoryKey             = errors.New(invalidRepositoryKeyMessageConstant)
	errRegistryTypeMissing              = errors.New(registryTypeMissingMessageConstant)
	errEmptyDependencyRule              = errors.New(emptyDependencyNameMessageConstant)

	scheduleTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

	scheduleIntervals     = []string{"daily", "weekly", "monthly", "quarterly", "semiannually", "yearly", "cron"}
	scheduleDays          = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
	versioningStrategies  = []string{"auto", "increase", "increase-if-necessary", "lockfile-only", "widen"}
	rebaseStrategies      = []string{"auto", "disabled"}
	groupAppliesTo        = []string{"version-updates", "security-updates"}
	dependencyTypes       = []string{"direct", "indirect", "all", "production", "development"}
	groupUpdateTypes      = []string{"major", "minor", "patch"}
	ignoreUpdateTypes     = []string{"version-update:semver-major", "version-update:semver-minor", "version-update:semver-patch"}
	commitMessageIncludes = []string{commitMessageIncludeScopeConstant}
	codeExecutionPolicies = []string{"allow", "deny"}
	branchNameSeparators  = []string{"-", "_", "/"}
)

func validateRule(rule Rule, scope Scope, ecosystem ecosystems.Name, location string) error {
	validationError := checkRule(rule, scope, ecosystem)
	if validationError == nil {
		return nil
	}
	return OverrideParseError{Location: location, Cause: validationError}
}

func checkRule(rule Rule, scope Scope, ecosystem ecosystems.Name) error {
	if rule.Directories != nil && scope != ScopeRepositoryEcosystem {
		return errDirectoriesOutsideEcosystemScope
	}
	if enumError := checkOptionalEnum(scheduleIntervalFieldConstant, rule.ScheduleInterval, scheduleIntervals); enumError != nil {
		return enumError
	}
	if enumError := checkOptionalEnum(scheduleDayFieldConstant, rule.ScheduleDay, scheduleDays); enumError != nil {
		return enumError
	}
	if rule.ScheduleTime != nil && !scheduleTimePattern.MatchString(*rule.ScheduleTime) {
		return fmt.Errorf(invalidTimeTemplateConstant, *rule.ScheduleTime)
	}
	if rule.ScheduleTimezone != nil {
		if _, locationError := time.LoadLocation(*rule.ScheduleTimezone); locationError != nil {
			return fmt.Errorf(invalidTimezoneTemplateConstant, *rule.ScheduleTimezone, locationError)
		}
	}
	if enumError := checkOptionalEnum(versioningStrategyFieldConstant, rule.VersioningStrategy, versioningStrategies); enumError != nil {
		return enumError
	}
	if enumError := checkOptionalEnum(rebaseStrategyFieldConstant, rule.RebaseStrategy, rebaseStrategies); enumError != nil {
		return enumError
	}
	if enumError := checkOptionalEnum(insecureCodeExecutionFieldConstant, rule.InsecureCodeExecution, codeExecutionPolicies); enumError != nil {
		return enumError
	}
	if enumError := checkOptionalEnum(branchNameSeparatorFieldConstant, rule.BranchNameSeparator, branchNameSeparators); enumError != nil {
		return enumError
	}
	for _, countField := range []struct {
		name  string
		value *int
	}{
		{name: openPullRequestsLimitFieldConstant, value: rule.OpenPullRequestsLimit},
		{name: cooldownDaysFieldConstant, value: rule.CooldownDays},
		{name: cooldownMajorDaysFieldConstant, value: rule.CooldownMajorDays},
		{name: cooldownMinorDaysFieldConstant, value: rule.CooldownMinorDays},
		{name: cooldownPatchDaysFieldConstant, value: rule.CooldownPatchDays},
		{name: milestoneFieldConstant, value: rule.Milestone},
	} {
		if countField.value != nil && *countField.value < 0 {
			return fmt.Errorf(negativeValueTemplateConstant, countField.name, *countField.value)
		}
	}
	for _, patternField := range []struct {
		name     string
		patterns []string
	}{
		{name: cooldownIncludeFieldConstant, patterns: rule.CooldownInclude},
		{name: cooldownExcludeFieldConstant, patterns: rule.CooldownExclude},
	} {
		if len(patternField.patterns) > maximumCooldownPatternsConstant {
			return fmt.Errorf(tooManyPatternsTemplateConstant, patternField.name, maximumCooldownPatternsConstant, len(patternField.patterns))
		}
	}
	for _, groupName := range sortedKeys(rule.Grouping) {
		if groupError := checkGroup(rule.Grouping[groupName]); groupError != nil {
			return fmt.Errorf(invalidGroupTemplateConstant, groupName, groupError)
		}
	}
	for _, allowRule := range rule.Allow {
		if dependencyError := checkDependencyRule(allowRule, false, false); dependencyError != nil {
			return dependencyError
		}
	}
	semverVersions := scope == ScopeRepositoryEcosystem && ecosystems.UsesSemverVersions(ecosystem)
	for _, ignoreRule := range rule.Ignore {
		if dependencyError := checkDependencyRule(ignoreRule, true, semverVersions); dependencyError != nil {
			return dependencyError
		}
	}
	if rule.CommitMessage != nil && len(rule.CommitMessage.Include) > 0 {
		includeValue := rule.CommitMessage.Include
		if enumError := checkOptionalEnum(commitMessageIncludeFieldConstant, &includeValue, commitMessageIncludes); enumError != nil {
			return enumError
		}
	}
	return nil
}

func checkGroup(group GroupRule) error {
	if len(group.AppliesTo) > 0 {
		if enumError := checkOptionalEnum(groupAppliesToFieldConstant, &group.AppliesTo, groupAppliesTo); enumError != nil {
			return enumError
		}
	}
	if len(group.DependencyType) > 0 {
		if enumError := checkOptionalEnum(groupDependencyTypeFieldConstant, &group.DependencyType, dependencyTypes); enumError != nil {
			return enumError
		}
	}
	for _, updateType := range group.UpdateTypes {
		if enumError := checkOptionalEnum(groupUpdateTypesFieldConstant, &updateType, groupUpdateTypes); enumError != nil {
			return enumError
		}
	}
	return nil
}

// checkDependencyRule validates versions as semver ranges only when semverVersions is set; other
// ecosystems have their own requirement syntax and their entries are passed through.
func checkDependencyRule(dependencyRule DependencyRule, isIgnoreRule bool, semverVersions bool) error {
	if len(strings.TrimSpace(dependencyRule.DependencyName)) == 0 && len(strings.TrimSpace(dependencyRule.DependencyType)) == 0 {
		return errEmptyDependencyRule
	}
	if len(dependencyRule.DependencyType) > 0 {
		if enumError := checkOptionalEnum(dependencyTypeFieldConstant, &dependencyRule.DependencyType, dependencyTypes); enumError != nil {
			return enumError
		}
	}
	if !isIgnoreRule {
		return nil
	}
	for _, updateType := range dependencyRule.UpdateTypes {
		if enumError := checkOptionalEnum(ignoreUpdateTypesFieldConstant, &updateType, ignoreUpdateTypes); enumError != nil {
			return enumError
		}
	}
	for _, versionConstraint := range dependencyRule.Versions {
		if len(strings.TrimSpace(versionConstraint)) == 0 {
			return fmt.Errorf(emptyVersionsTemplateConstant, dependencyRule.DependencyName)
		}
		if !semverVersions {
			continue
		}
		if _, constraintError := semver.NewConstraint(versionConstraint); constraintError != nil {
			return fmt.Errorf(invalidVersionsTemplateConstant, dependencyRule.DependencyName, versionConstraint, constraintError)
		}
	}
	return nil
}

func checkOptionalEnum(fieldName string, value *string, allowedValues []string) error {
	if value == nil || slices.Contains(allowedValues, *value) {
		return nil
	}
	return fmt.Errorf(invalidEnumValueTemplateConstant, fieldName, *value, strings.Join(allowedValues, enumValueSeparatorConstant))
}

func validateRegistry(registry Registry, location string) error {
	registryType, hasType := registry[registryTypeKeyConstant].(string)
	if !hasType || len(strings.TrimSpace(registryType)) == 0 {
		return OverrideParseError{Location: location, Cause: errRegistryTypeMissing}
	}
	return nil
}
