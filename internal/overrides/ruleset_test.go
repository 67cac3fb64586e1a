package overrides_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/overrides"
)

const (
	testRuleSourceConstant = "overrides.toml"
	testTOMLRules          = `
schedule-interval = "daily"
schedule-time = "04:30"
schedule-timezone = "America/Los_Angeles"

[organizations.Octo-Org]
schedule-day = "monday"
labels = ["dependencies"]

[repositories.widgets]
reviewers = ["octo-org/platform"]
ignore = ["left-pad", { dependency-name = "express", versions = [">= 5.0.0, < 6"] }]

[repositories.widgets.ecosystems.go]
directories = ["tools", "/"]
enabled = true

[repositories.widgets.ecosystems.npm.grouping.frontend]
patterns = ["@angular/*"]
update-types = ["minor", "patch"]

[registries.npm-github]
type = "npm-registry"
url = "https://npm.pkg.github.com"
token = "${{secrets.NPM_TOKEN}}"
`
	testYAMLRules = `
schedule-interval: daily
organizations:
  octo-org:
    schedule-day: monday
repositories:
  widgets:
    open-pull-requests-limit: 10
    ecosystems:
      cargo:
        enabled: false
`
)

func TestParseRuleSetTOML(testInstance *testing.T) {
	ruleSet, parseError := overrides.ParseRuleSet(testRuleSourceConstant, []byte(testTOMLRules), overrides.FormatTOML)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, testRuleSourceConstant, ruleSet.Source())

	scopedRules := ruleSet.Rules()
	require.Len(testInstance, scopedRules, 5)

	globalRule := scopedRules[0]
	require.Equal(testInstance, overrides.ScopeGlobal, globalRule.Scope)
	require.Equal(testInstance, "daily", *globalRule.Rule.ScheduleInterval)
	require.Equal(testInstance, 5, *globalRule.Rule.OpenPullRequestsLimit)
	require.Equal(testInstance, 7, *globalRule.Rule.CooldownDays)

	organizationRule := scopedRules[1]
	require.Equal(testInstance, overrides.ScopeOrganization, organizationRule.Scope)
	require.Equal(testInstance, "octo-org", organizationRule.Organization)
	require.Equal(testInstance, []string{"dependencies"}, organizationRule.Rule.Labels)

	repositoryRule := scopedRules[2]
	require.Equal(testInstance, overrides.ScopeRepository, repositoryRule.Scope)
	require.Equal(testInstance, []overrides.DependencyRule{
		{DependencyName: "left-pad"},
		{DependencyName: "express", Versions: []string{">= 5.0.0, < 6"}},
	}, repositoryRule.Rule.Ignore)

	npmRule := scopedRules[3]
	require.Equal(testInstance, overrides.ScopeRepositoryEcosystem, npmRule.Scope)
	require.Equal(testInstance, ecosystems.NPM, npmRule.Ecosystem)
	require.Equal(testInstance, []string{"minor", "patch"}, npmRule.Rule.Grouping["frontend"].UpdateTypes)

	gomodRule := scopedRules[4]
	require.Equal(testInstance, ecosystems.GoModules, gomodRule.Ecosystem)
	require.Equal(testInstance, []string{"/", "/tools"}, gomodRule.Rule.Directories)

	registries := ruleSet.Registries()
	require.Contains(testInstance, registries, "npm-github")
	require.Equal(testInstance, "npm-registry", registries["npm-github"]["type"])
}

func TestParseRuleSetYAML(testInstance *testing.T) {
	ruleSet, parseError := overrides.ParseRuleSet("overrides.yaml", []byte(testYAMLRules), overrides.FormatYAML)
	require.NoError(testInstance, parseError)

	scopedRules := ruleSet.Rules()
	require.Len(testInstance, scopedRules, 4)
	require.Equal(testInstance, 10, *scopedRules[2].Rule.OpenPullRequestsLimit)
	require.Equal(testInstance, ecosystems.Cargo, scopedRules[3].Ecosystem)
	require.False(testInstance, *scopedRules[3].Rule.Enabled)
}

func TestParseRuleSetRejectsMalformedSources(testInstance *testing.T) {
	testCases := []struct {
		name    string
		content string
		format  overrides.Format
	}{
		{name: "toml_syntax", content: "schedule-interval = ", format: overrides.FormatTOML},
		{name: "yaml_syntax", content: "schedule-interval: [daily", format: overrides.FormatYAML},
		{name: "unknown_key", content: "schedule_interval = \"daily\"", format: overrides.FormatTOML},
		{name: "unknown_repository_key", content: "[repositories.widgets]\nreviewer = [\"a\"]", format: overrides.FormatTOML},
		{name: "invalid_interval", content: "schedule-interval = \"fortnightly\"", format: overrides.FormatTOML},
		{name: "invalid_day", content: "schedule-day = \"someday\"", format: overrides.FormatTOML},
		{name: "invalid_time", content: "schedule-time = \"25:00\"", format: overrides.FormatTOML},
		{name: "invalid_timezone", content: "schedule-timezone = \"Mars/Olympus\"", format: overrides.FormatTOML},
		{name: "invalid_versioning_strategy", content: "versioning-strategy = \"always\"", format: overrides.FormatTOML},
		{name: "negative_limit", content: "open-pull-requests-limit = -1", format: overrides.FormatTOML},
		{name: "invalid_npm_version_constraint", content: "[repositories.widgets.ecosystems.npm]\nignore = [{ dependency-name = \"express\", versions = [\">= banana\"] }]", format: overrides.FormatTOML},
		{name: "invalid_cargo_version_constraint", content: "[repositories.widgets.ecosystems.rust]\nignore = [{ dependency-name = \"serde\", versions = [\"~=1.4\"] }]", format: overrides.FormatTOML},
		{name: "empty_version_entry", content: "ignore = [{ dependency-name = \"express\", versions = [\" \"] }]", format: overrides.FormatTOML},
		{name: "invalid_ignore_update_type", content: "ignore = [{ dependency-name = \"express\", update-types = [\"major\"] }]", format: overrides.FormatTOML},
		{name: "invalid_group_applies_to", content: "[grouping.all]\napplies-to = \"everything\"", format: overrides.FormatTOML},
		{name: "directories_outside_ecosystem", content: "[repositories.widgets]\ndirectories = [\"/web\"]", format: overrides.FormatTOML},
		{name: "repository_key_with_owner", content: "[repositories.\"octo-org/widgets\"]\nlabels = [\"x\"]", format: overrides.FormatTOML},
		{name: "negative_major_cooldown", content: "cooldown-semver-major-days = -3", format: overrides.FormatTOML},
		{name: "invalid_code_execution_policy", content: "insecure-external-code-execution = \"maybe\"", format: overrides.FormatTOML},
		{name: "invalid_branch_separator", content: "[repositories.widgets]\npull-request-branch-name-separator = \".\"", format: overrides.FormatTOML},
		{name: "registry_without_type", content: "[registries.private]\nurl = \"https://example.com\"", format: overrides.FormatTOML},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			_, parseError := overrides.ParseRuleSet(testRuleSourceConstant, []byte(testCase.content), testCase.format)
			require.Error(subTest, parseError)

			var overrideParseError overrides.OverrideParseError
			require.True(subTest, errors.As(parseError, &overrideParseError))
			require.Equal(subTest, testRuleSourceConstant, overrideParseError.Source)
		})
	}
}

func TestParseRuleSetAcceptsEcosystemSpecificVersions(testInstance *testing.T) {
	testCases := []struct {
		name     string
		scope    string
		versions string
	}{
		{name: "pip_compatible_release_global", scope: "", versions: "~=1.4"},
		{name: "maven_range_organization", scope: "[organizations.octo-org]\n", versions: "[1.0,2.0)"},
		{name: "four_part_version_repository", scope: "[repositories.widgets]\n", versions: "1.2.3.4"},
		{name: "non_numeric_repository", scope: "[repositories.widgets]\n", versions: ">= 2.a"},
		{name: "pip_ecosystem_rule", scope: "[repositories.widgets.ecosystems.pip]\n", versions: "~=1.4"},
		{name: "docker_tag_ecosystem_rule", scope: "[repositories.widgets.ecosystems.docker]\n", versions: "22-alpine"},
		{name: "npm_range_ecosystem_rule", scope: "[repositories.widgets.ecosystems.npm]\n", versions: ">= 5.0.0, < 6"},
		{name: "bundler_pessimistic_ecosystem_rule", scope: "[repositories.widgets.ecosystems.bundler]\n", versions: "~> 4.2"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			content := testCase.scope + "ignore = [{ dependency-name = \"x\", versions = [\"" + testCase.versions + "\"] }]\n"
			ruleSet, parseError := overrides.ParseRuleSet(testRuleSourceConstant, []byte(content), overrides.FormatTOML)
			require.NoError(subTest, parseError)

			scopedRules := ruleSet.Rules()
			declaredRule := scopedRules[len(scopedRules)-1]
			require.Equal(subTest, []overrides.DependencyRule{{DependencyName: "x", Versions: []string{testCase.versions}}}, declaredRule.Rule.Ignore)
		})
	}
}

func TestParseRuleSetDuplicateScopes(testInstance *testing.T) {
	testCases := []struct {
		name           string
		content        string
		expectedFields []string
	}{
		{
			name:           "repository_case_variants_conflict",
			content:        "[repositories.Widgets]\nschedule-interval = \"daily\"\n[repositories.widgets]\nschedule-interval = \"monthly\"\n",
			expectedFields: []string{"schedule-interval"},
		},
		{
			name:           "ecosystem_aliases_conflict",
			content:        "[repositories.widgets.ecosystems.go]\nlabels = [\"go\"]\n[repositories.widgets.ecosystems.gomod]\nlabels = [\"gomod\"]\n",
			expectedFields: []string{"labels"},
		},
		{
			name:    "organization_case_variants_agree",
			content: "[organizations.Octo-Org]\nschedule-day = \"monday\"\n[organizations.octo-org]\nschedule-day = \"monday\"\nlabels = [\"deps\"]\n",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			ruleSet, parseError := overrides.ParseRuleSet(testRuleSourceConstant, []byte(testCase.content), overrides.FormatTOML)
			if len(testCase.expectedFields) == 0 {
				require.NoError(subTest, parseError)
				scopedRules := ruleSet.Rules()
				require.Len(subTest, scopedRules, 2)
				require.Equal(subTest, "monday", *scopedRules[1].Rule.ScheduleDay)
				require.Equal(subTest, []string{"deps"}, scopedRules[1].Rule.Labels)
				return
			}

			var ambiguousScopeError overrides.AmbiguousScopeError
			require.True(subTest, errors.As(parseError, &ambiguousScopeError))
			require.Equal(subTest, testCase.expectedFields, ambiguousScopeError.Fields)
		})
	}
}

func TestLoadRuleSet(testInstance *testing.T) {
	defaultRuleSet, defaultError := overrides.LoadRuleSet("  ")
	require.NoError(testInstance, defaultError)
	require.Len(testInstance, defaultRuleSet.Rules(), 1)
	require.Equal(testInstance, "weekly", *defaultRuleSet.Global().ScheduleInterval)

	rulePath := filepath.Join(testInstance.TempDir(), "overrides.yml")
	require.NoError(testInstance, os.WriteFile(rulePath, []byte(testYAMLRules), 0o600))
	loadedRuleSet, loadError := overrides.LoadRuleSet(rulePath)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, rulePath, loadedRuleSet.Source())
	require.Equal(testInstance, "daily", *loadedRuleSet.Global().ScheduleInterval)

	_, missingError := overrides.LoadRuleSet(filepath.Join(testInstance.TempDir(), "missing.toml"))
	var overrideParseError overrides.OverrideParseError
	require.True(testInstance, errors.As(missingError, &overrideParseError))
	require.ErrorIs(testInstance, missingError, os.ErrNotExist)
}

func TestBuiltinGlobalRuleDefaults(testInstance *testing.T) {
	builtinRuleSet, parseError := overrides.ParseRuleSet("default_rules.toml", overrides.BuiltinRules(), overrides.FormatTOML)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, overrides.BuiltinGlobalRule(), builtinRuleSet.Global())

	globalRule := overrides.DefaultRuleSet().Global()
	require.Equal(testInstance, "weekly", *globalRule.ScheduleInterval)
	require.Equal(testInstance, "saturday", *globalRule.ScheduleDay)
	require.Equal(testInstance, "America/Los_Angeles", *globalRule.ScheduleTimezone)
	require.Equal(testInstance, 5, *globalRule.OpenPullRequestsLimit)
	require.Equal(testInstance, 7, *globalRule.CooldownDays)
	require.Equal(testInstance, map[string]overrides.GroupRule{
		"security":       {AppliesTo: "security-updates", UpdateTypes: []string{"minor", "patch"}},
		"security-major": {AppliesTo: "security-updates", UpdateTypes: []string{"major"}},
		"patch":          {AppliesTo: "version-updates", UpdateTypes: []string{"patch"}},
		"minor":          {AppliesTo: "version-updates", UpdateTypes: []string{"minor", "patch"}},
		"major":          {AppliesTo: "version-updates", UpdateTypes: []string{"major"}},
	}, globalRule.Grouping)

	globalRule.Grouping["extra"] = overrides.GroupRule{}
	require.NotContains(testInstance, overrides.BuiltinGlobalRule().Grouping, "extra")
}

func TestParseRuleSetReplacesBuiltinDefaults(testInstance *testing.T) {
	ruleSet := parseTestRules(testInstance, "schedule-day = \"monday\"\nschedule-timezone = \"UTC\"\ngrouping = {}\n")
	globalRule := ruleSet.Global()
	require.Equal(testInstance, "monday", *globalRule.ScheduleDay)
	require.Equal(testInstance, "UTC", *globalRule.ScheduleTimezone)
	require.NotNil(testInstance, globalRule.Grouping)
	require.Empty(testInstance, globalRule.Grouping)
	require.Equal(testInstance, "weekly", *globalRule.ScheduleInterval)
}

func TestFormatFromPath(testInstance *testing.T) {
	require.Equal(testInstance, overrides.FormatYAML, overrides.FormatFromPath("rules.YAML"))
	require.Equal(testInstance, overrides.FormatYAML, overrides.FormatFromPath("rules.yml"))
	require.Equal(testInstance, overrides.FormatTOML, overrides.FormatFromPath("rules.toml"))
	require.Equal(testInstance, overrides.FormatTOML, overrides.FormatFromPath("rules"))
}
