package dependabot_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depbot/internal/dependabot"
	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/overrides"
	"github.com/temirov/depbot/internal/repos/shared"
)

const (
	testOwnerConstant      = "octo-org"
	testRepositoryConstant = "widgets"
	testGeneratedHeader    = "# This file is generated by depbot. DO NOT EDIT."
	testEquivalentExisting = `# maintained by hand
updates:
  - schedule: {interval: weekly}
    open-pull-requests-limit: 5
    directory: "/"
    package-ecosystem: "npm"
    cooldown:
      default-days: 7
version: 2
`
)

func testRepository(testInstance *testing.T) shared.RepositoryIdentity {
	identity, identityError := shared.NewRepositoryIdentity(testOwnerConstant, testRepositoryConstant)
	require.NoError(testInstance, identityError)
	return identity
}

func testSettings() overrides.Settings {
	limit := 5
	cooldownDays := 7
	return overrides.Settings{
		Schedule:              overrides.Schedule{Interval: "weekly"},
		OpenPullRequestsLimit: &limit,
		Cooldown:              overrides.Cooldown{DefaultDays: &cooldownDays},
	}
}

func testDirective(testInstance *testing.T, ecosystem ecosystems.Name, directory string, settings overrides.Settings) overrides.UpdateDirective {
	return overrides.UpdateDirective{Repository: testRepository(testInstance), Ecosystem: ecosystem, Directory: directory, Settings: settings}
}

func TestSynthesizeOrdersEntriesAndRendersDeterministically(testInstance *testing.T) {
	cargoDirective := testDirective(testInstance, ecosystems.Cargo, "/", testSettings())
	npmDirective := testDirective(testInstance, ecosystems.NPM, "/", testSettings())

	firstDocument, firstError := dependabot.Synthesize([]overrides.UpdateDirective{cargoDirective, npmDirective}, nil)
	require.NoError(testInstance, firstError)
	secondDocument, secondError := dependabot.Synthesize([]overrides.UpdateDirective{npmDirective, cargoDirective}, nil)
	require.NoError(testInstance, secondError)

	require.Equal(testInstance, dependabot.DocumentVersion, firstDocument.Version)
	require.Len(testInstance, firstDocument.Updates, 2)
	require.Equal(testInstance, []string{"npm", "cargo"}, firstDocument.Ecosystems())

	firstContent, firstRenderError := dependabot.Render(firstDocument)
	require.NoError(testInstance, firstRenderError)
	secondContent, secondRenderError := dependabot.Render(secondDocument)
	require.NoError(testInstance, secondRenderError)
	require.Equal(testInstance, firstContent, secondContent)

	renderedText := string(firstContent)
	require.True(testInstance, strings.HasPrefix(renderedText, testGeneratedHeader))
	require.Less(testInstance, strings.Index(renderedText, "package-ecosystem: npm"), strings.Index(renderedText, "package-ecosystem: cargo"))
	require.Contains(testInstance, renderedText, "default-days: 7")
	require.Contains(testInstance, renderedText, "open-pull-requests-limit: 5")
	require.NotContains(testInstance, renderedText, "registries:")
}

func TestSynthesizeRendersExtendedUpdateSettings(testInstance *testing.T) {
	defaultDays, majorDays, zeroDays := 3, 30, 0
	settings := testSettings()
	settings.Cooldown = overrides.Cooldown{
		DefaultDays: &defaultDays,
		MajorDays:   &majorDays,
		PatchDays:   &zeroDays,
		Include:     []string{"react*"},
		Exclude:     []string{"*internal*"},
	}
	settings.InsecureCodeExecution = "deny"
	settings.BranchNameSeparator = "-"

	document, synthesizeError := dependabot.Synthesize([]overrides.UpdateDirective{testDirective(testInstance, ecosystems.NPM, "/", settings)}, nil)
	require.NoError(testInstance, synthesizeError)
	require.Len(testInstance, document.Updates, 1)
	require.Equal(testInstance, &dependabot.CooldownEntry{
		DefaultDays:     3,
		SemverMajorDays: 30,
		Include:         []string{"react*"},
		Exclude:         []string{"*internal*"},
	}, document.Updates[0].Cooldown)
	require.Equal(testInstance, &dependabot.BranchNameEntry{Separator: "-"}, document.Updates[0].PullRequestBranchName)

	content, renderError := dependabot.Render(document)
	require.NoError(testInstance, renderError)
	renderedText := string(content)
	require.Contains(testInstance, renderedText, "semver-major-days: 30")
	require.NotContains(testInstance, renderedText, "semver-patch-days")
	require.Contains(testInstance, renderedText, "insecure-external-code-execution: deny")
	require.Contains(testInstance, renderedText, "pull-request-branch-name:")

	reparsed, parseError := dependabot.ParseDocument(content)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, "-", reparsed.Updates[0].PullRequestBranchName.Separator)
	equal, equalError := dependabot.Equal(reparsed, document)
	require.NoError(testInstance, equalError)
	require.True(testInstance, equal)
}

func TestSynthesizeOmitsCooldownWithoutPositivePeriod(testInstance *testing.T) {
	zeroDays := 0
	settings := testSettings()
	settings.Cooldown = overrides.Cooldown{DefaultDays: &zeroDays, Exclude: []string{"*internal*"}}

	document, synthesizeError := dependabot.Synthesize([]overrides.UpdateDirective{testDirective(testInstance, ecosystems.NPM, "/", settings)}, nil)
	require.NoError(testInstance, synthesizeError)
	require.Nil(testInstance, document.Updates[0].Cooldown)
}

func TestSynthesizeFoldsBuiltinGroupedDirectories(testInstance *testing.T) {
	repository := testRepository(testInstance)
	detection := ecosystems.NewDetectionResult(repository, "", "", []ecosystems.Entry{
		{Ecosystem: ecosystems.NPM, Directory: "/web"},
		{Ecosystem: ecosystems.NPM, Directory: "/"},
		{Ecosystem: ecosystems.Cargo, Directory: "/"},
	})
	directives, resolveError := overrides.Resolve(repository, detection, overrides.DefaultRuleSet())
	require.NoError(testInstance, resolveError)
	require.Len(testInstance, directives, 3)

	document, synthesizeError := dependabot.Synthesize(directives, nil)
	require.NoError(testInstance, synthesizeError)
	require.Len(testInstance, document.Updates, 2)
	require.Equal(testInstance, []string{"/", "/web"}, document.Updates[0].Directories)
	require.Empty(testInstance, document.Updates[0].Directory)
	require.Equal(testInstance, "/", document.Updates[1].Directory)
	require.Len(testInstance, document.Updates[0].Groups, 5)
	require.Equal(testInstance, "saturday", document.Updates[0].Schedule.Day)
	require.Equal(testInstance, "America/Los_Angeles", document.Updates[0].Schedule.Timezone)
}

func TestSynthesizeFolding(testInstance *testing.T) {
	groupedSettings := testSettings()
	groupedSettings.Groups = map[string]overrides.GroupRule{"all": {Patterns: []string{"*"}}}

	labeledSettings := groupedSettings
	labeledSettings.Labels = []string{"frontend"}

	testCases := []struct {
		name                string
		directives          []overrides.UpdateDirective
		expectedDirectories [][]string
	}{
		{
			name: "identical_grouping_folds",
			directives: []overrides.UpdateDirective{
				testDirective(testInstance, ecosystems.NPM, "/web", groupedSettings),
				testDirective(testInstance, ecosystems.NPM, "/admin", groupedSettings),
			},
			expectedDirectories: [][]string{{"/admin", "/web"}},
		},
		{
			name: "without_grouping_stays_separate",
			directives: []overrides.UpdateDirective{
				testDirective(testInstance, ecosystems.NPM, "/web", testSettings()),
				testDirective(testInstance, ecosystems.NPM, "/admin", testSettings()),
			},
			expectedDirectories: [][]string{{"/admin"}, {"/web"}},
		},
		{
			name: "different_settings_stay_separate",
			directives: []overrides.UpdateDirective{
				testDirective(testInstance, ecosystems.NPM, "/web", labeledSettings),
				testDirective(testInstance, ecosystems.NPM, "/admin", groupedSettings),
			},
			expectedDirectories: [][]string{{"/admin"}, {"/web"}},
		},
		{
			name: "never_across_ecosystems",
			directives: []overrides.UpdateDirective{
				testDirective(testInstance, ecosystems.NPM, "/", groupedSettings),
				testDirective(testInstance, ecosystems.Cargo, "/", groupedSettings),
			},
			expectedDirectories: [][]string{{"/"}, {"/"}},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			document, synthesizeError := dependabot.Synthesize(testCase.directives, nil)
			require.NoError(subTest, synthesizeError)

			actualDirectories := make([][]string, 0, len(document.Updates))
			for _, entry := range document.Updates {
				actualDirectories = append(actualDirectories, entry.EntryDirectories())
			}
			require.Equal(subTest, testCase.expectedDirectories, actualDirectories)
		})
	}
}

func TestSynthesizeRejectsDuplicateEntries(testInstance *testing.T) {
	directive := testDirective(testInstance, ecosystems.NPM, "/", testSettings())
	_, synthesizeError := dependabot.Synthesize([]overrides.UpdateDirective{directive, directive}, nil)

	var invariantError dependabot.InternalInvariantError
	require.True(testInstance, errors.As(synthesizeError, &invariantError))
	require.Equal(testInstance, "octo-org/widgets", invariantError.Repository)

	otherBranchSettings := testSettings()
	otherBranchSettings.TargetBranch = "develop"
	document, branchError := dependabot.Synthesize([]overrides.UpdateDirective{directive, testDirective(testInstance, ecosystems.NPM, "/", otherBranchSettings)}, nil)
	require.NoError(testInstance, branchError)
	require.Len(testInstance, document.Updates, 2)
}

func TestSynthesizeEmitsRegistriesVerbatim(testInstance *testing.T) {
	registries := map[string]overrides.Registry{
		"npm-github": {"type": "npm-registry", "url": "https://npm.pkg.github.com", "token": "${{secrets.NPM_TOKEN}}"},
	}
	settings := testSettings()
	settings.Registries = []string{"npm-github"}

	document, synthesizeError := dependabot.Synthesize([]overrides.UpdateDirective{testDirective(testInstance, ecosystems.NPM, "/", settings)}, registries)
	require.NoError(testInstance, synthesizeError)

	content, renderError := dependabot.Render(document)
	require.NoError(testInstance, renderError)
	require.Contains(testInstance, string(content), "npm-registry")
	require.Contains(testInstance, string(content), "secrets.NPM_TOKEN")

	parsedDocument, parseError := dependabot.ParseDocument(content)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, []string{"npm-github"}, parsedDocument.Updates[0].Registries)
}

func TestEqualComparesCanonicalForms(testInstance *testing.T) {
	synthesized, synthesizeError := dependabot.Synthesize([]overrides.UpdateDirective{testDirective(testInstance, ecosystems.NPM, "/", testSettings())}, nil)
	require.NoError(testInstance, synthesizeError)

	existing, parseError := dependabot.ParseDocument([]byte(testEquivalentExisting))
	require.NoError(testInstance, parseError)
	equal, equalError := dependabot.Equal(existing, synthesized)
	require.NoError(testInstance, equalError)
	require.True(testInstance, equal)

	changed, changedParseError := dependabot.ParseDocument([]byte(strings.Replace(testEquivalentExisting, "weekly", "daily", 1)))
	require.NoError(testInstance, changedParseError)
	equal, equalError = dependabot.Equal(changed, synthesized)
	require.NoError(testInstance, equalError)
	require.False(testInstance, equal)

	committedContent, contentError := existing.Content()
	require.NoError(testInstance, contentError)
	require.True(testInstance, bytes.Equal([]byte(testEquivalentExisting), committedContent))
}

func TestCanonicalizeStripsCommentsAndSortsKeys(testInstance *testing.T) {
	canonicalContent, canonicalError := dependabot.Canonicalize([]byte("# comment\nb: 1\na: [x, z]\n"))
	require.NoError(testInstance, canonicalError)
	require.Equal(testInstance, "a:\n    - x\n    - z\nb: 1\n", string(canonicalContent))

	_, invalidError := dependabot.Canonicalize([]byte("a: [x"))
	var parseError dependabot.DocumentParseError
	require.True(testInstance, errors.As(invalidError, &parseError))

	_, documentError := dependabot.ParseDocument([]byte("updates: {"))
	require.True(testInstance, errors.As(documentError, &parseError))
}
