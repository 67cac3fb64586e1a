package orgsync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depbot/internal/dependabot"
	"github.com/temirov/depbot/internal/reconcile"
	"github.com/temirov/depbot/internal/repos/shared"
)

func TestSummarizeCountsOutcomes(testInstance *testing.T) {
	identity, identityError := shared.NewRepositoryIdentity("octo-org", "widgets")
	require.NoError(testInstance, identityError)

	outcomes := []RepositoryOutcome{
		{Repository: identity, Action: reconcile.Action{Kind: reconcile.ActionCreate}},
		{Repository: identity, Action: reconcile.Action{Kind: reconcile.ActionUpdate}, Failed: true, Err: errors.New("push rejected")},
		invariantFailure(RepositoryOutcome{Repository: identity}, dependabot.InternalInvariantError{Repository: identity.String(), Reason: "duplicate entry"}),
		fetchFailure(RepositoryOutcome{Repository: identity}, errors.New("timeout")),
		{Repository: identity, Action: reconcile.Action{Kind: reconcile.ActionNoChange}},
	}
	processed := []bool{true, true, true, true, false}

	summary := summarize(outcomes, processed)
	require.Len(testInstance, summary.Outcomes, 4)
	require.Equal(testInstance, 2, summary.Failed)
	require.Equal(testInstance, 1, summary.InvariantViolations)
	require.Equal(testInstance, 1, summary.Counts[reconcile.ActionCreate])
	require.Equal(testInstance, 1, summary.Counts[reconcile.ActionSkip])
	require.Zero(testInstance, summary.Counts[reconcile.ActionNoChange])
	require.Zero(testInstance, summary.Counts[reconcile.ActionUpdate])
}

func TestRepositoryOutcomeLabels(testInstance *testing.T) {
	identity, identityError := shared.NewRepositoryIdentity("octo-org", "widgets")
	require.NoError(testInstance, identityError)

	testCases := []struct {
		name          string
		outcome       RepositoryOutcome
		expectedLabel string
		expectedLine  string
	}{
		{
			name:          "created with pull request",
			outcome:       RepositoryOutcome{Repository: identity, Ecosystems: []string{"npm", "cargo"}, Action: reconcile.Action{Kind: reconcile.ActionCreate}, PullRequestURL: "https://example.test/pr/1"},
			expectedLabel: "create",
			expectedLine:  "octo-org/widgets: ecosystems [npm, cargo]: create (https://example.test/pr/1)\n",
		},
		{
			name:          "dispatch failure",
			outcome:       RepositoryOutcome{Repository: identity, Ecosystems: []string{"gomod"}, Action: reconcile.Action{Kind: reconcile.ActionUpdate}, Failed: true, Err: errors.New("push rejected")},
			expectedLabel: failedOutcomeLabelConstant,
			expectedLine:  "octo-org/widgets: ecosystems [gomod]: update (failed: push rejected)\n",
		},
		{
			name:          "invariant violation",
			outcome:       invariantFailure(RepositoryOutcome{Repository: identity}, errors.New("mixed repositories")),
			expectedLabel: invariantViolationOutcomeLabel,
			expectedLine:  "octo-org/widgets: ecosystems []: skip: internal invariant violated (failed: mixed repositories)\n",
		},
		{
			name:          "skip",
			outcome:       RepositoryOutcome{Repository: identity, Action: reconcile.Skip(skipReasonNoEcosystemsConstant)},
			expectedLabel: "skip",
			expectedLine:  "octo-org/widgets: ecosystems []: skip: no ecosystems detected\n",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			require.Equal(subTest, testCase.expectedLabel, testCase.outcome.metricsLabel())
			require.Equal(subTest, testCase.expectedLine, testCase.outcome.summaryLine())
		})
	}
}

func TestFingerprintDependsOnBranchPushAndExclusions(testInstance *testing.T) {
	baseline := Fingerprint("main", "2026-10-01T12:00:00Z", "exclusions-a")
	require.Len(testInstance, baseline, 64)
	require.Equal(testInstance, baseline, Fingerprint("main", "2026-10-01T12:00:00Z", "exclusions-a"))
	require.NotEqual(testInstance, baseline, Fingerprint("trunk", "2026-10-01T12:00:00Z", "exclusions-a"))
	require.NotEqual(testInstance, baseline, Fingerprint("main", "2026-10-02T12:00:00Z", "exclusions-a"))
	require.NotEqual(testInstance, baseline, Fingerprint("main", "2026-10-01T12:00:00Z", "exclusions-b"))
}

func TestCommandConfigurationSanitize(testInstance *testing.T) {
	configuration := CommandConfiguration{
		Repositories:           []string{" widgets ", "", "gadgets"},
		Concurrency:            -1,
		UpdateBranch:           "  ",
		ExcludedPropertyValues: []string{" Playground "},
	}
	sanitized := configuration.sanitize()
	require.Equal(testInstance, []string{"widgets", "gadgets"}, sanitized.Repositories)
	require.Equal(testInstance, defaultConcurrencyConstant, sanitized.Concurrency)
	require.Equal(testInstance, DefaultCommandConfiguration().UpdateBranch, sanitized.UpdateBranch)
	require.Equal(testInstance, []string{"Playground"}, sanitized.ExcludedPropertyValues)
}
