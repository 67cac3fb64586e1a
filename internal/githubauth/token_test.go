package githubauth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depbot/internal/githubauth"
)

const (
	testPrimaryTokenConstant   = "primary-token"
	testSecondaryTokenConstant = "secondary-token"
	testWhitespaceConstant     = "   "
)

func TestResolveTokenPreference(testInstance *testing.T) {
	testCases := []struct {
		name          string
		environment   map[string]string
		expectedToken string
	}{
		{
			name: "gh_token_wins",
			environment: map[string]string{
				githubauth.EnvGitHubCLIToken: testPrimaryTokenConstant,
				githubauth.EnvGitHubToken:    testSecondaryTokenConstant,
			},
			expectedToken: testPrimaryTokenConstant,
		},
		{
			name: "blank_values_skipped",
			environment: map[string]string{
				githubauth.EnvGitHubCLIToken: testWhitespaceConstant,
				githubauth.EnvGitHubAPIToken: testSecondaryTokenConstant,
			},
			expectedToken: testSecondaryTokenConstant,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			token, found := githubauth.ResolveToken(testCase.environment)
			require.True(testInstance, found)
			require.Equal(testInstance, testCase.expectedToken, token)
		})
	}
}

func TestCommandEnvironmentExportsGitHubCLIToken(testInstance *testing.T) {
	environment := githubauth.CommandEnvironment(map[string]string{githubauth.EnvGitHubToken: testPrimaryTokenConstant})
	require.Equal(testInstance, map[string]string{githubauth.EnvGitHubCLIToken: testPrimaryTokenConstant}, environment)
}
