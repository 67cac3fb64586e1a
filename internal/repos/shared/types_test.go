package shared_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depbot/internal/repos/shared"
)

func TestNewOwnerSlug(testInstance *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    shared.OwnerSlug
		expectError bool
	}{
		{name: "valid_owner", input: "octo-org", expected: "octo-org"},
		{name: "trims_owner", input: "  octo-org ", expected: "octo-org"},
		{name: "rejects_empty", input: "  ", expectError: true},
		{name: "rejects_slash", input: "octo-org/widgets", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			slug, slugError := shared.NewOwnerSlug(testCase.input)
			if testCase.expectError {
				require.Error(testInstance, slugError)
				return
			}
			require.NoError(testInstance, slugError)
			require.Equal(testInstance, testCase.expected, slug)
		})
	}
}

func TestParseRepositoryIdentity(testInstance *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{name: "owner_and_name", input: "octo-org/widgets", expected: "octo-org/widgets"},
		{name: "trims_whitespace", input: " octo-org/widgets ", expected: "octo-org/widgets"},
		{name: "missing_owner", input: "widgets", expectError: true},
		{name: "extra_segment", input: "octo-org/widgets/extra", expectError: true},
		{name: "blank_name", input: "octo-org/ ", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			identity, parseError := shared.ParseRepositoryIdentity(testCase.input)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expected, identity.String())
		})
	}
}

func TestRepositoryIdentityMatchesNameIgnoresCase(testInstance *testing.T) {
	identity, identityError := shared.NewRepositoryIdentity("octo-org", "Widgets")
	require.NoError(testInstance, identityError)
	require.True(testInstance, identity.MatchesName("widgets"))
	require.False(testInstance, identity.MatchesName("gadgets"))
}

func TestWriterReporterPrintf(testInstance *testing.T) {
	outputBuffer := &bytes.Buffer{}
	reporter := shared.NewWriterReporter(outputBuffer)
	reporter.Printf("%s: %d\n", "widgets", 2)
	require.Equal(testInstance, "widgets: 2\n", outputBuffer.String())
}
