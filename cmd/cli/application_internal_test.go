package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depbot/internal/githubcli"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = "common:\n  log_level: error\ntools:\n  sync:\n    concurrency: 8\n    repositories:\n      - widgets\n"
	testBranchEnvironmentName         = "DEPBOT_TOOLS_SYNC_BRANCH"
	testBranchEnvironmentValue        = "chore/dependabot"
)

type emptyOrganizationHost struct {
	requestedOrganizations []string
}

func (host *emptyOrganizationHost) ListOrganizationRepositories(_ context.Context, organization string, _ int) ([]githubcli.OrganizationRepository, error) {
	host.requestedOrganizations = append(host.requestedOrganizations, organization)
	return nil, nil
}

func (host *emptyOrganizationHost) ListCustomProperties(context.Context, string) ([]githubcli.CustomPropertyValue, error) {
	return nil, nil
}

func (host *emptyOrganizationHost) ListTree(context.Context, string, string) (githubcli.TreeSnapshot, error) {
	return githubcli.TreeSnapshot{}, nil
}

func (host *emptyOrganizationHost) GetFileContent(_ context.Context, _ string, path string, _ string) (githubcli.FileContent, error) {
	return githubcli.FileContent{}, githubcli.NotFoundError{Resource: path}
}

func (host *emptyOrganizationHost) PutFileContent(context.Context, string, githubcli.FileWrite) error {
	return nil
}

func (host *emptyOrganizationHost) GetBranchHead(_ context.Context, _ string, branch string) (string, error) {
	return "", githubcli.NotFoundError{Resource: branch}
}

func (host *emptyOrganizationHost) CreateBranch(context.Context, string, string, string) error {
	return nil
}

func (host *emptyOrganizationHost) FindOpenPullRequest(context.Context, string, string) (githubcli.PullRequest, bool, error) {
	return githubcli.PullRequest{}, false, nil
}

func (host *emptyOrganizationHost) CreatePullRequest(context.Context, string, githubcli.PullRequestRequest) (string, error) {
	return "", nil
}

func TestInitializeConfigurationAppliesEmbeddedDefaults(testInstance *testing.T) {
	testInstance.Chdir(testInstance.TempDir())
	application := NewApplication()

	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	syncConfiguration := application.configuration.Tools.Sync
	require.Equal(testInstance, "info", application.configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", application.configuration.Common.LogFormat)
	require.Equal(testInstance, 4, syncConfiguration.Concurrency)
	require.Equal(testInstance, "depbot/update-dependabot", syncConfiguration.UpdateBranch)
	require.Equal(testInstance, 1000, syncConfiguration.RepositoryLimit)
	require.Equal(testInstance, "repository-level", syncConfiguration.ExcludedProperty)
	require.Equal(testInstance, []string{"Playground"}, syncConfiguration.ExcludedPropertyValues)
	require.True(testInstance, syncConfiguration.ObjectStore.UseSSL)
	require.False(testInstance, application.humanReadableLoggingEnabled())
}

func TestInitializeConfigurationLayersFileAndEnvironment(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	configurationPath := filepath.Join(temporaryDirectory, testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testConfigurationContentConstant), 0o600))
	testInstance.Setenv(testBranchEnvironmentName, testBranchEnvironmentValue)

	application := NewApplication()
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(configFileFlagNameConstant, configurationPath))
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logFormatFlagNameConstant, "console"))

	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	syncConfiguration := application.configuration.Tools.Sync
	require.Equal(testInstance, "error", application.configuration.Common.LogLevel)
	require.Equal(testInstance, 8, syncConfiguration.Concurrency)
	require.Equal(testInstance, []string{"widgets"}, syncConfiguration.Repositories)
	require.Equal(testInstance, testBranchEnvironmentValue, syncConfiguration.UpdateBranch)
	require.Equal(testInstance, configurationPath, application.configurationMetadata.ConfigFileUsed)
	require.True(testInstance, application.humanReadableLoggingEnabled())
}

func TestInitializeConfigurationRejectsUnknownLogLevel(testInstance *testing.T) {
	testInstance.Chdir(testInstance.TempDir())
	application := NewApplication()
	require.NoError(testInstance, application.rootCommand.PersistentFlags().Set(logLevelFlagNameConstant, "verbose"))

	initializationError := application.initializeConfiguration(application.rootCommand)
	require.ErrorContains(testInstance, initializationError, "unable to create logger")
}

func TestApplicationRunsSyncCommand(testInstance *testing.T) {
	testInstance.Chdir(testInstance.TempDir())
	host := &emptyOrganizationHost{}
	application := NewApplication()
	application.syncBuilder.Host = host

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(output)
	application.rootCommand.SetArgs([]string{"sync", "octo-org", "--log-level", "error"})

	require.NoError(testInstance, application.Execute())
	require.Equal(testInstance, []string{"octo-org"}, host.requestedOrganizations)
	require.Contains(testInstance, output.String(), "Processed 0 repositories: 0 created, 0 updated, 0 unchanged, 0 skipped, 0 failed\n")
}

func TestApplicationFlushesCacheWhenCancelled(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	testInstance.Chdir(workingDirectory)
	cachePath := filepath.Join(workingDirectory, "ecosystems.json")
	host := &emptyOrganizationHost{}
	application := NewApplication()
	application.syncBuilder.Host = host

	output := &bytes.Buffer{}
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(output)
	application.rootCommand.SetArgs([]string{"sync", "octo-org", "--log-level", "error", "--ecosystems-cache", cachePath})

	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	executionError := application.ExecuteContext(cancelledContext)
	require.ErrorIs(testInstance, executionError, context.Canceled)

	cacheContent, readError := os.ReadFile(cachePath)
	require.NoError(testInstance, readError)
	require.JSONEq(testInstance, "{}", string(cacheContent))
}
