package orgsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/depbot/internal/ecosystemcache"
	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/execshell"
	"github.com/temirov/depbot/internal/githubauth"
	"github.com/temirov/depbot/internal/githubcli"
	"github.com/temirov/depbot/internal/overrides"
	"github.com/temirov/depbot/internal/reconcile"
	"github.com/temirov/depbot/internal/repos/shared"
	"github.com/temirov/depbot/internal/ui"
	pathutils "github.com/temirov/depbot/internal/utils/path"
)

const (
	commandUseConstant              = "sync <organization>"
	commandShortDescriptionConstant = "Reconcile Dependabot configuration across an organization"
	commandLongDescriptionConstant  = "sync detects package ecosystems in every repository of an organization, applies the override rules, " +
		"and compares the resulting .github/dependabot.yml with the committed one. Without --create-pr it only reports what would change."
	missingOrganizationMessageConstant = "sync requires exactly one organization argument"

	flagRepositoryNameConstant          = "repo"
	flagRepositoryDescriptionConstant   = "Limit the run to the named repository (repeatable)"
	flagCreatePullRequestNameConstant   = "create-pr"
	flagCreatePullRequestDescription    = "Write changes to the update branch and open pull requests"
	flagForceNewNameConstant            = "force-new"
	flagForceNewDescriptionConstant     = "Create a configuration in repositories that have none"
	flagOnlyExistingNameConstant        = "only-existing"
	flagOnlyExistingDescriptionConstant = "Only process repositories with an open update pull request"
	flagVerboseNameConstant             = "verbose"
	flagVerboseDescriptionConstant      = "Print the synthesized configuration of every repository"
	flagEcosystemsCacheNameConstant     = "ecosystems-cache"
	flagEcosystemsCacheDescription      = "Ecosystem cache location: a file path or s3://bucket/key"
	flagOverridesNameConstant           = "overrides"
	flagOverridesDescriptionConstant    = "Override rules file (TOML, or YAML with a .yml/.yaml extension)"
	flagConcurrencyNameConstant         = "concurrency"
	flagConcurrencyDescriptionConstant  = "Number of repositories processed in parallel"
	flagMetricsFileNameConstant         = "metrics-file"
	flagMetricsFileDescriptionConstant  = "Write run metrics in the Prometheus textfile format to this path"
	flagBranchNameConstant              = "branch"
	flagBranchDescriptionConstant       = "Branch used for proposed configuration changes"

	overrideRulesLoadedMessageConstant = "override rules loaded"
	cacheStoreUnavailableMessage       = "ecosystem cache store unavailable, continuing without persistence"
	cacheSaveFailedMessageConstant     = "ecosystem cache snapshot could not be saved"
	metricsWriteFailedMessageConstant  = "run metrics could not be written"
	logFieldSourceConstant             = "source"
	logFieldRuleCountConstant          = "rule_count"
	logFieldLocationConstant           = "location"
	githubClientErrorTemplateConstant  = "github client: %w"
)

var errMissingOrganization = errors.New(missingOrganizationMessageConstant)

// LoggerProvider supplies a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current sync configuration.
type ConfigurationProvider func() CommandConfiguration

// CommandBuilder assembles the sync cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider func() bool
	Host                         RepositoryHost
	Environment                  map[string]string
}

// Build constructs the sync command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseConstant,
		Short: commandShortDescriptionConstant,
		Long:  commandLongDescriptionConstant,
		RunE:  builder.run,
	}

	defaults := DefaultCommandConfiguration()
	command.Flags().StringSlice(flagRepositoryNameConstant, nil, flagRepositoryDescriptionConstant)
	command.Flags().Bool(flagCreatePullRequestNameConstant, false, flagCreatePullRequestDescription)
	command.Flags().Bool(flagForceNewNameConstant, false, flagForceNewDescriptionConstant)
	command.Flags().Bool(flagOnlyExistingNameConstant, false, flagOnlyExistingDescriptionConstant)
	command.Flags().Bool(flagVerboseNameConstant, false, flagVerboseDescriptionConstant)
	command.Flags().String(flagEcosystemsCacheNameConstant, "", flagEcosystemsCacheDescription)
	command.Flags().String(flagOverridesNameConstant, "", flagOverridesDescriptionConstant)
	command.Flags().Int(flagConcurrencyNameConstant, defaults.Concurrency, flagConcurrencyDescriptionConstant)
	command.Flags().String(flagMetricsFileNameConstant, "", flagMetricsFileDescriptionConstant)
	command.Flags().String(flagBranchNameConstant, defaults.UpdateBranch, flagBranchDescriptionConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 || len(strings.TrimSpace(arguments[0])) == 0 {
		if helpError := command.Help(); helpError != nil {
			return helpError
		}
		return errMissingOrganization
	}
	organization := strings.TrimSpace(arguments[0])

	configuration := builder.resolveConfiguration(command)
	logger := builder.resolveLogger()
	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}

	rules, rulesError := overrides.LoadRuleSet(configuration.Overrides)
	if rulesError != nil {
		return rulesError
	}
	logger.Info(overrideRulesLoadedMessageConstant, zap.String(logFieldSourceConstant, rules.Source()), zap.Int(logFieldRuleCountConstant, len(rules.Rules())))

	detector, detectorError := ecosystems.NewDetector(logger, configuration.DetectionExclusions)
	if detectorError != nil {
		return detectorError
	}

	host, hostError := builder.resolveHost(logger)
	if hostError != nil {
		return hostError
	}

	var store ecosystemcache.SnapshotStore
	if len(configuration.EcosystemsCache) > 0 {
		openedStore, storeError := ecosystemcache.OpenSnapshotStore(configuration.EcosystemsCache, configuration.ObjectStore, pathutils.NewHomeExpander())
		if storeError != nil {
			logger.Warn(cacheStoreUnavailableMessage, zap.String(logFieldLocationConstant, configuration.EcosystemsCache), zap.Error(storeError))
		} else {
			store = openedStore
		}
	}
	cache := ecosystemcache.Load(executionContext, store, logger)
	runMetrics := NewRunMetrics()

	service, serviceError := NewService(Dependencies{
		Logger:   logger,
		Host:     host,
		Detector: detector,
		Cache:    cache,
		Rules:    rules,
		Reporter: shared.NewWriterReporter(command.OutOrStdout()),
		Metrics:  runMetrics,
	}, configuration.UpdateBranch)
	if serviceError != nil {
		return serviceError
	}

	_, runError := service.Run(executionContext, Options{
		Organization: organization,
		Repositories: configuration.Repositories,
		Flags: reconcile.Flags{
			CreatePullRequest: configuration.CreatePullRequest,
			ForceNew:          configuration.ForceNew,
			OnlyExisting:      configuration.OnlyExisting,
		},
		Verbose:                configuration.Verbose,
		Concurrency:            configuration.Concurrency,
		RepositoryLimit:        configuration.RepositoryLimit,
		ExcludedProperty:       configuration.ExcludedProperty,
		ExcludedPropertyValues: configuration.ExcludedPropertyValues,
	})

	if store != nil {
		if saveError := cache.Save(context.WithoutCancel(executionContext), store); saveError != nil {
			logger.Warn(cacheSaveFailedMessageConstant, zap.String(logFieldLocationConstant, store.Location()), zap.Error(saveError))
		}
	}
	if len(configuration.MetricsFile) > 0 {
		if metricsError := runMetrics.WriteTextfile(configuration.MetricsFile); metricsError != nil {
			logger.Warn(metricsWriteFailedMessageConstant, zap.Error(metricsError))
		}
	}

	return runError
}

func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command) CommandConfiguration {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	flags := command.Flags()
	if flags.Changed(flagRepositoryNameConstant) {
		configuration.Repositories, _ = flags.GetStringSlice(flagRepositoryNameConstant)
	}
	if flags.Changed(flagCreatePullRequestNameConstant) {
		configuration.CreatePullRequest, _ = flags.GetBool(flagCreatePullRequestNameConstant)
	}
	if flags.Changed(flagForceNewNameConstant) {
		configuration.ForceNew, _ = flags.GetBool(flagForceNewNameConstant)
	}
	if flags.Changed(flagOnlyExistingNameConstant) {
		configuration.OnlyExisting, _ = flags.GetBool(flagOnlyExistingNameConstant)
	}
	if flags.Changed(flagVerboseNameConstant) {
		configuration.Verbose, _ = flags.GetBool(flagVerboseNameConstant)
	}
	if flags.Changed(flagEcosystemsCacheNameConstant) {
		configuration.EcosystemsCache, _ = flags.GetString(flagEcosystemsCacheNameConstant)
	}
	if flags.Changed(flagOverridesNameConstant) {
		configuration.Overrides, _ = flags.GetString(flagOverridesNameConstant)
	}
	if flags.Changed(flagConcurrencyNameConstant) {
		configuration.Concurrency, _ = flags.GetInt(flagConcurrencyNameConstant)
	}
	if flags.Changed(flagMetricsFileNameConstant) {
		configuration.MetricsFile, _ = flags.GetString(flagMetricsFileNameConstant)
	}
	if flags.Changed(flagBranchNameConstant) {
		configuration.UpdateBranch, _ = flags.GetString(flagBranchNameConstant)
	}

	return configuration.sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveHost(logger *zap.Logger) (RepositoryHost, error) {
	if builder.Host != nil {
		return builder.Host, nil
	}

	var commandEventsObserver execshell.CommandEventObserver
	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() {
		commandEventsObserver = ui.NewConsoleCommandEventLogger(logger)
	}
	shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner(), commandEventsObserver)
	if executorError != nil {
		return nil, executorError
	}
	client, clientError := githubcli.NewClient(shellExecutor, githubcli.WithEnvironment(githubauth.CommandEnvironment(builder.Environment)))
	if clientError != nil {
		return nil, fmt.Errorf(githubClientErrorTemplateConstant, clientError)
	}
	return client, nil
}
