package orgsync

import (
	"strings"

	"github.com/temirov/depbot/internal/ecosystemcache"
)

const (
	defaultConcurrencyConstant          = 4
	defaultUpdateBranchConstant         = "depbot/update-dependabot"
	defaultRepositoryLimitConstant      = 1000
	defaultExcludedPropertyNameConstant = "repository-level"
	defaultExcludedPropertyValue        = "Playground"

	configurationRepositoriesKeyConstant        = "repositories"
	configurationCreatePullRequestKeyConstant   = "create_pr"
	configurationForceNewKeyConstant            = "force_new"
	configurationOnlyExistingKeyConstant        = "only_existing"
	configurationVerboseKeyConstant             = "verbose"
	configurationEcosystemsCacheKeyConstant     = "ecosystems_cache"
	configurationOverridesKeyConstant           = "overrides"
	configurationConcurrencyKeyConstant         = "concurrency"
	configurationMetricsFileKeyConstant         = "metrics_file"
	configurationBranchKeyConstant              = "branch"
	configurationRepositoryLimitKeyConstant     = "repository_limit"
	configurationExcludedPropertyKeyConstant    = "excluded_property"
	configurationExcludedValuesKeyConstant      = "excluded_property_values"
	configurationDetectionExclusionsKeyConstant = "detection_exclusions"
	configurationObjectStoreKeyConstant         = "object_store"
	configurationObjectStoreEndpointKey         = "endpoint"
	configurationObjectStoreRegionKey           = "region"
	configurationObjectStoreUseSSLKey           = "use_ssl"
	configurationObjectStoreAccessKeyIDKey      = "access_key_id"
	configurationObjectStoreSecretKeyKey        = "secret_access_key"
	configurationKeySeparatorConstant           = "."
)

// CommandConfiguration captures persistent settings for the sync command.
type CommandConfiguration struct {
	Repositories           []string                                `mapstructure:"repositories"`
	CreatePullRequest      bool                                    `mapstructure:"create_pr"`
	ForceNew               bool                                    `mapstructure:"force_new"`
	OnlyExisting           bool                                    `mapstructure:"only_existing"`
	Verbose                bool                                    `mapstructure:"verbose"`
	EcosystemsCache        string                                  `mapstructure:"ecosystems_cache"`
	Overrides              string                                  `mapstructure:"overrides"`
	Concurrency            int                                     `mapstructure:"concurrency"`
	MetricsFile            string                                  `mapstructure:"metrics_file"`
	UpdateBranch           string                                  `mapstructure:"branch"`
	RepositoryLimit        int                                     `mapstructure:"repository_limit"`
	ExcludedProperty       string                                  `mapstructure:"excluded_property"`
	ExcludedPropertyValues []string                                `mapstructure:"excluded_property_values"`
	DetectionExclusions    []string                                `mapstructure:"detection_exclusions"`
	ObjectStore            ecosystemcache.ObjectStoreConfiguration `mapstructure:"object_store"`
}

// DefaultCommandConfiguration returns baseline configuration values for the sync command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Concurrency:            defaultConcurrencyConstant,
		UpdateBranch:           defaultUpdateBranchConstant,
		RepositoryLimit:        defaultRepositoryLimitConstant,
		ExcludedProperty:       defaultExcludedPropertyNameConstant,
		ExcludedPropertyValues: []string{defaultExcludedPropertyValue},
		ObjectStore:            ecosystemcache.ObjectStoreConfiguration{UseSSL: true},
	}
}

// DefaultConfigurationValues produces Viper defaults for the sync command under rootKey.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	configurationKey := func(keys ...string) string {
		return rootKey + configurationKeySeparatorConstant + strings.Join(keys, configurationKeySeparatorConstant)
	}
	return map[string]any{
		configurationKey(configurationRepositoriesKeyConstant):                                        defaults.Repositories,
		configurationKey(configurationCreatePullRequestKeyConstant):                                   defaults.CreatePullRequest,
		configurationKey(configurationForceNewKeyConstant):                                            defaults.ForceNew,
		configurationKey(configurationOnlyExistingKeyConstant):                                        defaults.OnlyExisting,
		configurationKey(configurationVerboseKeyConstant):                                             defaults.Verbose,
		configurationKey(configurationEcosystemsCacheKeyConstant):                                     defaults.EcosystemsCache,
		configurationKey(configurationOverridesKeyConstant):                                           defaults.Overrides,
		configurationKey(configurationConcurrencyKeyConstant):                                         defaults.Concurrency,
		configurationKey(configurationMetricsFileKeyConstant):                                         defaults.MetricsFile,
		configurationKey(configurationBranchKeyConstant):                                              defaults.UpdateBranch,
		configurationKey(configurationRepositoryLimitKeyConstant):                                     defaults.RepositoryLimit,
		configurationKey(configurationExcludedPropertyKeyConstant):                                    defaults.ExcludedProperty,
		configurationKey(configurationExcludedValuesKeyConstant):                                      defaults.ExcludedPropertyValues,
		configurationKey(configurationDetectionExclusionsKeyConstant):                                 defaults.DetectionExclusions,
		configurationKey(configurationObjectStoreKeyConstant, configurationObjectStoreEndpointKey):    defaults.ObjectStore.Endpoint,
		configurationKey(configurationObjectStoreKeyConstant, configurationObjectStoreRegionKey):      defaults.ObjectStore.Region,
		configurationKey(configurationObjectStoreKeyConstant, configurationObjectStoreUseSSLKey):      defaults.ObjectStore.UseSSL,
		configurationKey(configurationObjectStoreKeyConstant, configurationObjectStoreAccessKeyIDKey): defaults.ObjectStore.AccessKeyID,
		configurationKey(configurationObjectStoreKeyConstant, configurationObjectStoreSecretKeyKey):   defaults.ObjectStore.SecretAccessKey,
	}
}

// sanitize trims configured values and restores defaults for unusable ones.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Repositories = trimValues(configuration.Repositories)
	sanitized.ExcludedPropertyValues = trimValues(configuration.ExcludedPropertyValues)
	sanitized.DetectionExclusions = trimValues(configuration.DetectionExclusions)
	sanitized.EcosystemsCache = strings.TrimSpace(configuration.EcosystemsCache)
	sanitized.Overrides = strings.TrimSpace(configuration.Overrides)
	sanitized.MetricsFile = strings.TrimSpace(configuration.MetricsFile)
	sanitized.ExcludedProperty = strings.TrimSpace(configuration.ExcludedProperty)
	sanitized.UpdateBranch = strings.TrimSpace(configuration.UpdateBranch)
	if len(sanitized.UpdateBranch) == 0 {
		sanitized.UpdateBranch = defaultUpdateBranchConstant
	}
	if sanitized.Concurrency <= 0 {
		sanitized.Concurrency = defaultConcurrencyConstant
	}
	if sanitized.RepositoryLimit <= 0 {
		sanitized.RepositoryLimit = defaultRepositoryLimitConstant
	}
	return sanitized
}

func trimValues(rawValues []string) []string {
	trimmedValues := make([]string, 0, len(rawValues))
	for _, rawValue := range rawValues {
		trimmedValue := strings.TrimSpace(rawValue)
		if len(trimmedValue) == 0 {
			continue
		}
		trimmedValues = append(trimmedValues, trimmedValue)
	}
	if len(trimmedValues) == 0 {
		return nil
	}
	return trimmedValues
}
