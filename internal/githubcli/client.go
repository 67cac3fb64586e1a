package githubcli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/temirov/depbot/internal/execshell"
)

const (
	repoSubcommandConstant                        = "repo"
	pullRequestSubcommandConstant                 = "pr"
	listSubcommandConstant                        = "list"
	createSubcommandConstant                      = "create"
	apiSubcommandConstant                         = "api"
	jsonFlagConstant                              = "--json"
	repoFlagConstant                              = "--repo"
	stateFlagConstant                             = "--state"
	headFlagConstant                              = "--head"
	baseFlagConstant                              = "--base"
	titleFlagConstant                             = "--title"
	bodyFlagConstant                              = "--body"
	limitFlagConstant                             = "--limit"
	methodFlagConstant                            = "-X"
	inputFlagConstant                             = "--input"
	stdinReferenceConstant                        = "-"
	acceptHeaderFlagConstant                      = "-H"
	acceptHeaderValueConstant                     = "Accept: application/vnd.github+json"
	httpMethodPutConstant                         = "PUT"
	httpMethodPostConstant                        = "POST"
	organizationFieldNameConstant                 = "organization"
	repositoryFieldNameConstant                   = "repository"
	branchFieldNameConstant                       = "branch"
	pathFieldNameConstant                         = "path"
	shaFieldNameConstant                          = "sha"
	titleFieldNameConstant                        = "title"
	requiredValueMessageConstant                  = "value required"
	repositoryListLimitDefaultValueConstant       = 1000
	contentCacheSizeDefaultValueConstant          = 512
	repositoryListJSONFieldsConstant              = "name,nameWithOwner,isArchived,defaultBranchRef,pushedAt"
	customPropertiesEndpointTemplateConstant      = "repos/%s/properties/values"
	listRepositoriesOperationNameConstant         = OperationName("ListOrganizationRepositories")
	listCustomPropertiesOperationNameConstant     = OperationName("ListCustomProperties")
	customPropertyValueSeparatorConstant          = ","
	customPropertyNullLiteralConstant             = "null"
	contentCacheConstructionErrorTemplateConstant = "content cache construction failed: %w"
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// OrganizationRepository describes one repository returned by gh repo list.
type OrganizationRepository struct {
	Name          string
	NameWithOwner string
	DefaultBranch string
	IsArchived    bool
	PushedAt      string
}

// CustomPropertyValue is a single organization custom property assigned to a repository.
type CustomPropertyValue struct {
	PropertyName string
	Value        string
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// ClientOption customizes a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	environment      map[string]string
	contentCacheSize int
}

// WithEnvironment sets environment variables passed to every gh invocation.
func WithEnvironment(environment map[string]string) ClientOption {
	return func(options *clientOptions) {
		options.environment = environment
	}
}

// WithContentCacheSize bounds the number of file reads remembered by the client.
func WithContentCacheSize(size int) ClientOption {
	return func(options *clientOptions) {
		options.contentCacheSize = size
	}
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor     GitHubCommandExecutor
	environment  map[string]string
	contentCache *lru.Cache[contentCacheKey, cachedContent]
}

// NewClient constructs a GitHub CLI client.
func NewClient(executor GitHubCommandExecutor, options ...ClientOption) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}

	resolvedOptions := clientOptions{contentCacheSize: contentCacheSizeDefaultValueConstant}
	for _, option := range options {
		if option != nil {
			option(&resolvedOptions)
		}
	}
	if resolvedOptions.contentCacheSize <= 0 {
		resolvedOptions.contentCacheSize = contentCacheSizeDefaultValueConstant
	}

	contentCache, cacheError := lru.New[contentCacheKey, cachedContent](resolvedOptions.contentCacheSize)
	if cacheError != nil {
		return nil, fmt.Errorf(contentCacheConstructionErrorTemplateConstant, cacheError)
	}

	environment := make(map[string]string, len(resolvedOptions.environment))
	for key, value := range resolvedOptions.environment {
		environment[key] = value
	}

	return &Client{executor: executor, environment: environment, contentCache: contentCache}, nil
}

// ListOrganizationRepositories enumerates repositories of an organization using gh repo list.
func (client *Client) ListOrganizationRepositories(executionContext context.Context, organization string, limit int) ([]OrganizationRepository, error) {
	organizationName := strings.TrimSpace(organization)
	if len(organizationName) == 0 {
		return nil, InvalidInputError{FieldName: organizationFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if limit <= 0 {
		limit = repositoryListLimitDefaultValueConstant
	}

	executionResult, executionError := client.execute(executionContext, []string{
		repoSubcommandConstant,
		listSubcommandConstant,
		organizationName,
		jsonFlagConstant,
		repositoryListJSONFieldsConstant,
		limitFlagConstant,
		strconv.Itoa(limit),
	}, nil)
	if executionError != nil {
		return nil, OperationError{Operation: listRepositoriesOperationNameConstant, Cause: executionError}
	}

	var response []struct {
		Name             string `json:"name"`
		NameWithOwner    string `json:"nameWithOwner"`
		IsArchived       bool   `json:"isArchived"`
		PushedAt         string `json:"pushedAt"`
		DefaultBranchRef struct {
			Name string `json:"name"`
		} `json:"defaultBranchRef"`
	}
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return nil, ResponseDecodingError{Operation: listRepositoriesOperationNameConstant, Cause: decodingError}
	}

	repositories := make([]OrganizationRepository, 0, len(response))
	for _, repositoryEntry := range response {
		repositories = append(repositories, OrganizationRepository{
			Name:          repositoryEntry.Name,
			NameWithOwner: repositoryEntry.NameWithOwner,
			DefaultBranch: repositoryEntry.DefaultBranchRef.Name,
			IsArchived:    repositoryEntry.IsArchived,
			PushedAt:      repositoryEntry.PushedAt,
		})
	}
	return repositories, nil
}

// ListCustomProperties returns the custom property values assigned to a repository.
// Multi-valued properties are joined with commas; unset properties are omitted.
func (client *Client) ListCustomProperties(executionContext context.Context, repository string) ([]CustomPropertyValue, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := client.execute(executionContext, []string{
		apiSubcommandConstant,
		fmt.Sprintf(customPropertiesEndpointTemplateConstant, repositoryIdentifier),
		acceptHeaderFlagConstant,
		acceptHeaderValueConstant,
	}, nil)
	if executionError != nil {
		return nil, OperationError{Operation: listCustomPropertiesOperationNameConstant, Cause: executionError}
	}

	var response []struct {
		PropertyName string          `json:"property_name"`
		Value        json.RawMessage `json:"value"`
	}
	if decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response); decodingError != nil {
		return nil, ResponseDecodingError{Operation: listCustomPropertiesOperationNameConstant, Cause: decodingError}
	}

	properties := make([]CustomPropertyValue, 0, len(response))
	for _, propertyEntry := range response {
		rawValue := strings.TrimSpace(string(propertyEntry.Value))
		if len(rawValue) == 0 || rawValue == customPropertyNullLiteralConstant {
			continue
		}

		var singleValue string
		if json.Unmarshal(propertyEntry.Value, &singleValue) == nil {
			properties = append(properties, CustomPropertyValue{PropertyName: propertyEntry.PropertyName, Value: singleValue})
			continue
		}

		var multipleValues []string
		if decodingError := json.Unmarshal(propertyEntry.Value, &multipleValues); decodingError != nil {
			return nil, ResponseDecodingError{Operation: listCustomPropertiesOperationNameConstant, Cause: decodingError}
		}
		properties = append(properties, CustomPropertyValue{
			PropertyName: propertyEntry.PropertyName,
			Value:        strings.Join(multipleValues, customPropertyValueSeparatorConstant),
		})
	}
	return properties, nil
}

func (client *Client) execute(executionContext context.Context, arguments []string, standardInput []byte) (execshell.ExecutionResult, error) {
	return client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		EnvironmentVariables: client.environment,
		StandardInput:        standardInput,
	})
}
