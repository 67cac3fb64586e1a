package orgsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/depbot/internal/dependabot"
	"github.com/temirov/depbot/internal/ecosystemcache"
	"github.com/temirov/depbot/internal/ecosystems"
	"github.com/temirov/depbot/internal/githubcli"
	"github.com/temirov/depbot/internal/overrides"
	"github.com/temirov/depbot/internal/reconcile"
	"github.com/temirov/depbot/internal/repos/shared"
)

const (
	commitMessageConstant    = "Update dependabot config"
	pullRequestTitleConstant = "Update dependabot config"
	pullRequestBodyConstant  = "This pull request was generated by depbot from the organization override rules.\n\n" +
		"Changes to `.github/dependabot.yml` belong in the override rules; edits made here are overwritten on the next sync."

	skipReasonNoEcosystemsConstant        = "no ecosystems detected"
	skipReasonNoDefaultBranchConstant     = "repository has no default branch"
	skipReasonExcludedTemplateConstant    = "excluded by custom property %s=%s"
	skipReasonInvariantViolationConstant  = "internal invariant violated"
	failedOutcomeLabelConstant            = "failed"
	invariantViolationOutcomeLabel        = "invariant_violation"
	ecosystemListSeparatorConstant        = ", "
	repositorySummaryTemplateConstant     = "%s: ecosystems [%s]: %s"
	repositoryFailureSuffixTemplate       = " (failed: %v)"
	repositoryPullRequestSuffixTemplate   = " (%s)"
	repositoryLineTerminatorConstant      = "\n"
	verboseDocumentTemplateConstant       = "# %s %s\n%s\n"
	dryRunTemplateConstant                = "%s: dry run, would %s %s on branch %s and open a pull request\n"
	runSummaryTemplateConstant            = "Processed %d repositories: %d created, %d updated, %d unchanged, %d skipped, %d failed\n"
	listRepositoriesErrorTemplateConstant = "list repositories of %s: %w"
	invariantViolationsTemplateConstant   = "%w: %d repositories"
	renderDocumentErrorTemplateConstant   = "render dependabot document: %w"
	ensureBranchErrorTemplateConstant     = "ensure branch %s: %w"
	writeDocumentErrorTemplateConstant    = "write %s on %s: %w"
	pullRequestErrorTemplateConstant      = "open pull request from %s: %w"

	hostNotConfiguredMessageConstant     = "repository host not configured"
	detectorNotConfiguredMessageConstant = "ecosystem detector not configured"
	invariantViolationsMessageConstant   = "dependabot documents violated internal invariants"

	repositoryArchivedSkippedMessage    = "archived repository skipped"
	repositoryFilterUnmatchedMessage    = "requested repository not found in organization"
	repositoryFetchFailedMessage        = "repository data could not be fetched"
	repositoryInvariantViolatedMessage  = "dependabot document violated an internal invariant"
	repositoryReconciledMessageConstant = "repository reconciled"
	repositoryDispatchFailedMessage     = "dependabot document could not be written"
	existingDocumentUnparsableMessage   = "committed dependabot document is not valid YAML, treating as outdated"
	ecosystemCacheHitMessageConstant    = "ecosystem cache hit"
	logFieldRepositoryConstant          = "repository"
	logFieldActionConstant              = "action"
	logFieldEcosystemsConstant          = "ecosystems"
	logFieldReferenceConstant           = "reference"
	logFieldPullRequestConstant         = "pull_request"
)

var (
	// ErrRepositoryHostNotConfigured indicates the service was built without a repository host.
	ErrRepositoryHostNotConfigured = errors.New(hostNotConfiguredMessageConstant)
	// ErrDetectorNotConfigured indicates the service was built without an ecosystem detector.
	ErrDetectorNotConfigured = errors.New(detectorNotConfiguredMessageConstant)
	// ErrInvariantViolations reports a run in which at least one repository hit an internal invariant error.
	ErrInvariantViolations = errors.New(invariantViolationsMessageConstant)
)

// Options captures the parameters of one sync run.
type Options struct {
	Organization           string
	Repositories           []string
	Flags                  reconcile.Flags
	Verbose                bool
	Concurrency            int
	RepositoryLimit        int
	ExcludedProperty       string
	ExcludedPropertyValues []string
}

// RepositoryOutcome is the result of processing one repository.
type RepositoryOutcome struct {
	Repository         shared.RepositoryIdentity
	Ecosystems         []string
	Action             reconcile.Action
	PullRequestURL     string
	Err                error
	Failed             bool
	InvariantViolation bool
}

func (outcome RepositoryOutcome) metricsLabel() string {
	switch {
	case outcome.InvariantViolation:
		return invariantViolationOutcomeLabel
	case outcome.Failed:
		return failedOutcomeLabelConstant
	default:
		return outcome.Action.Kind.String()
	}
}

func (outcome RepositoryOutcome) summaryLine() string {
	line := fmt.Sprintf(repositorySummaryTemplateConstant, outcome.Repository, strings.Join(outcome.Ecosystems, ecosystemListSeparatorConstant), outcome.Action.Summary())
	if outcome.Failed && outcome.Err != nil {
		line += fmt.Sprintf(repositoryFailureSuffixTemplate, outcome.Err)
	}
	if len(outcome.PullRequestURL) > 0 {
		line += fmt.Sprintf(repositoryPullRequestSuffixTemplate, outcome.PullRequestURL)
	}
	return line + repositoryLineTerminatorConstant
}

// RunSummary aggregates the outcomes of a run.
type RunSummary struct {
	Outcomes            []RepositoryOutcome
	Counts              map[reconcile.ActionKind]int
	Failed              int
	InvariantViolations int
}

// Dependencies groups the collaborators of a Service.
type Dependencies struct {
	Logger   *zap.Logger
	Host     RepositoryHost
	Detector *ecosystems.Detector
	Cache    *ecosystemcache.Cache
	Rules    overrides.RuleSet
	Reporter shared.Reporter
	Metrics  *RunMetrics
}

// Service reconciles the Dependabot configuration of every repository of an organization.
type Service struct {
	logger       *zap.Logger
	host         RepositoryHost
	detector     *ecosystems.Detector
	cache        *ecosystemcache.Cache
	rules        overrides.RuleSet
	reporter     shared.Reporter
	metrics      *RunMetrics
	reconciler   *reconcile.Reconciler
	updateBranch string
}

// NewService validates dependencies and constructs a Service that proposes changes on updateBranch.
func NewService(dependencies Dependencies, updateBranch string) (*Service, error) {
	if dependencies.Host == nil {
		return nil, ErrRepositoryHostNotConfigured
	}
	if dependencies.Detector == nil {
		return nil, ErrDetectorNotConfigured
	}
	reconciler, reconcilerError := reconcile.NewReconciler(dependencies.Host, updateBranch)
	if reconcilerError != nil {
		return nil, reconcilerError
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := dependencies.Cache
	if cache == nil {
		cache = ecosystemcache.New()
	}
	reporter := dependencies.Reporter
	if reporter == nil {
		reporter = shared.NewWriterReporter(nil)
	}

	return &Service{
		logger:       logger,
		host:         dependencies.Host,
		detector:     dependencies.Detector,
		cache:        cache,
		rules:        dependencies.Rules,
		reporter:     reporter,
		metrics:      dependencies.Metrics,
		reconciler:   reconciler,
		updateBranch: updateBranch,
	}, nil
}

// Run processes the selected repositories on a bounded worker pool. Cancellation stops new
// repositories from starting; a repository already started runs to completion on a context
// detached from the cancellation.
func (service *Service) Run(executionContext context.Context, options Options) (RunSummary, error) {
	repositories, listError := service.host.ListOrganizationRepositories(executionContext, options.Organization, options.RepositoryLimit)
	if listError != nil {
		return RunSummary{}, fmt.Errorf(listRepositoriesErrorTemplateConstant, options.Organization, listError)
	}
	selectedRepositories := service.selectRepositories(repositories, options)

	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrencyConstant
	}

	outcomes := make([]RepositoryOutcome, len(selectedRepositories))
	processed := make([]bool, len(selectedRepositories))
	var workers errgroup.Group
	workers.SetLimit(concurrency)
	for repositoryIndex, repository := range selectedRepositories {
		if executionContext.Err() != nil {
			break
		}
		workers.Go(func() error {
			if executionContext.Err() != nil {
				return nil
			}
			outcomes[repositoryIndex] = service.processRepository(context.WithoutCancel(executionContext), options.Organization, repository, options)
			processed[repositoryIndex] = true
			service.reporter.Printf("%s", outcomes[repositoryIndex].summaryLine())
			return nil
		})
	}
	if waitError := workers.Wait(); waitError != nil {
		return RunSummary{}, waitError
	}

	summary := summarize(outcomes, processed)
	service.reporter.Printf(runSummaryTemplateConstant,
		len(summary.Outcomes),
		summary.Counts[reconcile.ActionCreate],
		summary.Counts[reconcile.ActionUpdate],
		summary.Counts[reconcile.ActionNoChange],
		summary.Counts[reconcile.ActionSkip],
		summary.Failed,
	)

	if contextError := executionContext.Err(); contextError != nil {
		return summary, contextError
	}
	if summary.InvariantViolations > 0 {
		return summary, fmt.Errorf(invariantViolationsTemplateConstant, ErrInvariantViolations, summary.InvariantViolations)
	}
	return summary, nil
}

func (service *Service) selectRepositories(repositories []githubcli.OrganizationRepository, options Options) []githubcli.OrganizationRepository {
	requestedNames := make(map[string]bool, len(options.Repositories))
	for _, requestedName := range options.Repositories {
		requestedNames[strings.ToLower(requestedName)] = false
	}

	selectedRepositories := make([]githubcli.OrganizationRepository, 0, len(repositories))
	for _, repository := range repositories {
		if repository.IsArchived {
			service.logger.Debug(repositoryArchivedSkippedMessage, zap.String(logFieldRepositoryConstant, repository.NameWithOwner))
			continue
		}
		if len(requestedNames) > 0 {
			normalizedName := strings.ToLower(repository.Name)
			if _, requested := requestedNames[normalizedName]; !requested {
				continue
			}
			requestedNames[normalizedName] = true
		}
		selectedRepositories = append(selectedRepositories, repository)
	}

	for _, requestedName := range options.Repositories {
		if !requestedNames[strings.ToLower(requestedName)] {
			service.logger.Warn(repositoryFilterUnmatchedMessage, zap.String(logFieldRepositoryConstant, requestedName))
		}
	}

	slices.SortFunc(selectedRepositories, func(left githubcli.OrganizationRepository, right githubcli.OrganizationRepository) int {
		return strings.Compare(strings.ToLower(left.Name), strings.ToLower(right.Name))
	})
	return selectedRepositories
}

func (service *Service) processRepository(executionContext context.Context, organization string, repository githubcli.OrganizationRepository, options Options) RepositoryOutcome {
	startTime := time.Now()
	outcome := service.evaluateRepository(executionContext, organization, repository, options)
	service.metrics.observeRepository(outcome.metricsLabel(), time.Since(startTime))

	logFields := []zap.Field{
		zap.String(logFieldRepositoryConstant, outcome.Repository.String()),
		zap.String(logFieldActionConstant, outcome.Action.Summary()),
		zap.Strings(logFieldEcosystemsConstant, outcome.Ecosystems),
	}
	switch {
	case outcome.InvariantViolation:
		service.logger.Error(repositoryInvariantViolatedMessage, append(logFields, zap.Error(outcome.Err))...)
	case outcome.Failed:
		service.logger.Error(repositoryDispatchFailedMessage, append(logFields, zap.Error(outcome.Err))...)
	case outcome.Err != nil:
		service.logger.Warn(repositoryFetchFailedMessage, append(logFields, zap.Error(outcome.Err))...)
	default:
		service.logger.Info(repositoryReconciledMessageConstant, append(logFields, zap.String(logFieldPullRequestConstant, outcome.PullRequestURL))...)
	}
	return outcome
}

func (service *Service) evaluateRepository(executionContext context.Context, organization string, repository githubcli.OrganizationRepository, options Options) RepositoryOutcome {
	identity, identityError := repositoryIdentity(organization, repository)
	if identityError != nil {
		return RepositoryOutcome{Repository: identity, Action: reconcile.Skip(reconcile.SkipReasonFetchError), Err: identityError}
	}
	outcome := RepositoryOutcome{Repository: identity}
	repositoryName := identity.String()

	if len(strings.TrimSpace(repository.DefaultBranch)) == 0 {
		outcome.Action = reconcile.Skip(skipReasonNoDefaultBranchConstant)
		return outcome
	}

	if len(options.ExcludedProperty) > 0 && len(options.ExcludedPropertyValues) > 0 {
		excludedValue, excluded, propertiesError := service.excludedByProperty(executionContext, repositoryName, options)
		if propertiesError != nil {
			return fetchFailure(outcome, propertiesError)
		}
		if excluded {
			outcome.Action = reconcile.Skip(fmt.Sprintf(skipReasonExcludedTemplateConstant, options.ExcludedProperty, excludedValue))
			return outcome
		}
	}

	detection, detectionError := service.detect(executionContext, identity, repository)
	if detectionError != nil {
		return fetchFailure(outcome, detectionError)
	}

	directives, resolveError := overrides.Resolve(identity, detection, service.rules)
	if resolveError != nil {
		return invariantFailure(outcome, resolveError)
	}
	outcome.Ecosystems = directiveEcosystems(directives)
	if len(directives) == 0 {
		outcome.Action = reconcile.Skip(skipReasonNoEcosystemsConstant)
		return outcome
	}

	document, synthesizeError := dependabot.Synthesize(directives, service.rules.Registries())
	if synthesizeError != nil {
		return invariantFailure(outcome, synthesizeError)
	}
	content, renderError := dependabot.Render(document)
	if renderError != nil {
		return invariantFailure(outcome, fmt.Errorf(renderDocumentErrorTemplateConstant, renderError))
	}
	if options.Verbose {
		service.reporter.Printf(verboseDocumentTemplateConstant, repositoryName, dependabot.ConfigurationPath, content)
	}

	existing, existingError := service.readExistingDocument(executionContext, repositoryName, repository.DefaultBranch)
	if existingError != nil {
		return fetchFailure(outcome, existingError)
	}

	action, reconcileError := service.reconciler.Reconcile(executionContext, identity, existing.document, document, options.Flags)
	if reconcileError != nil {
		return fetchFailure(outcome, reconcileError)
	}
	outcome.Action = action
	if !action.RequiresWrite() {
		return outcome
	}

	if !options.Flags.CreatePullRequest {
		service.reporter.Printf(dryRunTemplateConstant, repositoryName, action.Kind, dependabot.ConfigurationPath, service.updateBranch)
		return outcome
	}

	pullRequestURL, dispatchError := service.dispatch(executionContext, repositoryName, repository.DefaultBranch, existing, content)
	if dispatchError != nil {
		outcome.Err = dispatchError
		outcome.Failed = true
		return outcome
	}
	outcome.PullRequestURL = pullRequestURL
	return outcome
}

func (service *Service) excludedByProperty(executionContext context.Context, repositoryName string, options Options) (string, bool, error) {
	properties, propertiesError := service.host.ListCustomProperties(executionContext, repositoryName)
	if propertiesError != nil {
		return "", false, propertiesError
	}
	for _, property := range properties {
		if !strings.EqualFold(property.PropertyName, options.ExcludedProperty) {
			continue
		}
		for _, excludedValue := range options.ExcludedPropertyValues {
			if strings.EqualFold(property.Value, excludedValue) {
				return property.Value, true, nil
			}
		}
	}
	return "", false, nil
}

func (service *Service) detect(executionContext context.Context, identity shared.RepositoryIdentity, repository githubcli.OrganizationRepository) (ecosystems.DetectionResult, error) {
	fingerprint := Fingerprint(repository.DefaultBranch, repository.PushedAt, service.detector.ExclusionsDigest())
	lookup := service.cache.Get(identity, fingerprint)
	service.metrics.observeCacheLookup(lookup)
	if lookup.Hit() {
		service.logger.Debug(ecosystemCacheHitMessageConstant, zap.String(logFieldRepositoryConstant, identity.String()))
		return lookup.Result, nil
	}

	treeSource := hostTreeSource{host: service.host, logger: service.logger, repository: identity.String(), reference: repository.DefaultBranch}
	detection, detectionError := service.detector.Detect(executionContext, identity, fingerprint, treeSource)
	if detectionError != nil {
		return ecosystems.DetectionResult{}, detectionError
	}
	service.cache.Put(identity, fingerprint, detection)
	service.metrics.observeDetection(detection)
	return detection, nil
}

type existingDocument struct {
	branchExists bool
	document     *dependabot.ConfigDocument
	fileSHA      string
}

func (service *Service) readExistingDocument(executionContext context.Context, repositoryName string, defaultBranch string) (existingDocument, error) {
	var existing existingDocument
	_, headError := service.host.GetBranchHead(executionContext, repositoryName, service.updateBranch)
	switch {
	case headError == nil:
		existing.branchExists = true
	case !githubcli.IsNotFound(headError):
		return existingDocument{}, headError
	}

	reference := defaultBranch
	if existing.branchExists {
		reference = service.updateBranch
	}
	fileContent, readError := service.host.GetFileContent(executionContext, repositoryName, dependabot.ConfigurationPath, reference)
	if readError != nil {
		if githubcli.IsNotFound(readError) {
			return existing, nil
		}
		return existingDocument{}, readError
	}

	existing.fileSHA = fileContent.SHA
	document, parseError := dependabot.ParseDocument(fileContent.Content)
	if parseError != nil {
		service.logger.Warn(existingDocumentUnparsableMessage,
			zap.String(logFieldRepositoryConstant, repositoryName),
			zap.String(logFieldReferenceConstant, reference),
			zap.Error(parseError),
		)
		document = dependabot.ConfigDocument{}
	}
	existing.document = &document
	return existing, nil
}

func (service *Service) dispatch(executionContext context.Context, repositoryName string, defaultBranch string, existing existingDocument, content []byte) (string, error) {
	if !existing.branchExists {
		headSHA, headError := service.host.GetBranchHead(executionContext, repositoryName, defaultBranch)
		if headError != nil {
			return "", fmt.Errorf(ensureBranchErrorTemplateConstant, service.updateBranch, headError)
		}
		if createError := service.host.CreateBranch(executionContext, repositoryName, service.updateBranch, headSHA); createError != nil {
			return "", fmt.Errorf(ensureBranchErrorTemplateConstant, service.updateBranch, createError)
		}
	}

	write := githubcli.FileWrite{
		Path:          dependabot.ConfigurationPath,
		Branch:        service.updateBranch,
		Content:       content,
		CommitMessage: commitMessageConstant,
		ExistingSHA:   existing.fileSHA,
	}
	if writeError := service.host.PutFileContent(executionContext, repositoryName, write); writeError != nil {
		return "", fmt.Errorf(writeDocumentErrorTemplateConstant, dependabot.ConfigurationPath, service.updateBranch, writeError)
	}

	openPullRequest, found, lookupError := service.host.FindOpenPullRequest(executionContext, repositoryName, service.updateBranch)
	if lookupError != nil {
		return "", fmt.Errorf(pullRequestErrorTemplateConstant, service.updateBranch, lookupError)
	}
	if found {
		return openPullRequest.URL, nil
	}

	pullRequestURL, createError := service.host.CreatePullRequest(executionContext, repositoryName, githubcli.PullRequestRequest{
		HeadBranch: service.updateBranch,
		BaseBranch: defaultBranch,
		Title:      pullRequestTitleConstant,
		Body:       pullRequestBodyConstant,
	})
	if createError != nil {
		return "", fmt.Errorf(pullRequestErrorTemplateConstant, service.updateBranch, createError)
	}
	return pullRequestURL, nil
}

func repositoryIdentity(organization string, repository githubcli.OrganizationRepository) (shared.RepositoryIdentity, error) {
	if identity, parseError := shared.ParseRepositoryIdentity(repository.NameWithOwner); parseError == nil {
		return identity, nil
	}
	return shared.NewRepositoryIdentity(organization, repository.Name)
}

func directiveEcosystems(directives []overrides.UpdateDirective) []string {
	var ecosystemNames []string
	for _, directive := range directives {
		if len(ecosystemNames) > 0 && ecosystemNames[len(ecosystemNames)-1] == string(directive.Ecosystem) {
			continue
		}
		ecosystemNames = append(ecosystemNames, string(directive.Ecosystem))
	}
	return ecosystemNames
}

func fetchFailure(outcome RepositoryOutcome, fetchError error) RepositoryOutcome {
	outcome.Action = reconcile.Skip(reconcile.SkipReasonFetchError)
	outcome.Err = fetchError
	return outcome
}

func invariantFailure(outcome RepositoryOutcome, invariantError error) RepositoryOutcome {
	outcome.Action = reconcile.Skip(skipReasonInvariantViolationConstant)
	outcome.Err = invariantError
	outcome.Failed = true
	outcome.InvariantViolation = true
	return outcome
}

func summarize(outcomes []RepositoryOutcome, processed []bool) RunSummary {
	summary := RunSummary{Counts: make(map[reconcile.ActionKind]int)}
	for outcomeIndex, outcome := range outcomes {
		if !processed[outcomeIndex] {
			continue
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		switch {
		case outcome.InvariantViolation:
			summary.Failed++
			summary.InvariantViolations++
		case outcome.Failed:
			summary.Failed++
		default:
			summary.Counts[outcome.Action.Kind]++
		}
	}
	return summary
}
