package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/depbot/internal/dependabot"
	"github.com/temirov/depbot/internal/githubcli"
	"github.com/temirov/depbot/internal/repos/shared"
)

const (
	locatorNotConfiguredMessageConstant = "pull request locator not configured"
	branchNotConfiguredMessageConstant  = "update branch not configured"
	pullRequestLookupTemplateConstant   = "look up open pull request for %s on %s: %w"
	compareDocumentsTemplateConstant    = "compare dependabot documents: %w"
)

var (
	// ErrPullRequestLocatorNotConfigured indicates a Reconciler built without a locator.
	ErrPullRequestLocatorNotConfigured = errors.New(locatorNotConfiguredMessageConstant)
	// ErrUpdateBranchNotConfigured indicates a Reconciler built without an update branch.
	ErrUpdateBranchNotConfigured = errors.New(branchNotConfiguredMessageConstant)
)

// PullRequestLocator finds an open pull request from a head branch.
type PullRequestLocator interface {
	FindOpenPullRequest(executionContext context.Context, repository string, branch string) (githubcli.PullRequest, bool, error)
}

// Classify decides the action for a repository without any I/O.
func Classify(existing *dependabot.ConfigDocument, synthesized dependabot.ConfigDocument, flags Flags, hasOpenPullRequest bool) (Action, error) {
	if flags.OnlyExisting && !hasOpenPullRequest {
		return Skip(SkipReasonOnlyExistingWithoutPullRequest), nil
	}
	if existing == nil {
		if !flags.ForceNew {
			return Skip(SkipReasonNoExistingConfiguration), nil
		}
		return Action{Kind: ActionCreate, Document: synthesized}, nil
	}

	equal, compareError := dependabot.Equal(*existing, synthesized)
	if compareError != nil {
		return Action{}, fmt.Errorf(compareDocumentsTemplateConstant, compareError)
	}
	if equal {
		return Action{Kind: ActionNoChange, Existing: existing, Document: synthesized}, nil
	}
	return Action{Kind: ActionUpdate, Existing: existing, Document: synthesized}, nil
}

// Reconciler classifies repositories, consulting open pull requests when required.
type Reconciler struct {
	locator      PullRequestLocator
	updateBranch string
}

// NewReconciler constructs a Reconciler that looks up pull requests from updateBranch.
func NewReconciler(locator PullRequestLocator, updateBranch string) (*Reconciler, error) {
	if locator == nil {
		return nil, ErrPullRequestLocatorNotConfigured
	}
	if len(updateBranch) == 0 {
		return nil, ErrUpdateBranchNotConfigured
	}
	return &Reconciler{locator: locator, updateBranch: updateBranch}, nil
}

// Reconcile decides the action for one repository. The pull request lookup only happens when
// flags.OnlyExisting is set; its failure is returned for the caller to report.
func (reconciler *Reconciler) Reconcile(executionContext context.Context, repository shared.RepositoryIdentity, existing *dependabot.ConfigDocument, synthesized dependabot.ConfigDocument, flags Flags) (Action, error) {
	hasOpenPullRequest := false
	if flags.OnlyExisting {
		_, found, lookupError := reconciler.locator.FindOpenPullRequest(executionContext, repository.String(), reconciler.updateBranch)
		if lookupError != nil {
			return Action{}, fmt.Errorf(pullRequestLookupTemplateConstant, repository, reconciler.updateBranch, lookupError)
		}
		hasOpenPullRequest = found
	}
	return Classify(existing, synthesized, flags, hasOpenPullRequest)
}
