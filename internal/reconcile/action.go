package reconcile

import (
	"github.com/temirov/depbot/internal/dependabot"
)

const (
	// SkipReasonOnlyExistingWithoutPullRequest is used when only existing pull requests may be updated.
	SkipReasonOnlyExistingWithoutPullRequest = "only-existing set, no open PR"
	// SkipReasonNoExistingConfiguration is used when a repository has no document and creation was not requested.
	SkipReasonNoExistingConfiguration = "no existing config, force-new not set"
	// SkipReasonFetchError is used when repository data could not be read.
	SkipReasonFetchError = "fetch error"

	skipSummaryPrefixConstant = "skip: "
)

// ActionKind enumerates reconciliation outcomes.
type ActionKind int

// Reconciliation outcomes.
const (
	ActionNoChange ActionKind = iota
	ActionCreate
	ActionUpdate
	ActionSkip
)

var actionKindNames = map[ActionKind]string{
	ActionNoChange: "no-change",
	ActionCreate:   "create",
	ActionUpdate:   "update",
	ActionSkip:     "skip",
}

// String names the action kind.
func (kind ActionKind) String() string {
	return actionKindNames[kind]
}

// Action is the terminal reconciliation decision for one repository.
type Action struct {
	Kind     ActionKind
	Existing *dependabot.ConfigDocument
	Document dependabot.ConfigDocument
	Reason   string
}

// Summary renders the action for the per-repository report line.
func (action Action) Summary() string {
	if action.Kind == ActionSkip {
		return skipSummaryPrefixConstant + action.Reason
	}
	return action.Kind.String()
}

// RequiresWrite reports whether the action changes the repository.
func (action Action) RequiresWrite() bool {
	return action.Kind == ActionCreate || action.Kind == ActionUpdate
}

// Skip builds a skip action with the provided reason.
func Skip(reason string) Action {
	return Action{Kind: ActionSkip, Reason: reason}
}

// Flags carries the run options that influence reconciliation.
type Flags struct {
	CreatePullRequest bool
	ForceNew          bool
	OnlyExisting      bool
}
