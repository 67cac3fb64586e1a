package overrides

import (
	"fmt"
	"strings"
)

const (
	overrideParseErrorTemplateConstant        = "override rules %s: %v"
	overrideParseLocatedErrorTemplateConstant = "override rules %s: %s: %v"
	ambiguousScopeErrorTemplateConstant       = "override rules: scope %s is declared more than once with conflicting %s"
	ambiguousScopeFieldSeparatorConstant      = ", "
	detectionMismatchErrorTemplateConstant    = "detection belongs to %s, not %s"
)

// OverrideParseError reports a malformed rule source: syntax, unknown keys, invalid enum values,
// or invalid version constraints.
type OverrideParseError struct {
	Source   string
	Location string
	Cause    error
}

// Error describes the parse failure.
func (parseError OverrideParseError) Error() string {
	if len(parseError.Location) == 0 {
		return fmt.Sprintf(overrideParseErrorTemplateConstant, parseError.Source, parseError.Cause)
	}
	return fmt.Sprintf(overrideParseLocatedErrorTemplateConstant, parseError.Source, parseError.Location, parseError.Cause)
}

// Unwrap exposes the underlying decoder or validation error.
func (parseError OverrideParseError) Unwrap() error {
	return parseError.Cause
}

// AmbiguousScopeError reports two rule sections that resolve to the same scope and disagree.
type AmbiguousScopeError struct {
	Scope  string
	Fields []string
}

// Error describes the conflict.
func (scopeError AmbiguousScopeError) Error() string {
	return fmt.Sprintf(ambiguousScopeErrorTemplateConstant, scopeError.Scope, strings.Join(scopeError.Fields, ambiguousScopeFieldSeparatorConstant))
}

// DetectionMismatchError reports a detection result passed for a different repository.
type DetectionMismatchError struct {
	Expected string
	Actual   string
}

// Error describes the mismatch.
func (mismatchError DetectionMismatchError) Error() string {
	return fmt.Sprintf(detectionMismatchErrorTemplateConstant, mismatchError.Actual, mismatchError.Expected)
}
