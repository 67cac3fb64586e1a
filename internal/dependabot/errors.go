package dependabot

import "fmt"

const (
	internalInvariantErrorTemplateConstant = "dependabot document for %s violates an invariant: %s"
	documentParseErrorTemplateConstant     = "parse dependabot document: %v"
)

// InternalInvariantError reports directives that cannot form a valid document. It indicates a
// defect upstream and the document must never be written.
type InternalInvariantError struct {
	Repository string
	Reason     string
}

// Error describes the violated invariant.
func (invariantError InternalInvariantError) Error() string {
	return fmt.Sprintf(internalInvariantErrorTemplateConstant, invariantError.Repository, invariantError.Reason)
}

// DocumentParseError reports committed content that is not valid YAML.
type DocumentParseError struct {
	Cause error
}

// Error describes the parse failure.
func (parseError DocumentParseError) Error() string {
	return fmt.Sprintf(documentParseErrorTemplateConstant, parseError.Cause)
}

// Unwrap exposes the YAML decoder error.
func (parseError DocumentParseError) Unwrap() error {
	return parseError.Cause
}
