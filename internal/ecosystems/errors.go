package ecosystems

import "fmt"

const (
	detectionListErrorTemplateConstant = "ecosystem detection for %s: listing files: %v"
	detectionReadErrorTemplateConstant = "ecosystem detection for %s: reading %s: %v"
	invalidExclusionTemplateConstant   = "invalid exclusion pattern %q: %w"
	invalidManifestTemplateConstant    = "invalid manifest pattern %q for %s: %w"
)

// DetectionIOError reports a tree source failure during detection.
type DetectionIOError struct {
	Repository string
	Path       string
	Cause      error
}

// Error describes the failure.
func (detectionError DetectionIOError) Error() string {
	if len(detectionError.Path) == 0 {
		return fmt.Sprintf(detectionListErrorTemplateConstant, detectionError.Repository, detectionError.Cause)
	}
	return fmt.Sprintf(detectionReadErrorTemplateConstant, detectionError.Repository, detectionError.Path, detectionError.Cause)
}

// Unwrap exposes the tree source error.
func (detectionError DetectionIOError) Unwrap() error {
	return detectionError.Cause
}
