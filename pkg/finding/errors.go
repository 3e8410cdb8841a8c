package finding

import "errors"

// Sentinel errors for malformed report data.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidSeverity indicates a severity with an empty label or a
	// color that is not a six digit hex value.
	ErrInvalidSeverity = errors.New("finding: invalid severity")

	// ErrDuplicateEvidence indicates two evidence items in the same scope
	// share a friendly name.
	ErrDuplicateEvidence = errors.New("finding: duplicate evidence name")
)
