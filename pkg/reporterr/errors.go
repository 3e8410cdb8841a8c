// Package reporterr defines the error taxonomy shared by every stage of
// report generation.
//
// Callers distinguish categories with errors.Is against the sentinels and
// errors.As against the typed errors. Every error that crosses a package
// boundary is eventually wrapped with WithLocation so a failure deep inside
// a nested rich-text field can be traced back to the field it came from.
package reporterr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure categories of the pipeline.
var (
	// ErrTemplateSyntax indicates a malformed template expression, either in
	// a skeleton document or in rich-text source.
	ErrTemplateSyntax = errors.New("reporterr: template syntax error")

	// ErrInvalidFilterValue indicates a template filter received input of
	// the wrong shape.
	ErrInvalidFilterValue = errors.New("reporterr: invalid filter value")

	// ErrEvidenceNotFound indicates an evidence file is absent on disk.
	ErrEvidenceNotFound = errors.New("reporterr: evidence file not found")

	// ErrUnrecognizedImage indicates evidence image data could not be
	// decoded.
	ErrUnrecognizedImage = errors.New("reporterr: unrecognized image")

	// ErrUnknownEvidence indicates a marker names evidence that is not in
	// scope for the field being rendered.
	ErrUnknownEvidence = errors.New("reporterr: unknown evidence")

	// ErrCircularReference indicates a lazily rendered field was re-entered
	// while it was still rendering.
	ErrCircularReference = errors.New("reporterr: circular reference")

	// ErrTemplateNotFound indicates the skeleton template file is missing.
	ErrTemplateNotFound = errors.New("reporterr: template not found")

	// ErrInvalidTemplateDocument indicates the skeleton template file is not
	// a valid document package for its format.
	ErrInvalidTemplateDocument = errors.New("reporterr: invalid template document")
)

// TemplateSyntaxError reports a template that failed to parse, with the
// offending source line.
type TemplateSyntaxError struct {
	Line    int
	Context string
	Err     error
}

func (e *TemplateSyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("template syntax error on line %d (%q): %v", e.Line, e.Context, e.Err)
	}
	return fmt.Sprintf("template syntax error: %v", e.Err)
}

func (e *TemplateSyntaxError) Unwrap() []error { return []error{ErrTemplateSyntax, e.Err} }

// InvalidFilterValueError reports a filter called with malformed input.
type InvalidFilterValueError struct {
	Filter  string
	Message string
}

// NewInvalidFilterValue builds an InvalidFilterValueError with a formatted
// message.
func NewInvalidFilterValue(filter, format string, args ...any) *InvalidFilterValueError {
	return &InvalidFilterValueError{Filter: filter, Message: fmt.Sprintf(format, args...)}
}

func (e *InvalidFilterValueError) Error() string {
	return fmt.Sprintf("invalid value for filter %q: %s", e.Filter, e.Message)
}

func (e *InvalidFilterValueError) Unwrap() error { return ErrInvalidFilterValue }

// MissingEvidenceError reports an evidence file that does not exist.
type MissingEvidenceError struct {
	Name string
	Path string
}

func (e *MissingEvidenceError) Error() string {
	return fmt.Sprintf("evidence file for %q not found at %s", e.Name, e.Path)
}

func (e *MissingEvidenceError) Unwrap() error { return ErrEvidenceNotFound }

// UnrecognizedImageError reports evidence whose image data is corrupt or in
// an unsupported format.
type UnrecognizedImageError struct {
	Name string
	Err  error
}

func (e *UnrecognizedImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evidence %q is not a recognized image: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("evidence %q is not a recognized image", e.Name)
}

func (e *UnrecognizedImageError) Unwrap() error { return ErrUnrecognizedImage }

// LocatedError annotates an error with where in the report it happened,
// e.g. "the description of finding SQL Injection".
type LocatedError struct {
	Location string
	Err      error
}

func (e *LocatedError) Error() string {
	return e.Location + ": " + e.Err.Error()
}

func (e *LocatedError) Unwrap() error { return e.Err }

// WithLocation wraps err with a location annotation. A nil err stays nil.
func WithLocation(err error, location string) error {
	if err == nil {
		return nil
	}
	return &LocatedError{Location: location, Err: err}
}

// WithLocationf is WithLocation with a formatted location.
func WithLocationf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return WithLocation(err, fmt.Sprintf(format, args...))
}

// Locations returns the chain of location annotations on err, outermost
// first.
func Locations(err error) []string {
	var locs []string
	for err != nil {
		var le *LocatedError
		if !errors.As(err, &le) {
			break
		}
		locs = append(locs, le.Location)
		err = le.Err
	}
	return locs
}

// Category names the taxonomy bucket of err for lint output and metrics.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTemplateSyntax):
		return "template_syntax"
	case errors.Is(err, ErrInvalidFilterValue):
		return "invalid_filter_value"
	case errors.Is(err, ErrEvidenceNotFound), errors.Is(err, ErrUnrecognizedImage), errors.Is(err, ErrUnknownEvidence):
		return "missing_resource"
	case errors.Is(err, ErrCircularReference):
		return "circular_reference"
	case errors.Is(err, ErrTemplateNotFound), errors.Is(err, ErrInvalidTemplateDocument):
		return "template_document"
	default:
		return "internal"
	}
}

// SourceLine returns line n (1-based) of src, trimmed, or "" when out of
// range.
func SourceLine(src string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := strings.Split(src, "\n")
	if n > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[n-1])
}
