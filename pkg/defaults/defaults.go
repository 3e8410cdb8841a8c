// Package defaults provides canonical default values for reportforge.
//
// Usage:
//
//	opts.Formats = defaults.Formats
//	os.Exit(defaults.ExitUserError)
//
// Reference these constants instead of repeating literals across packages.
package defaults

// ToolName is the binary and service name.
const ToolName = "reportforge"

// Version is the current reportforge version.
const Version = "0.3.0"

// ============================================================================
// EXPORT SETTINGS
// ============================================================================

// Formats lists the export formats in the order generate runs them.
var Formats = []string{"docx", "pptx", "xlsx", "json"}

const (
	// OutputDirMode is the permission of directories generate creates.
	OutputDirMode = 0o755

	// OutputFileMode is the permission of written reports.
	OutputFileMode = 0o644

	// JSONIndent indents the archival JSON export.
	JSONIndent = "  "
)

// ============================================================================
// TELEMETRY SETTINGS
// ============================================================================

const (
	// OTelEndpoint is the default OTLP gRPC collector address.
	OTelEndpoint = "localhost:4317"

	// TracerName names the tracer spans are started with.
	TracerName = "reportforge/export"
)

// ============================================================================
// EXIT CODES
// ============================================================================

const (
	ExitSuccess       = 0 // Clean exit
	ExitLintFailed    = 1 // Lint found errors, or warnings in strict mode
	ExitUserError     = 2 // Invalid arguments or configuration
	ExitExportError   = 3 // A report could not be generated
	ExitInternalError = 4 // Unexpected internal error
)
