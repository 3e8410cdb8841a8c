// Package duration provides canonical time constants for reportforge.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.TelemetryShutdown)
//
// Reference these constants instead of hardcoded time.Duration values.
package duration

import "time"

// ============================================================================
// TELEMETRY TIMEOUTS
// ============================================================================

const (
	// TelemetryConnect bounds dialing the OTLP collector (10s).
	TelemetryConnect = 10 * time.Second

	// TelemetryShutdown bounds flushing spans on exit (5s).
	TelemetryShutdown = 5 * time.Second
)

// ============================================================================
// EXPORT TIMEOUTS
// ============================================================================

const (
	// ExportDefault bounds one generate invocation when -timeout is unset (5min).
	ExportDefault = 5 * time.Minute

	// ShutdownGrace is how long a second interrupt is awaited before a
	// forced exit (3s).
	ShutdownGrace = 3 * time.Second
)

// ============================================================================
// METRIC BUCKETS
// ============================================================================

// ExportBuckets are the histogram buckets for export durations, in seconds.
var ExportBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
