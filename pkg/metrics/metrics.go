// Package metrics exposes Prometheus collectors for report generation:
// exports per format and outcome, export latency and lint outcomes.
// Collectors live in their own registry so embedding applications decide
// whether and where to expose them.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/waftester/reportforge/pkg/duration"
)

// Outcome label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collectors holds the report generation metrics. A nil *Collectors
// records nothing.
type Collectors struct {
	registry *prometheus.Registry

	exportsTotal   *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	lintTotal      *prometheus.CounterVec
}

// New creates the collectors in a fresh registry.
func New() (*Collectors, error) {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		exportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportforge_exports_total",
				Help: "Total number of report exports by format and result",
			},
			[]string{"format", "result"},
		),
		exportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reportforge_export_duration_seconds",
				Help:    "Time spent generating one report",
				Buckets: duration.ExportBuckets,
			},
			[]string{"format"},
		),
		lintTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reportforge_lint_total",
				Help: "Total number of template lint runs by result",
			},
			[]string{"result"},
		),
	}
	for _, col := range []prometheus.Collector{c.exportsTotal, c.exportDuration, c.lintTotal} {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: registering collector: %w", err)
		}
	}
	return c, nil
}

// Registry returns the registry the collectors are registered with.
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveExport records one export of format. err decides the result
// label.
func (c *Collectors) ObserveExport(format string, err error, took time.Duration) {
	if c == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	c.exportsTotal.WithLabelValues(format, result).Inc()
	c.exportDuration.WithLabelValues(format).Observe(took.Seconds())
}

// ObserveLint records one lint run with its result.
func (c *Collectors) ObserveLint(result string) {
	if c == nil {
		return
	}
	c.lintTotal.WithLabelValues(result).Inc()
}

// WriteTextfile writes the current values in the text exposition format,
// for node_exporter's textfile collector.
func (c *Collectors) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("metrics: writing %s: %w", path, err)
	}
	return nil
}
