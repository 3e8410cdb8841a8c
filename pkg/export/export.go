// Package export drives the per-format pipelines that turn a report data
// tree into finished documents. Every export owns its template
// environment, rich-text builder and document state; nothing mutable is
// shared between exports, so several can run at once.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/waftester/reportforge/pkg/config"
	"github.com/waftester/reportforge/pkg/extrafields"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/jsonutil"
	"github.com/waftester/reportforge/pkg/metrics"
	"github.com/waftester/reportforge/pkg/richtext"
	"github.com/waftester/reportforge/pkg/telemetry"
	"github.com/waftester/reportforge/pkg/templating"
)

// ErrUnknownFormat is returned for a format no driver handles.
var ErrUnknownFormat = errors.New("export: unknown format")

// Format names an output format.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := drivers[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

// ParseFormats parses a comma-separated list, dropping duplicates.
func ParseFormats(list string) ([]Format, error) {
	var out []Format
	seen := map[Format]bool{}
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// NeedsTemplate reports whether the format renders into a template file.
func (f Format) NeedsTemplate() bool {
	d, ok := drivers[f]
	return ok && d.template
}

// Output is a finished document.
type Output struct {
	Format    Format
	Data      []byte
	MIME      string
	Extension string
}

// Filename returns base with the output's extension.
func (o *Output) Filename(base string) string {
	return base + "." + o.Extension
}

// Request is one export: a format, the report and, for formats rendered
// into a skeleton, the template path.
type Request struct {
	Format   Format
	Data     *finding.ReportData
	Template string
}

// Options configures an Exporter.
type Options struct {
	Config *config.ReportConfig
	Logger *slog.Logger

	// ExtraFields resolves which extra fields hold rich text. Nil exposes
	// extra fields as plain values.
	ExtraFields *extrafields.Registry

	// EvidenceRoot is the directory relative evidence paths resolve
	// against.
	EvidenceRoot string

	// Metrics, if set, records every export.
	Metrics *metrics.Collectors
}

// Exporter runs exports. It is safe for concurrent use.
type Exporter struct {
	opts   Options
	cfg    *config.ReportConfig
	logger *slog.Logger
}

// New validates opts and returns an Exporter.
func New(opts Options) (*Exporter, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultReportConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{opts: opts, cfg: cfg, logger: logger}, nil
}

// Export runs one export.
func (e *Exporter) Export(ctx context.Context, req Request) (out *Output, err error) {
	id := uuid.NewString()
	logger := e.logger.With(slog.String("export_id", id), slog.String("format", string(req.Format)))
	ctx, span := telemetry.Start(ctx, "reportforge.export",
		attribute.String("export_id", id),
		attribute.String("format", string(req.Format)),
	)
	start := time.Now()
	defer func() {
		took := time.Since(start)
		telemetry.End(span, err)
		e.opts.Metrics.ObserveExport(string(req.Format), err, took)
		if err != nil {
			logger.Error("export failed", slog.Duration("duration", took), slog.String("error", err.Error()))
			return
		}
		logger.Info("export finished", slog.Duration("duration", took), slog.Int("bytes", len(out.Data)))
	}()

	d, ok := drivers[req.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, req.Format)
	}
	if req.Data == nil {
		return nil, errors.New("export: no report data")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Info("export started", slog.Int("findings", len(req.Data.Findings)), slog.String("template", req.Template))

	data, err := d.run(ctx, &job{Exporter: e, req: req, logger: logger})
	if err != nil {
		return nil, err
	}
	return &Output{Format: req.Format, Data: data, MIME: d.mime, Extension: d.ext}, nil
}

// ExportAll runs reqs concurrently. Outputs are in request order; the
// first failure cancels the exports still running.
func (e *Exporter) ExportAll(ctx context.Context, reqs []Request) ([]*Output, error) {
	outs := make([]*Output, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			out, err := e.Export(ctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", req.Format, err)
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

// job is the state of one running export.
type job struct {
	*Exporter
	req    Request
	logger *slog.Logger
}

// builder prepares the rich-text variables of the report for env.
func (j *job) builder(ctx context.Context, env *templating.Environment) (*richtext.Builder, error) {
	return richtext.NewBuilder(ctx, richtext.NewPreprocessor(env), j.req.Data, j.opts.ExtraFields)
}

func exportJSON(_ context.Context, j *job) ([]byte, error) {
	data, err := jsonutil.MarshalIndent(j.req.Data, jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("export: encoding JSON: %w", err)
	}
	return append(data, '\n'), nil
}
