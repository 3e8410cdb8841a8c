// Package lint checks report templates without real report data. The
// template is rendered against placeholder data; undefined variables are
// reported as warnings and every other problem fails the lint.
package lint

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"github.com/waftester/reportforge/pkg/config"
	"github.com/waftester/reportforge/pkg/docx"
	"github.com/waftester/reportforge/pkg/export"
	"github.com/waftester/reportforge/pkg/extrafields"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/metrics"
	"github.com/waftester/reportforge/pkg/pptx"
	"github.com/waftester/reportforge/pkg/richtext"
	"github.com/waftester/reportforge/pkg/telemetry"
	"github.com/waftester/reportforge/pkg/templating"
)

// Result grades a template.
type Result string

const (
	Success Result = "success"
	Warning Result = "warning"
	Failed  Result = "failed"
)

// Report is the outcome of linting one template.
type Report struct {
	Result   Result   `json:"result"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) fail(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// grade sets Result from the collected messages.
func (r *Report) grade() {
	switch {
	case len(r.Errors) > 0:
		r.Result = Failed
	case len(r.Warnings) > 0:
		r.Result = Warning
	default:
		r.Result = Success
	}
}

// Options configures a Linter.
type Options struct {
	Config      *config.ReportConfig
	Logger      *slog.Logger
	ExtraFields *extrafields.Registry
	Metrics     *metrics.Collectors
}

// Linter lints templates. It is safe for concurrent use.
type Linter struct {
	opts   Options
	cfg    *config.ReportConfig
	logger *slog.Logger
}

// New validates opts and returns a Linter.
func New(opts Options) (*Linter, error) {
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
	return &Linter{opts: opts, cfg: cfg, logger: logger}, nil
}

// Lint checks the template at path for format. Problems are reported in
// the returned Report, never as a Go error.
func (l *Linter) Lint(ctx context.Context, format export.Format, path string) *Report {
	logger := l.logger.With(slog.String("format", string(format)), slog.String("template", path))
	ctx, span := telemetry.Start(ctx, "reportforge.lint",
		attribute.String("format", string(format)),
		attribute.String("template", path),
	)

	report := &Report{Warnings: []string{}, Errors: []string{}}
	undefined := templating.NewUndefinedSet()
	err := l.run(ctx, format, path, undefined, logger)
	if err != nil {
		report.fail(err)
	}
	for _, name := range undefined.Names() {
		if l.cfg.Lint.Strict {
			report.Errors = append(report.Errors, fmt.Sprintf("undefined variable %q", name))
			continue
		}
		report.warn("undefined variable %q", name)
	}
	report.grade()

	span.SetAttributes(attribute.String("result", string(report.Result)))
	telemetry.End(span, err)
	l.opts.Metrics.ObserveLint(string(report.Result))

	switch report.Result {
	case Failed:
		logger.Error("lint failed", slog.Int("errors", len(report.Errors)), slog.Int("warnings", len(report.Warnings)))
	case Warning:
		logger.Warn("lint finished with warnings", slog.Int("warnings", len(report.Warnings)))
	default:
		logger.Info("lint passed")
	}
	return report
}

func (l *Linter) run(ctx context.Context, format export.Format, path string, undefined *templating.UndefinedSet, logger *slog.Logger) error {
	if !format.NeedsTemplate() {
		return fmt.Errorf("lint: format %q has no template to lint", format)
	}
	pkg, err := export.OpenTemplate(path)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "reportforge-lint-*")
	if err != nil {
		return fmt.Errorf("lint: placeholder evidence directory: %w", err)
	}
	defer os.RemoveAll(dir)

	data, err := Placeholder(ctx, l.opts.ExtraFields, dir)
	if err != nil {
		return err
	}

	opts := templating.Options{Logger: logger, Undefined: undefined}
	if format == export.FormatDOCX {
		opts.Funcs = docx.Funcs()
	}
	env := templating.New(opts)
	b, err := richtext.NewBuilder(ctx, richtext.NewPreprocessor(env), data, l.opts.ExtraFields)
	if err != nil {
		return err
	}

	switch format {
	case export.FormatDOCX:
		doc, err := docx.NewDocument(pkg, docx.Options{Config: l.cfg, Logger: logger, EvidenceRoot: dir})
		if err != nil {
			return err
		}
		doc.Bind(b)
		if _, err := doc.Render(env, b.Vars(), b.Sink()); err != nil {
			return err
		}
	case export.FormatPPTX:
		pres, err := pptx.NewPresentation(pkg, pptx.Options{Config: l.cfg, Logger: logger})
		if err != nil {
			return err
		}
		if err := pres.AddReport(b); err != nil {
			return err
		}
		if _, err := pres.Finish(); err != nil {
			return err
		}
	}

	// Rich text the template never printed must still render.
	for i := range b.Findings() {
		for _, field := range finding.FindingRichTextFields {
			if _, err := b.RenderFinding(i, field); err != nil {
				return err
			}
		}
	}
	return nil
}
