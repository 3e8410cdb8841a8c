// Package cli holds what the reportforge subcommands share: common flags,
// logger and telemetry setup, loading the report data and writing the
// generated files.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/waftester/reportforge/pkg/config"
	"github.com/waftester/reportforge/pkg/defaults"
	"github.com/waftester/reportforge/pkg/export"
	"github.com/waftester/reportforge/pkg/extrafields"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/jsonutil"
	"github.com/waftester/reportforge/pkg/telemetry"
)

// Command represents a CLI command.
type Command string

const (
	CommandGenerate Command = "generate"
	CommandLint     Command = "lint"
	CommandVersion  Command = "version"
)

// Commands returns the available commands.
func Commands() []Command {
	return []Command{CommandGenerate, CommandLint, CommandVersion}
}

// Config holds the flags every subcommand accepts.
type Config struct {
	ConfigPath      string
	ExtraFieldsPath string
	Verbose         bool
	Silent          bool
	NoColor         bool
	JSONLogs        bool
	OTelEndpoint    string
	OTelInsecure    bool
	MetricsFile     string
}

// Register adds the common flags to fs.
func (c *Config) Register(fs *flag.FlagSet) {
	fs.StringVar(&c.ConfigPath, "config", "", "Report configuration file (YAML)")
	fs.StringVar(&c.ExtraFieldsPath, "extra-fields", "", "Extra field specs file (YAML or JSON)")
	fs.BoolVar(&c.Verbose, "v", false, "Verbose logging")
	fs.BoolVar(&c.Silent, "silent", false, "Only print errors")
	fs.BoolVar(&c.NoColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&c.JSONLogs, "json-logs", false, "Log as JSON lines")
	fs.StringVar(&c.OTelEndpoint, "otel-endpoint", "", "OTLP gRPC collector for traces (e.g. "+defaults.OTelEndpoint+")")
	fs.BoolVar(&c.OTelInsecure, "otel-insecure", false, "Use a plaintext connection to the collector")
	fs.StringVar(&c.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
}

// Logger returns the logger the flags ask for, writing to w. Logs are
// quiet by default so they do not interleave with the UI.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case c.Verbose:
		level = slog.LevelDebug
	case c.Silent:
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.JSONLogs {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ReportConfig loads the configuration file, or returns the defaults when
// none was given.
func (c *Config) ReportConfig() (*config.ReportConfig, error) {
	if c.ConfigPath == "" {
		return config.DefaultReportConfig(), nil
	}
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", c.ConfigPath, err)
	}
	return cfg, nil
}

// Registry returns the extra field registry, or nil when no specs file
// was given.
func (c *Config) Registry(logger *slog.Logger) *extrafields.Registry {
	if c.ExtraFieldsPath == "" {
		return nil
	}
	return extrafields.NewRegistry(extrafields.FileLoader(c.ExtraFieldsPath), logger)
}

// Telemetry installs the OTLP tracer provider when an endpoint was given.
// The returned shutdown is never nil.
func (c *Config) Telemetry() (telemetry.Shutdown, error) {
	if c.OTelEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	return telemetry.Setup(telemetry.Options{Endpoint: c.OTelEndpoint, Insecure: c.OTelInsecure})
}

// LoadReportData decodes the report JSON at path and checks it.
func LoadReportData(path string) (*finding.ReportData, error) {
	if path == "" {
		return nil, fmt.Errorf("no report data file given")
	}
	var data finding.ReportData
	if err := jsonutil.DecodeFile(path, &data); err != nil {
		return nil, err
	}
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &data, nil
}

// BaseName derives the output file name from the data file:
// "acme-2024.json" gives "acme-2024".
func BaseName(dataPath string) string {
	base := filepath.Base(dataPath)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" && name != "." {
		return name
	}
	return "report"
}

// WriteOutputs writes each output as dir/base.<ext>, creating dir, and
// returns the paths in output order.
func WriteOutputs(dir, base string, outs []*export.Output) ([]string, error) {
	if err := os.MkdirAll(dir, defaults.OutputDirMode); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	paths := make([]string, 0, len(outs))
	for _, out := range outs {
		path := filepath.Join(dir, out.Filename(base))
		if err := os.WriteFile(path, out.Data, defaults.OutputFileMode); err != nil {
			return paths, fmt.Errorf("writing %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := jsonutil.MarshalIndent(v, defaults.JSONIndent)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
