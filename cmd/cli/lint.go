package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/waftester/reportforge/pkg/cli"
	"github.com/waftester/reportforge/pkg/defaults"
	"github.com/waftester/reportforge/pkg/duration"
	"github.com/waftester/reportforge/pkg/export"
	"github.com/waftester/reportforge/pkg/lint"
	"github.com/waftester/reportforge/pkg/metrics"
	"github.com/waftester/reportforge/pkg/ui"
)

// =============================================================================
// LINT COMMAND
// =============================================================================

func runLint(args []string) int {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	var common cli.Config
	common.Register(fs)

	templatePath := fs.String("template", "", "Template file to lint")
	formatName := fs.String("format", "", "Template format: docx or pptx (default: from the file extension)")
	jsonOutput := fs.Bool("json", false, "Print the lint report as JSON on stdout")
	strict := fs.Bool("strict", false, "Treat undefined variables as errors")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return defaults.ExitUserError
	}

	ui.SetNoColor(common.NoColor)
	ui.SetSilent(common.Silent || *jsonOutput)
	logger := common.Logger(os.Stderr)
	slog.SetDefault(logger)

	usage := defaults.ToolName + " lint -template template.docx [-format docx] [-json]"
	if *templatePath == "" {
		exitWithUsage(defaults.ExitUserError, "no template given", usage)
	}
	if *formatName == "" {
		*formatName = strings.TrimPrefix(filepath.Ext(*templatePath), ".")
	}
	format, err := export.ParseFormat(*formatName)
	if err != nil {
		exitWithUsage(defaults.ExitUserError, err.Error(), usage)
	}

	cfg, err := common.ReportConfig()
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}
	if *strict {
		cfg.Lint.Strict = true
	}

	shutdown, err := common.Telemetry()
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	collectors, err := metrics.New()
	if err != nil {
		exitWithError(defaults.ExitInternalError, "%v", err)
	}
	linter, err := lint.New(lint.Options{
		Config:      cfg,
		Logger:      logger,
		ExtraFields: common.Registry(logger),
		Metrics:     collectors,
	})
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}

	ctx, cancel := cli.SignalContext(cli.Interrupt{
		Grace: duration.ShutdownGrace,
		OnInterrupt: func(os.Signal) {
			ui.PrintWarning("Interrupt received, abandoning lint...")
		},
	})
	defer cancel()

	ui.PrintBanner()
	ui.PrintSection("Lint")
	report := linter.Lint(ctx, format, *templatePath)

	if *jsonOutput {
		if err := cli.WriteJSON(os.Stdout, report); err != nil {
			exitWithError(defaults.ExitInternalError, "%v", err)
		}
	} else {
		ui.PrintLintReport(*templatePath, string(report.Result), report.Warnings, report.Errors)
	}

	if common.MetricsFile != "" {
		if err := collectors.WriteTextfile(common.MetricsFile); err != nil {
			ui.PrintWarning(err.Error())
		}
	}
	if report.Result == lint.Failed {
		return defaults.ExitLintFailed
	}
	return defaults.ExitSuccess
}
