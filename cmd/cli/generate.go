package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/waftester/reportforge/pkg/cli"
	"github.com/waftester/reportforge/pkg/defaults"
	"github.com/waftester/reportforge/pkg/duration"
	"github.com/waftester/reportforge/pkg/export"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/metrics"
	"github.com/waftester/reportforge/pkg/ui"
)

// =============================================================================
// GENERATE COMMAND
// =============================================================================

func runGenerate(args []string) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	var common cli.Config
	common.Register(fs)

	dataPath := fs.String("data", "", "Report data file (JSON)")
	formatList := fs.String("format", "", "Comma-separated formats: docx,pptx,xlsx,json (default: every format whose template was given, plus xlsx and json)")
	docxTemplate := fs.String("template-docx", "", "Word template for the docx format")
	pptxTemplate := fs.String("template-pptx", "", "PowerPoint template for the pptx format")
	evidenceRoot := fs.String("evidence-root", "", "Directory evidence paths are relative to (default: the data file's directory)")
	outDir := fs.String("out", ".", "Output directory")
	name := fs.String("name", "", "Base name of the written files (default: the data file name)")
	timeout := fs.Duration("timeout", duration.ExportDefault, "Abort generation after this long")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return defaults.ExitSuccess
		}
		return defaults.ExitUserError
	}

	ui.SetNoColor(common.NoColor)
	ui.SetSilent(common.Silent)
	logger := common.Logger(os.Stderr)
	slog.SetDefault(logger)

	templates := map[export.Format]string{
		export.FormatDOCX: *docxTemplate,
		export.FormatPPTX: *pptxTemplate,
	}
	formats, err := selectFormats(*formatList, templates)
	if err != nil {
		exitWithUsage(defaults.ExitUserError, err.Error(), defaults.ToolName+" generate -data report.json -format docx -template-docx t.docx")
	}

	cfg, err := common.ReportConfig()
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}
	data, err := cli.LoadReportData(*dataPath)
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}
	if *evidenceRoot == "" {
		*evidenceRoot = filepath.Dir(*dataPath)
	}
	if *name == "" {
		*name = cli.BaseName(*dataPath)
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

	exporter, err := export.New(export.Options{
		Config:       cfg,
		Logger:       logger,
		ExtraFields:  common.Registry(logger),
		EvidenceRoot: *evidenceRoot,
		Metrics:      collectors,
	})
	if err != nil {
		exitWithError(defaults.ExitUserError, "%v", err)
	}

	ui.PrintBanner()
	ui.PrintSection("Generate")
	ui.PrintConfigLine("Data", *dataPath)
	ui.PrintConfigLine("Report", data.Report.Title)
	ui.PrintConfigLine("Client", data.Client.Name)
	ui.PrintConfigLine("Word template", templates[export.FormatDOCX])
	ui.PrintConfigLine("PPT template", templates[export.FormatPPTX])
	ui.PrintConfigLine("Output", *outDir)
	ui.PrintSeverityCounts(severityOrder(), data.SeverityCounts())

	reqs := make([]export.Request, 0, len(formats))
	for _, f := range formats {
		reqs = append(reqs, export.Request{Format: f, Data: data, Template: templates[f]})
	}

	activity := ui.NewActivity(fmt.Sprintf("Generating %d report(s)...", len(reqs)))
	ctx, cancel := cli.SignalContext(cli.Interrupt{
		Grace: duration.ShutdownGrace,
		OnInterrupt: func(os.Signal) {
			activity.Stop()
			ui.PrintWarning("Interrupt received, cancelling exports...")
		},
	})
	defer cancel()
	ctx, tCancel := context.WithTimeout(ctx, *timeout)
	defer tCancel()

	start := time.Now()
	activity.Start()
	outs, err := exporter.ExportAll(ctx, reqs)
	activity.Stop()
	code := defaults.ExitSuccess
	if err != nil {
		ui.PrintError(err.Error())
		code = defaults.ExitExportError
	} else {
		paths, err := cli.WriteOutputs(*outDir, *name, outs)
		if err != nil {
			ui.PrintError(err.Error())
			code = defaults.ExitExportError
		}
		lines := make([]ui.ExportLine, 0, len(paths))
		for i, p := range paths {
			lines = append(lines, ui.ExportLine{Format: string(outs[i].Format), Path: p, Bytes: len(outs[i].Data)})
		}
		ui.PrintExportSummary(lines, len(data.Findings), time.Since(start))
		if code == defaults.ExitSuccess {
			ui.PrintSuccess(fmt.Sprintf("Wrote %d report(s)", len(paths)))
		}
	}

	if common.MetricsFile != "" {
		if err := collectors.WriteTextfile(common.MetricsFile); err != nil {
			ui.PrintWarning(err.Error())
		}
	}
	return code
}

// selectFormats parses list, or picks the defaults when it is empty, and
// checks every template format has its template.
func selectFormats(list string, templates map[export.Format]string) ([]export.Format, error) {
	var formats []export.Format
	if list == "" {
		for _, name := range defaults.Formats {
			f := export.Format(name)
			if f.NeedsTemplate() && templates[f] == "" {
				continue
			}
			formats = append(formats, f)
		}
		return formats, nil
	}
	formats, err := export.ParseFormats(list)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, errors.New("no format given")
	}
	for _, f := range formats {
		if f.NeedsTemplate() && templates[f] == "" {
			return nil, fmt.Errorf("format %s needs -template-%s", f, f)
		}
	}
	return formats, nil
}

func severityOrder() []string {
	return []string{
		finding.Critical.Label, finding.High.Label, finding.Medium.Label,
		finding.Low.Label, finding.Informational.Label,
	}
}
