// Package xlsx writes the findings of a report to an Excel workbook, one
// row per finding. Rich text is flattened to plain text and every cell is
// sanitized against formula injection.
package xlsx

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/waftester/reportforge/pkg/config"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/plaintext"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/richtext"
	"github.com/waftester/reportforge/pkg/strutil"
)

const (
	MIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	Extension = "xlsx"
)

// Options configures a workbook export.
type Options struct {
	Config *config.ReportConfig
	Logger *slog.Logger
}

// column is one column of the findings sheet. Rich columns hold the
// flattened rich-text field named by key; the others use value.
type column struct {
	header string
	width  float64
	key    string
	value  func(f *finding.Finding) string
}

// columns in sheet order.
var columns = []column{
	{header: "Severity", width: 14, value: func(f *finding.Finding) string { return f.Severity.Label }},
	{header: "Title", width: 36, value: func(f *finding.Finding) string { return f.Title }},
	{header: "CVSS Score", width: 11, value: cvssScore},
	{header: "Description", width: 60, key: "description"},
	{header: "Impact", width: 50, key: "impact"},
	{header: "Mitigation", width: 50, key: "mitigation"},
	{header: "Replication Steps", width: 50, key: "replication_steps"},
	{header: "Host Detection Techniques", width: 40, key: "host_detection_techniques"},
	{header: "Network Detection Techniques", width: 40, key: "network_detection_techniques"},
	{header: "References", width: 40, key: "references"},
	{header: "Affected Entities", width: 40, key: "affected_entities"},
	{header: "Evidence", width: 30, value: evidenceNames},
}

func cvssScore(f *finding.Finding) string {
	if f.CVSSScore == 0 {
		return ""
	}
	return strconv.FormatFloat(f.CVSSScore, 'f', 1, 64)
}

func evidenceNames(f *finding.Finding) string {
	names := make([]string, 0, len(f.Evidence))
	for _, ev := range f.Evidence {
		names = append(names, ev.FriendlyName)
	}
	return strings.Join(names, ", ")
}

// Export writes the findings of b to a new workbook and returns its bytes.
func Export(b *richtext.Builder, opts Options) ([]byte, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultReportConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := cfg.XLSX.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("xlsx: naming sheet %q: %w", sheet, err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx: header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx: cell style: %w", err)
	}

	for i, col := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, col.width); err != nil {
			return nil, fmt.Errorf("xlsx: column width: %w", err)
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(sheet, cell, col.header); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return nil, err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("xlsx: freezing header: %w", err)
	}

	severityStyles := map[string]int{}
	findings := b.Findings()
	for i := range findings {
		row := i + 2
		fd := &findings[i]
		for c, col := range columns {
			value, err := cellValue(b, i, col, logger)
			if err != nil {
				return nil, err
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, row)
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return nil, err
			}
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(columns), row)
		if err := f.SetCellStyle(sheet, first, end, wrap); err != nil {
			return nil, err
		}

		style, err := severityStyle(f, severityStyles, fd.Severity)
		if err != nil {
			logger.Warn("skipping severity fill", slog.String("severity", fd.Severity.Label), slog.String("error", err.Error()))
			continue
		}
		if err := f.SetCellStyle(sheet, first, first, style); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cellValue(b *richtext.Builder, i int, col column, logger *slog.Logger) (string, error) {
	f := &b.Findings()[i]
	if col.key == "" {
		return strutil.SanitizeFormula(strutil.XMLSafe(col.value(f))), nil
	}
	field := finding.RichTextField{Key: col.key, Label: strings.ToLower(col.header)}
	html, err := b.RenderFinding(i, field)
	if err != nil {
		return "", err
	}
	s, err := plaintext.Convert(html, plaintext.Options{Evidence: b.Evidence(i), Logger: logger})
	if err != nil {
		return "", reporterr.WithLocationf(err, "the %s of finding %q", field.Label, f.Title)
	}
	return strutil.SanitizeFormula(strutil.XMLSafe(s)), nil
}

// severityStyle returns the fill style for sev, creating it on first use.
func severityStyle(f *excelize.File, cache map[string]int, sev finding.Severity) (int, error) {
	if err := sev.Validate(); err != nil {
		return 0, err
	}
	hex := sev.HexColor()
	if id, ok := cache[hex]; ok {
		return id, nil
	}
	id, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#" + hex}},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return 0, err
	}
	cache[hex] = id
	return id, nil
}
