package ui

import (
	"fmt"
	"strings"
	"time"
)

// ExportLine is one written report in the generate summary.
type ExportLine struct {
	Format string
	Path   string
	Bytes  int
}

// PrintExportSummary lists the written reports.
func PrintExportSummary(lines []ExportLine, findings int, took time.Duration) {
	if IsSilent() {
		return
	}
	PrintSection("Reports")
	for _, l := range lines {
		emit(fmt.Sprintf("  %s %s %s",
			FormatStyle.Render(l.Format),
			PathStyle.Render(Clean(l.Path)),
			StatLabelStyle.Render("("+formatBytes(l.Bytes)+")"),
		))
	}
	emit("")
	emit(fmt.Sprintf("  %s %s   %s %s",
		StatLabelStyle.Render("Findings:"), StatValueStyle.Render(fmt.Sprint(findings)),
		StatLabelStyle.Render("Duration:"), StatValueStyle.Render(formatDuration(took)),
	))
	emit("")
}

// PrintSeverityCounts prints one badge per severity with its count, in
// the order given.
func PrintSeverityCounts(order []string, counts map[string]int) {
	if IsSilent() {
		return
	}
	var parts []string
	for _, label := range order {
		if n := counts[label]; n > 0 {
			parts = append(parts, SeverityStyle(label).Render(fmt.Sprintf("%s %d", label, n)))
		}
	}
	if len(parts) > 0 {
		emit("  " + strings.Join(parts, " "))
	}
}

// PrintLintReport prints the outcome of linting template. The result line
// is always printed; warnings and errors follow it.
func PrintLintReport(template, result string, warnings, errors []string) {
	emit(fmt.Sprintf("  %s%s%s %s",
		BracketStyle.Render("["), ResultStyle(result).Render(result), BracketStyle.Render("]"),
		PathStyle.Render(Clean(template)),
	))
	for _, w := range warnings {
		emit(WarnStyle.Render("    " + Icon(SymbolWarn) + " " + Clean(w)))
	}
	for _, e := range errors {
		emit(FailStyle.Render("    " + Icon(SymbolFail) + " " + Clean(e)))
	}
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
