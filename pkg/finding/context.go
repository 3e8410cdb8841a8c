package finding

import (
	"github.com/waftester/reportforge/pkg/jsonutil"
)

// Context converts the tree into the generic variable set templates are
// rendered against. Keys follow the JSON field names. Findings appear in
// severity order and "totals" carries derived counts.
func (d *ReportData) Context() (map[string]any, error) {
	ctx, err := jsonutil.ToGeneric(d)
	if err != nil {
		return nil, err
	}

	sorted := d.SortedFindings()
	findings := make([]any, 0, len(sorted))
	for i := range sorted {
		fc, err := sorted[i].Context()
		if err != nil {
			return nil, err
		}
		findings = append(findings, fc)
	}
	ctx["findings"] = findings

	compromised := 0
	for _, t := range d.Targets {
		if t.Compromised {
			compromised++
		}
	}
	counts := make(map[string]any)
	for label, n := range d.SeverityCounts() {
		counts[label] = n
	}
	ctx["totals"] = map[string]any{
		"findings":    len(d.Findings),
		"severities":  counts,
		"targets":     len(d.Targets),
		"compromised": compromised,
		"evidence":    len(d.Evidence),
		"team":        len(d.Team),
	}
	return ctx, nil
}

// Context converts one finding into its generic variable set, adding the
// flattened severity keys older templates expect.
func (f *Finding) Context() (map[string]any, error) {
	fc, err := jsonutil.ToGeneric(f)
	if err != nil {
		return nil, err
	}
	r, g, b := f.Severity.RGB255()
	fc["severity_label"] = f.Severity.Label
	fc["severity_color"] = f.Severity.HexColor()
	fc["severity_color_rgb"] = []any{int(r), int(g), int(b)}
	fc["severity_color_hex"] = "#" + f.Severity.HexColor()
	return fc, nil
}
