// Package finding provides the report data tree consumed by the
// rich-text conversion engine.
//
// The tree is produced externally (typically decoded from the JSON the
// web tier serializes) and is treated as immutable input: every export
// builds its own template context from it via Context and never writes
// back.
//
// Usage:
//
//	var data finding.ReportData
//	if err := jsonutil.Unmarshal(raw, &data); err != nil { ... }
//	for _, f := range data.SortedFindings() {
//	    fmt.Println(f.Severity.Label, f.Title)
//	}
package finding
