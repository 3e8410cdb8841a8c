package templating

import (
	"html"
)

// Marker attributes carried by the inert <span> placeholders the marker
// functions emit. They are resolved only while the rendered HTML is walked
// and never reach a finished document.
const (
	AttrEvidence  = "data-gw-evidence"
	AttrCaption   = "data-gw-caption"
	AttrRef       = "data-gw-ref"
	AttrPageBreak = "data-gw-pagebreak"
)

// EvidenceMarker returns the placeholder for the evidence named name.
func EvidenceMarker(name string) string {
	return `<span ` + AttrEvidence + `="` + html.EscapeString(name) + `"></span>`
}

// CaptionMarker returns the placeholder that starts an auto-numbered
// caption. The bookmark name is optional.
func CaptionMarker(name string) string {
	return `<span ` + AttrCaption + `="` + html.EscapeString(name) + `"></span>`
}

// RefMarker returns the placeholder for a cross-reference to the caption
// bookmarked as name.
func RefMarker(name string) string {
	return `<span ` + AttrRef + `="` + html.EscapeString(name) + `"></span>`
}

// PageBreakMarker replaces the editor's page-break paragraph.
const PageBreakMarker = `<br ` + AttrPageBreak + `="true" />`

func markerEvidence(name any) (string, error) {
	s, ok := name.(string)
	if !ok || s == "" {
		return "", invalid("evidence", "expected the friendly name of an evidence file, got %s", describe(name))
	}
	return EvidenceMarker(s), nil
}

func markerCaption(names ...any) (string, error) {
	switch len(names) {
	case 0:
		return CaptionMarker(""), nil
	case 1:
		s, ok := names[0].(string)
		if !ok {
			return "", invalid("caption", "expected a bookmark name, got %s", describe(names[0]))
		}
		return CaptionMarker(s), nil
	default:
		return "", invalid("caption", "expected at most one bookmark name, got %d arguments", len(names))
	}
}

func markerRef(name any) (string, error) {
	s, ok := name.(string)
	if !ok || s == "" {
		return "", invalid("ref", "expected the name of a caption to reference, got %s", describe(name))
	}
	return RefMarker(s), nil
}
