package htmlconv

import (
	"fmt"
	"strings"

	"github.com/waftester/reportforge/pkg/finding"
)

// recorder is a Backend that logs every call in a compact form.
type recorder struct {
	events []string
}

var _ Backend = (*recorder)(nil)

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) BeginParagraph(b Block) {
	desc := b.Kind.String()
	if b.Kind == BlockHeading || b.Kind == BlockListItem {
		desc += fmt.Sprint(b.Level)
	}
	if b.Ordered {
		desc += "#"
	}
	if b.Align != "" {
		desc += "@" + b.Align
	}
	r.add("<%s>", desc)
}

func (r *recorder) EndParagraph() { r.add("</>") }

func (r *recorder) Text(text string, s Style) { r.add("%q%s", text, styleTag(s)) }

func (r *recorder) LineBreak() { r.add("BR") }

func (r *recorder) PageBreak() { r.add("PAGE") }

func (r *recorder) Footnote(text string, _ Style) { r.add("FN:%s", text) }

func (r *recorder) Evidence(ev *finding.Evidence) error {
	r.add("EV:%s", ev.FriendlyName)
	return nil
}

func (r *recorder) Caption(name string, kind CaptionKind) {
	k := "figure"
	if kind == CaptionTable {
		k = "table"
	}
	r.add("CAP:%s/%s", name, k)
}

func (r *recorder) CrossRef(name string) { r.add("REF:%s", name) }

func (r *recorder) BeginList() { r.add("LIST") }

func (r *recorder) EndList() { r.add("/LIST") }

func (r *recorder) BeginTable(rows, cols int) { r.add("TABLE %dx%d", rows, cols) }

func (r *recorder) BeginCell(row, col int, header bool) {
	h := ""
	if header {
		h = "h"
	}
	r.add("CELL %d,%d%s", row, col, h)
}

func (r *recorder) EndCell() { r.add("/CELL") }

func (r *recorder) MergeCells(top, left, bottom, right int) {
	r.add("MERGE %d,%d-%d,%d", top, left, bottom, right)
}

func (r *recorder) EndTable() { r.add("/TABLE") }

func styleTag(s Style) string {
	var tags []string
	flags := []struct {
		on  bool
		tag string
	}{
		{s.Bold, "b"}, {s.Italic, "i"}, {s.Underline, "u"}, {s.Strike, "s"},
		{s.Sub, "sub"}, {s.Sup, "sup"}, {s.Code, "code"}, {s.Highlight, "mark"},
	}
	for _, f := range flags {
		if f.on {
			tags = append(tags, f.tag)
		}
	}
	if s.FontFamily != "" {
		tags = append(tags, "font="+s.FontFamily)
	}
	if s.FontSize != 0 {
		tags = append(tags, fmt.Sprintf("size=%g", s.FontSize))
	}
	if s.Color != "" {
		tags = append(tags, "color="+s.Color)
	}
	if s.Background != "" {
		tags = append(tags, "bg="+s.Background)
	}
	if s.Link != "" {
		tags = append(tags, "link="+s.Link)
	}
	if len(tags) == 0 {
		return ""
	}
	return "[" + strings.Join(tags, ",") + "]"
}
