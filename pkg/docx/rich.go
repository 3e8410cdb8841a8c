package docx

import (
	"fmt"

	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/plaintext"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/richtext"
)

// Rich is rich text bound to a document. In a {{p …}} paragraph it is
// converted to WordprocessingML blocks; inline it prints as plain text.
// The HTML is rendered once, the blocks on every use so each copy gets
// its own bookmark and drawing IDs.
type Rich struct {
	doc      *Document
	render   func() (string, error)
	evidence finding.EvidenceSet
	location string
	sink     *richtext.Sink

	rendered bool
	html     string
	err      error
}

// HTML returns the rendered markup.
func (r *Rich) HTML() (string, error) {
	if !r.rendered {
		r.html, r.err = r.render()
		r.rendered = true
	}
	return r.html, r.err
}

// Blocks converts the text to paragraphs and tables.
func (r *Rich) Blocks() (string, error) {
	h, err := r.HTML()
	if err != nil {
		return "", err
	}
	out, err := r.doc.Convert(h, r.evidence)
	if err != nil {
		return "", reporterr.WithLocation(err, r.location)
	}
	return out, nil
}

// Plain flattens the text.
func (r *Rich) Plain() (string, error) {
	h, err := r.HTML()
	if err != nil {
		return "", err
	}
	s, err := plaintext.Convert(h, plaintext.Options{Evidence: r.evidence, Logger: r.doc.logger})
	if err != nil {
		return "", reporterr.WithLocation(err, r.location)
	}
	return s, nil
}

// String prints the plain text. Errors go to the sink.
func (r *Rich) String() string {
	s, err := r.Plain()
	if err != nil {
		r.sink.Add(err)
		return ""
	}
	return s
}

// Bind exposes the rich text of b's variables to skeletons. Every finding
// gets <field>_rt for its rich-text fields and severity_rt, a run colored
// with the severity color; every rich-text extra field gets <name>_rt.
func (d *Document) Bind(b *richtext.Builder) {
	vars := b.Vars()
	list, _ := vars["findings"].([]any)
	findings := b.Findings()
	for i, fc := range list {
		m, ok := fc.(map[string]any)
		if !ok || i >= len(findings) {
			continue
		}
		f := &findings[i]
		ev := b.Evidence(i)
		for _, field := range finding.FindingRichTextFields {
			i, field := i, field
			m[field.Key+"_rt"] = &Rich{
				doc:      d,
				render:   func() (string, error) { return b.RenderFinding(i, field) },
				evidence: ev,
				location: fmt.Sprintf("the %s of finding %q", field.Label, f.Title),
				sink:     b.Sink(),
			}
		}
		m["severity_rt"] = SeverityRun(f.Severity)
		d.bindLazy(m, ev, b.Sink())
	}

	report := b.Evidence(-1)
	for k, v := range vars {
		if k != "findings" {
			d.bindLazy(v, report, b.Sink())
		}
	}
}

// bindLazy adds a Rich twin under <key>_rt for every Lazy below v.
func (d *Document) bindLazy(v any, ev finding.EvidenceSet, sink *richtext.Sink) {
	type slot struct {
		fields map[string]any
		key    string
		lazy   *richtext.Lazy
	}
	var slots []slot
	richtext.VisitLazy(v, func(fields map[string]any, key string, l *richtext.Lazy) {
		slots = append(slots, slot{fields, key, l})
	})
	for _, s := range slots {
		s.fields[s.key+"_rt"] = &Rich{
			doc:      d,
			render:   s.lazy.Render,
			evidence: ev,
			location: s.lazy.Location(),
			sink:     sink,
		}
	}
}

// SeverityRun is a bold run showing the severity label in its color.
func SeverityRun(s finding.Severity) InlineXML {
	run := ooxml.E("w:r",
		ooxml.E("w:rPr",
			ooxml.E("w:b"),
			ooxml.E("w:color", ooxml.A("w:val", s.HexColor())),
		),
		textElement(s.Label),
	)
	return InlineXML(run.String())
}
