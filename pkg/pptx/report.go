package pptx

import (
	"fmt"
	"strings"

	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/richtext"
)

// continuedFields go to a second slide so the first one keeps room for
// the description.
var continuedFields = []string{"impact", "mitigation"}

// AddReport adds a title slide for the report and slides for each
// finding: its severity and description, then a continuation slide with
// impact and mitigation when the finding has either.
func (p *Presentation) AddReport(b *richtext.Builder) error {
	data := b.Data()
	title := p.AddSlide(p.cfg.PPTX.TitleLayout, PlaceholderSubtitle)
	title.SetTitle(data.Report.Title)
	if data.Client.Name != "" {
		title.AddText(data.Client.Name, false, "")
	}
	if dates := projectDates(data.Project); dates != "" {
		title.AddText(dates, false, "")
	}

	for i, f := range b.Findings() {
		s := p.AddSlide(p.cfg.PPTX.ContentLayout, PlaceholderBody)
		s.SetTitle(f.Title)
		s.AddText("Severity: "+f.Severity.Label, true, f.Severity.HexColor())
		if err := addField(s, b, i, "description"); err != nil {
			return err
		}

		var cont *Slide
		for _, key := range continuedFields {
			if strings.TrimSpace(f.RichText(key)) == "" {
				continue
			}
			if cont == nil {
				cont = p.AddSlide(p.cfg.PPTX.ContentLayout, PlaceholderBody)
				cont.SetTitle(f.Title + " (cont.)")
			}
			field := richField(key)
			cont.AddText(titleLabel(field.Label), true, "")
			if err := addField(cont, b, i, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func addField(s *Slide, b *richtext.Builder, i int, key string) error {
	field := richField(key)
	html, err := b.RenderFinding(i, field)
	if err != nil {
		return err
	}
	if err := s.AddHTML(html, b.Evidence(i)); err != nil {
		return reporterr.WithLocationf(err, "the %s of finding %q", field.Label, b.Findings()[i].Title)
	}
	return nil
}

func richField(key string) finding.RichTextField {
	for _, f := range finding.FindingRichTextFields {
		if f.Key == key {
			return f
		}
	}
	return finding.RichTextField{Key: key, Label: key}
}

func titleLabel(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func projectDates(p finding.Project) string {
	switch {
	case p.StartDate != "" && p.EndDate != "":
		return fmt.Sprintf("%s to %s", p.StartDate, p.EndDate)
	case p.StartDate != "":
		return p.StartDate
	}
	return p.EndDate
}
