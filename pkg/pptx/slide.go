package pptx

import (
	"strconv"

	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/htmlconv"
	"github.com/waftester/reportforge/pkg/ooxml"
)

// Placeholder selects the layout placeholder slide text is poured into.
type Placeholder int

const (
	// PlaceholderBody is the content placeholder of content layouts.
	PlaceholderBody Placeholder = iota
	// PlaceholderSubtitle is the subtitle of title layouts.
	PlaceholderSubtitle
)

const nsTable = "http://schemas.openxmlformats.org/drawingml/2006/table"

// Slide is a slide being filled. Text goes to the layout's title and body
// placeholders; preformatted blocks and tables become shapes of their own
// stacked in the lower part of the slide.
type Slide struct {
	p           *Presentation
	part        string
	rels        *ooxml.Relationships
	placeholder Placeholder

	title  string
	body   []*ooxml.Element
	boxes  [][]*ooxml.Element
	tables []*ooxml.Element
}

func newSlide(p *Presentation, part string, placeholder Placeholder) *Slide {
	return &Slide{p: p, part: part, rels: &ooxml.Relationships{}, placeholder: placeholder}
}

// Part returns the slide's part name.
func (s *Slide) Part() string { return s.part }

// SetTitle sets the text of the title placeholder.
func (s *Slide) SetTitle(title string) { s.title = title }

// Title returns the slide title.
func (s *Slide) Title() string { return s.title }

// AddText appends a paragraph of plain text to the body. An empty color
// keeps the placeholder's color.
func (s *Slide) AddText(text string, bold bool, color string) {
	p := ooxml.E("a:p", plainPPr())
	rpr := ooxml.E("a:rPr", ooxml.A("lang", "en-US"))
	if bold {
		rpr.Set("b", "1")
	}
	if color != "" {
		rpr.Add(solidFill(color))
	}
	appendText(p, rpr, text)
	s.body = append(s.body, p)
}

// AddHTML converts rendered rich text and appends it to the slide.
func (s *Slide) AddHTML(html string, evidence finding.EvidenceSet) error {
	b := &backend{slide: s}
	return htmlconv.Convert(html, b, htmlconv.Options{Evidence: evidence, Logger: s.p.logger})
}

// Paragraphs returns the number of body paragraphs.
func (s *Slide) Paragraphs() int { return len(s.body) }

func solidFill(color string) *ooxml.Element {
	return ooxml.E("a:solidFill", ooxml.E("a:srgbClr", ooxml.A("val", color)))
}

// bytes serializes the slide.
func (s *Slide) bytes() []byte {
	tree := ooxml.E("p:spTree",
		ooxml.E("p:nvGrpSpPr",
			ooxml.E("p:cNvPr", ooxml.A("id", "1"), ooxml.A("name", "")),
			ooxml.E("p:cNvGrpSpPr"),
			ooxml.E("p:nvPr"),
		),
		ooxml.E("p:grpSpPr"),
	)
	id := 2
	next := func() string {
		n := strconv.Itoa(id)
		id++
		return n
	}

	if s.title != "" {
		n := next()
		title := ooxml.E("a:p")
		appendText(title, ooxml.E("a:rPr", ooxml.A("lang", "en-US")), s.title)
		tree.Add(placeholderShape(n, "Title "+n, ooxml.E("p:ph", ooxml.A("type", "title")), []*ooxml.Element{title}))
	}
	if len(s.body) > 0 {
		n := next()
		ph, name := ooxml.E("p:ph", ooxml.A("idx", "1")), "Content Placeholder "+n
		if s.placeholder == PlaceholderSubtitle {
			ph, name = ooxml.E("p:ph", ooxml.A("type", "subTitle"), ooxml.A("idx", "1")), "Subtitle "+n
		}
		tree.Add(placeholderShape(n, name, ph, s.body))
	}

	if count := len(s.boxes) + len(s.tables); count > 0 {
		margin := s.p.width / 16
		top := s.p.height * 55 / 100
		h := (s.p.height * 40 / 100) / int64(count)
		w := s.p.width - 2*margin
		slot := 0
		frame := func() (int64, int64) {
			y := top + int64(slot)*h
			slot++
			return margin, y
		}
		for _, paras := range s.boxes {
			x, y := frame()
			tree.Add(textBox(next(), x, y, w, h, paras))
		}
		for _, tbl := range s.tables {
			x, y := frame()
			tree.Add(tableFrame(next(), x, y, w, h, tbl))
		}
	}

	sld := ooxml.E("p:sld",
		ooxml.A("xmlns:a", ooxml.NSDrawingML),
		ooxml.A("xmlns:r", ooxml.NSOfficeRels),
		ooxml.A("xmlns:p", ooxml.NSPresentation),
		ooxml.E("p:cSld", tree),
		ooxml.E("p:clrMapOvr", ooxml.E("a:masterClrMapping")),
	)
	return []byte(ooxml.Header + sld.String())
}

// placeholderShape is a shape inheriting its geometry from the layout
// placeholder ph.
func placeholderShape(id, name string, ph *ooxml.Element, paras []*ooxml.Element) *ooxml.Element {
	return ooxml.E("p:sp",
		ooxml.E("p:nvSpPr",
			ooxml.E("p:cNvPr", ooxml.A("id", id), ooxml.A("name", name)),
			ooxml.E("p:cNvSpPr", ooxml.E("a:spLocks", ooxml.A("noGrp", "1"))),
			ooxml.E("p:nvPr", ph),
		),
		ooxml.E("p:spPr"),
		ooxml.E("p:txBody", ooxml.E("a:bodyPr", ooxml.E("a:normAutofit")), ooxml.E("a:lstStyle"), paras),
	)
}

func xfrm(name string, x, y, cx, cy int64) *ooxml.Element {
	return ooxml.E(name,
		ooxml.E("a:off", ooxml.A("x", strconv.FormatInt(x, 10)), ooxml.A("y", strconv.FormatInt(y, 10))),
		ooxml.E("a:ext", ooxml.A("cx", strconv.FormatInt(cx, 10)), ooxml.A("cy", strconv.FormatInt(cy, 10))),
	)
}

// textBox holds preformatted text on a light background.
func textBox(id string, x, y, cx, cy int64, paras []*ooxml.Element) *ooxml.Element {
	if len(paras) == 0 {
		paras = []*ooxml.Element{ooxml.E("a:p")}
	}
	return ooxml.E("p:sp",
		ooxml.E("p:nvSpPr",
			ooxml.E("p:cNvPr", ooxml.A("id", id), ooxml.A("name", "TextBox "+id)),
			ooxml.E("p:cNvSpPr", ooxml.A("txBox", "1")),
			ooxml.E("p:nvPr"),
		),
		ooxml.E("p:spPr",
			xfrm("a:xfrm", x, y, cx, cy),
			ooxml.E("a:prstGeom", ooxml.A("prst", "rect"), ooxml.E("a:avLst")),
			solidFill("F2F2F2"),
		),
		ooxml.E("p:txBody",
			ooxml.E("a:bodyPr", ooxml.A("wrap", "square"), ooxml.E("a:normAutofit")),
			ooxml.E("a:lstStyle"),
			paras,
		),
	)
}

func tableFrame(id string, x, y, cx, cy int64, tbl *ooxml.Element) *ooxml.Element {
	return ooxml.E("p:graphicFrame",
		ooxml.E("p:nvGraphicFramePr",
			ooxml.E("p:cNvPr", ooxml.A("id", id), ooxml.A("name", "Table "+id)),
			ooxml.E("p:cNvGraphicFramePr", ooxml.E("a:graphicFrameLocks", ooxml.A("noGrp", "1"))),
			ooxml.E("p:nvPr"),
		),
		xfrm("p:xfrm", x, y, cx, cy),
		ooxml.E("a:graphic", ooxml.E("a:graphicData", ooxml.A("uri", nsTable), tbl)),
	)
}
