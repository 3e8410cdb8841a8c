package pptx

import (
	"math"
	"strconv"
	"strings"

	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/htmlconv"
	"github.com/waftester/reportforge/pkg/ooxml"
)

// indentStep is the list indentation per level in EMU (0.375").
const indentStep = 342900

const monoFont = "Courier New"

// backend builds DrawingML paragraphs for one rich-text fragment on a
// slide. Paragraphs go to the slide body, to a preformatted text box or
// to the table cell being filled.
type backend struct {
	slide *Slide

	para    *ooxml.Element
	heading bool
	pre     bool
	// afterLabel separates a caption label from the text that follows.
	afterLabel bool

	header bool
	tables []*table
	nested int
}

var _ htmlconv.Backend = (*backend)(nil)

type table struct {
	rows, cols int
	cells      [][]*cell
	cur        *cell
}

type cell struct {
	paras   []*ooxml.Element
	header  bool
	colSpan int
	rowSpan int
	hMerge  bool
	vMerge  bool
}

func (b *backend) BeginParagraph(blk htmlconv.Block) {
	b.para = ooxml.E("a:p")
	ppr := ooxml.E("a:pPr")
	b.para.Add(ppr)
	b.heading = blk.Kind == htmlconv.BlockHeading
	b.pre = blk.Kind == htmlconv.BlockPre

	switch blk.Kind {
	case htmlconv.BlockListItem:
		level := min(blk.Level, 8)
		ppr.Set("marL", strconv.Itoa((level+1)*indentStep))
		ppr.Set("lvl", strconv.Itoa(level))
		ppr.Set("indent", strconv.Itoa(-indentStep))
		if blk.Ordered {
			ppr.Add(ooxml.E("a:buAutoNum", ooxml.A("type", "arabicPeriod")))
		} else {
			ppr.Add(ooxml.E("a:buFont", ooxml.A("typeface", "Arial")), ooxml.E("a:buChar", ooxml.A("char", "•")))
		}
	case htmlconv.BlockQuote:
		ppr.Set("marL", strconv.Itoa(indentStep))
		ppr.Set("indent", "0")
		ppr.Add(ooxml.E("a:buNone"))
	default:
		ppr.Set("marL", "0")
		ppr.Set("indent", "0")
		ppr.Add(ooxml.E("a:buNone"))
	}
	if algn := alignment(blk.Align); algn != "" {
		ppr.Set("algn", algn)
	}
	b.place(b.para)
}

// place appends p where the current block belongs.
func (b *backend) place(p *ooxml.Element) {
	if n := len(b.tables); n > 0 && b.tables[n-1].cur != nil {
		c := b.tables[n-1].cur
		c.paras = append(c.paras, p)
		return
	}
	if b.pre {
		b.slide.boxes = append(b.slide.boxes, []*ooxml.Element{p})
		return
	}
	b.slide.body = append(b.slide.body, p)
}

func (b *backend) EndParagraph() {
	b.para = nil
	b.heading, b.pre, b.afterLabel = false, false, false
}

func (b *backend) paragraph() *ooxml.Element {
	if b.para == nil {
		b.BeginParagraph(htmlconv.Block{})
	}
	return b.para
}

func plainPPr() *ooxml.Element {
	return ooxml.E("a:pPr", ooxml.A("marL", "0"), ooxml.A("indent", "0"), ooxml.E("a:buNone"))
}

func alignment(align string) string {
	switch strings.ToLower(align) {
	case "center":
		return "ctr"
	case "right":
		return "r"
	case "justify":
		return "just"
	case "left":
		return "l"
	}
	return ""
}

// appendText adds runs of text to p, turning newlines into breaks.
func appendText(p, rpr *ooxml.Element, text string) {
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			p.Add(ooxml.E("a:br", rpr))
		}
		if line != "" {
			p.Add(ooxml.E("a:r", rpr, ooxml.E("a:t", ooxml.Text(line))))
		}
	}
}

func (b *backend) Text(text string, s htmlconv.Style) {
	if b.afterLabel && text != "" {
		if !strings.HasPrefix(text, " ") {
			text = " " + text
		}
		b.afterLabel = false
	}
	appendText(b.paragraph(), b.runProps(s), text)
}

func (b *backend) LineBreak() {
	b.paragraph().Add(ooxml.E("a:br"))
	b.afterLabel = false
}

// PageBreak has no slide equivalent and becomes a line break.
func (b *backend) PageBreak() { b.LineBreak() }

// Footnote is shown inline in parentheses.
func (b *backend) Footnote(text string, s htmlconv.Style) {
	b.Text(" ("+text+")", s)
}

func (b *backend) Evidence(ev *finding.Evidence) error {
	b.BeginParagraph(htmlconv.Block{})
	b.see(ev.FriendlyName)
	b.EndParagraph()
	return nil
}

func (b *backend) Caption(name string, _ htmlconv.CaptionKind) {
	if name != "" {
		b.see(name)
		b.afterLabel = true
	}
}

func (b *backend) CrossRef(name string) { b.see(name) }

func (b *backend) see(name string) {
	b.Text("See "+name, htmlconv.Style{Italic: true})
}

// runProps builds a:rPr for s. Attributes come first, then the child
// elements in schema order.
func (b *backend) runProps(s htmlconv.Style) *ooxml.Element {
	rpr := ooxml.E("a:rPr", ooxml.A("lang", "en-US"))
	if s.FontSize > 0 {
		rpr.Set("sz", strconv.Itoa(int(math.Round(s.FontSize*100))))
	}
	if s.Bold || b.heading || b.header {
		rpr.Set("b", "1")
	}
	if s.Italic {
		rpr.Set("i", "1")
	}
	if s.Underline {
		rpr.Set("u", "sng")
	}
	if s.Strike {
		rpr.Set("strike", "sngStrike")
	}
	switch {
	case s.Sub:
		rpr.Set("baseline", "-25000")
	case s.Sup:
		rpr.Set("baseline", "30000")
	}

	if s.Color != "" {
		rpr.Add(solidFill(s.Color))
	}
	switch {
	case s.Background != "":
		rpr.Add(ooxml.E("a:highlight", ooxml.E("a:srgbClr", ooxml.A("val", s.Background))))
	case s.Highlight:
		rpr.Add(ooxml.E("a:highlight", ooxml.E("a:srgbClr", ooxml.A("val", "FFFF00"))))
	}
	font := s.FontFamily
	if font == "" && (s.Code || b.pre) {
		font = monoFont
	}
	if font != "" {
		rpr.Add(ooxml.E("a:latin", ooxml.A("typeface", font)))
	}
	if s.Link != "" {
		id := b.slide.rels.Ensure(ooxml.RelHyperlink, s.Link, ooxml.TargetModeExt)
		rpr.Add(ooxml.E("a:hlinkClick", ooxml.A("r:id", id)))
	}
	return rpr
}

// Lists are expressed through paragraph levels.
func (b *backend) BeginList() {}
func (b *backend) EndList()   {}

// BeginTable starts a table. Tables nested in a cell are flattened into
// that cell.
func (b *backend) BeginTable(rows, cols int) {
	if len(b.tables) > 0 {
		b.nested++
		return
	}
	t := &table{rows: rows, cols: cols, cells: make([][]*cell, rows)}
	for r := range t.cells {
		t.cells[r] = make([]*cell, cols)
		for c := range t.cells[r] {
			t.cells[r][c] = &cell{}
		}
	}
	b.tables = append(b.tables, t)
}

func (b *backend) BeginCell(row, col int, header bool) {
	if b.nested > 0 || len(b.tables) == 0 {
		return
	}
	t := b.tables[len(b.tables)-1]
	if row >= t.rows || col >= t.cols {
		return
	}
	t.cur = t.cells[row][col]
	t.cur.header = header
	b.header = header
}

func (b *backend) EndCell() {
	if b.nested > 0 || len(b.tables) == 0 {
		return
	}
	b.tables[len(b.tables)-1].cur = nil
	b.header = false
}

func (b *backend) MergeCells(top, left, bottom, right int) {
	if b.nested > 0 || len(b.tables) == 0 {
		return
	}
	t := b.tables[len(b.tables)-1]
	bottom, right = min(bottom, t.rows-1), min(right, t.cols-1)
	corner := t.cells[top][left]
	corner.colSpan = right - left + 1
	corner.rowSpan = bottom - top + 1
	for r := top; r <= bottom; r++ {
		for c := left; c <= right; c++ {
			if c > left {
				t.cells[r][c].hMerge = true
			}
			if r > top {
				t.cells[r][c].vMerge = true
			}
		}
	}
}

func (b *backend) EndTable() {
	if b.nested > 0 {
		b.nested--
		return
	}
	if len(b.tables) == 0 {
		return
	}
	t := b.tables[len(b.tables)-1]
	b.tables = b.tables[:len(b.tables)-1]
	b.slide.tables = append(b.slide.tables, t.element(b.slide.p.width-2*(b.slide.p.width/16)))
}

// rowHeight is the minimum height of a table row in EMU.
const rowHeight = 370840

// element builds a:tbl spanning width EMU.
func (t *table) element(width int64) *ooxml.Element {
	firstRow := t.rows > 0
	if firstRow {
		for _, c := range t.cells[0] {
			firstRow = firstRow && c.header
		}
	}
	pr := ooxml.E("a:tblPr", ooxml.A("bandRow", "1"))
	if firstRow {
		pr.Set("firstRow", "1")
	}
	grid := ooxml.E("a:tblGrid")
	colWidth := strconv.FormatInt(width/int64(max(t.cols, 1)), 10)
	for range t.cols {
		grid.Add(ooxml.E("a:gridCol", ooxml.A("w", colWidth)))
	}
	tbl := ooxml.E("a:tbl", pr, grid)
	for _, row := range t.cells {
		tr := ooxml.E("a:tr", ooxml.A("h", strconv.Itoa(rowHeight)))
		for _, c := range row {
			tc := ooxml.E("a:tc")
			if c.colSpan > 1 {
				tc.Set("gridSpan", strconv.Itoa(c.colSpan))
			}
			if c.rowSpan > 1 {
				tc.Set("rowSpan", strconv.Itoa(c.rowSpan))
			}
			if c.hMerge {
				tc.Set("hMerge", "1")
			}
			if c.vMerge {
				tc.Set("vMerge", "1")
			}
			paras := c.paras
			if len(paras) == 0 {
				paras = []*ooxml.Element{ooxml.E("a:p")}
			}
			tc.Add(ooxml.E("a:txBody", ooxml.E("a:bodyPr"), ooxml.E("a:lstStyle"), paras), ooxml.E("a:tcPr"))
			tr.Add(tc)
		}
		tbl.Add(tr)
	}
	return tbl
}
