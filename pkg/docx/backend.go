package docx

import (
	"math"
	"strconv"
	"strings"

	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/htmlconv"
	"github.com/waftester/reportforge/pkg/ooxml"
)

// textWidth is the usable width of a Letter page with one inch margins,
// in twentieths of a point.
const textWidth = 9360

// backend builds WordprocessingML for one rich-text fragment. Blocks are
// appended to target, which is the fragment root or the table cell being
// filled.
type backend struct {
	doc    *Document
	root   *ooxml.Element
	target *ooxml.Element

	para *ooxml.Element
	ppr  *ooxml.Element

	// caption is set after a caption label so the caption text that
	// follows is title-cased; first tracks the first word.
	caption bool
	first   bool
	// labelEnd drops the leading space of the text after a caption
	// label, which already ends with the configured prefix.
	labelEnd bool

	header bool
	lists  []*listState
	tables []*table
}

var _ htmlconv.Backend = (*backend)(nil)

type listState struct {
	shape listShape
	items []listItem
}

type listItem struct {
	ppr   *ooxml.Element
	level int
}

func newBackend(d *Document) *backend {
	root := ooxml.E("root")
	return &backend{doc: d, root: root, target: root}
}

func (b *backend) BeginParagraph(blk htmlconv.Block) {
	b.para = ooxml.E("w:p")
	b.ppr = ooxml.E("w:pPr")
	b.para.Add(b.ppr)

	switch blk.Kind {
	case htmlconv.BlockHeading:
		b.ppr.Add(pStyle("Heading" + strconv.Itoa(blk.Level)))
	case htmlconv.BlockListItem:
		b.ppr.Add(pStyle(styleListParagraph))
		if n := len(b.lists); n > 0 {
			level := min(blk.Level, maxListLevel)
			b.lists[n-1].shape.see(level, blk.Ordered)
			b.lists[n-1].items = append(b.lists[n-1].items, listItem{ppr: b.ppr, level: level})
		}
	case htmlconv.BlockQuote:
		b.ppr.Add(pStyle(styleQuote))
	case htmlconv.BlockPre:
		if b.doc.styles.use(styleCodeBlock) {
			b.ppr.Add(pStyle(styleCodeBlock))
		}
	}
	if jc := justification(blk.Align); jc != "" {
		b.ppr.Add(ooxml.E("w:jc", ooxml.A("w:val", jc)))
	}
	b.target.Add(b.para)
}

func (b *backend) EndParagraph() {
	if b.para != nil && len(b.ppr.Children) == 0 {
		b.para.Children = b.para.Children[1:]
	}
	b.para, b.ppr = nil, nil
	b.caption, b.labelEnd = false, false
}

// paragraph returns the open paragraph, opening a plain one when content
// arrives outside any.
func (b *backend) paragraph() *ooxml.Element {
	if b.para == nil {
		b.BeginParagraph(htmlconv.Block{})
	}
	return b.para
}

func pStyle(id string) *ooxml.Element {
	return ooxml.E("w:pStyle", ooxml.A("w:val", id))
}

func justification(align string) string {
	switch strings.ToLower(align) {
	case "center":
		return "center"
	case "right":
		return "right"
	case "justify":
		return "both"
	case "left":
		return "left"
	}
	return ""
}

func (b *backend) Text(text string, s htmlconv.Style) {
	if b.labelEnd {
		text = strings.TrimLeft(text, " ")
		if text == "" {
			return
		}
		b.labelEnd = false
	}
	if b.caption {
		text = b.doc.titleCase(text, &b.first)
	}
	run := textRun(b.runProps(s), text)
	if s.Link != "" {
		run = b.hyperlink(s.Link, run)
	}
	b.paragraph().Add(run)
}

func (b *backend) LineBreak() {
	b.paragraph().Add(ooxml.E("w:r", ooxml.E("w:br")))
}

func (b *backend) PageBreak() {
	b.paragraph().Add(ooxml.E("w:r", ooxml.E("w:br", ooxml.A("w:type", "page"))))
}

func (b *backend) Evidence(ev *finding.Evidence) error {
	return b.doc.embedEvidence(b.target, ev)
}

func (b *backend) Caption(name string, kind htmlconv.CaptionKind) {
	p := b.paragraph()
	if style := b.ppr.Find("w:pStyle"); style != nil {
		style.Set("w:val", styleCaption)
	} else {
		b.ppr.Prepend(pStyle(styleCaption))
	}
	p.Add(b.doc.captionLabel(name, kind))
	b.caption, b.first, b.labelEnd = true, true, true
}

func (b *backend) CrossRef(name string) {
	b.paragraph().Add(b.doc.crossRef(name))
}

// runProps builds w:rPr for s in schema order, or nil for plain text.
func (b *backend) runProps(s htmlconv.Style) *ooxml.Element {
	rpr := ooxml.E("w:rPr")
	link := s.Link != ""
	linkStyle := link && b.doc.styles.has(styleHyperlink)
	codeStyle := !link && s.Code && b.doc.styles.use(styleCodeInline)

	switch {
	case linkStyle:
		rpr.Add(ooxml.E("w:rStyle", ooxml.A("w:val", styleHyperlink)))
	case codeStyle:
		rpr.Add(ooxml.E("w:rStyle", ooxml.A("w:val", styleCodeInline)))
	}
	font := s.FontFamily
	if font == "" && s.Code && !codeStyle {
		font = "Courier New"
	}
	if font != "" {
		rpr.Add(ooxml.E("w:rFonts", ooxml.A("w:ascii", font), ooxml.A("w:hAnsi", font), ooxml.A("w:cs", font)))
	}
	if s.Bold || b.header {
		rpr.Add(ooxml.E("w:b"))
	}
	if s.Italic {
		rpr.Add(ooxml.E("w:i"))
	}
	if s.Strike {
		rpr.Add(ooxml.E("w:strike"))
	}
	switch {
	case s.Color != "":
		rpr.Add(ooxml.E("w:color", ooxml.A("w:val", s.Color)))
	case link && !linkStyle:
		rpr.Add(ooxml.E("w:color", ooxml.A("w:val", "0563C1"), ooxml.A("w:themeColor", "hyperlink")))
	}
	if s.FontSize > 0 {
		half := strconv.Itoa(int(math.Round(s.FontSize * 2)))
		rpr.Add(ooxml.E("w:sz", ooxml.A("w:val", half)), ooxml.E("w:szCs", ooxml.A("w:val", half)))
	}
	if s.Highlight && s.Background == "" {
		rpr.Add(ooxml.E("w:highlight", ooxml.A("w:val", "yellow")))
	}
	if s.Underline || (link && !linkStyle) {
		rpr.Add(ooxml.E("w:u", ooxml.A("w:val", "single")))
	}
	if s.Background != "" {
		rpr.Add(ooxml.E("w:shd", ooxml.A("w:val", "clear"), ooxml.A("w:color", "auto"), ooxml.A("w:fill", s.Background)))
	}
	switch {
	case s.Sub:
		rpr.Add(ooxml.E("w:vertAlign", ooxml.A("w:val", "subscript")))
	case s.Sup:
		rpr.Add(ooxml.E("w:vertAlign", ooxml.A("w:val", "superscript")))
	}
	if len(rpr.Children) == 0 {
		return nil
	}
	return rpr
}

// hyperlink wraps run in a w:hyperlink. External targets get a
// relationship of their own; "#name" links to a bookmark.
func (b *backend) hyperlink(href string, run *ooxml.Element) *ooxml.Element {
	h := ooxml.E("w:hyperlink")
	if anchor, ok := strings.CutPrefix(href, "#"); ok {
		h.Set("w:anchor", anchor)
	} else {
		id := b.doc.rels.Ensure(ooxml.RelHyperlink, href, ooxml.TargetModeExt)
		h.Set("xmlns:r", ooxml.NSOfficeRels)
		h.Set("r:id", id)
	}
	h.Set("w:history", "1")
	return h.Add(run)
}

// textRun builds a run, turning newlines into breaks and tabs into tab
// characters.
func textRun(rpr *ooxml.Element, text string) *ooxml.Element {
	r := ooxml.E("w:r", rpr)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			r.Add(ooxml.E("w:br"))
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				r.Add(ooxml.E("w:tab"))
			}
			if seg != "" {
				r.Add(textElement(seg))
			}
		}
	}
	return r
}

func textElement(s string) *ooxml.Element {
	return ooxml.E("w:t", ooxml.A("xml:space", "preserve"), ooxml.Text(s))
}

func (b *backend) BeginList() {
	b.lists = append(b.lists, &listState{})
}

// EndList assigns one numbering instance, chosen by the finished shape,
// to every item of the list.
func (b *backend) EndList() {
	n := len(b.lists)
	if n == 0 {
		return
	}
	l := b.lists[n-1]
	b.lists = b.lists[:n-1]
	if len(l.items) == 0 {
		return
	}
	numID := strconv.Itoa(b.doc.numbering.id(l.shape))
	for _, it := range l.items {
		numPr := ooxml.E("w:numPr",
			ooxml.E("w:ilvl", ooxml.A("w:val", strconv.Itoa(it.level))),
			ooxml.E("w:numId", ooxml.A("w:val", numID)),
		)
		insertAfterStyle(it.ppr, numPr)
	}
}

// insertAfterStyle places el right after w:pStyle, where the schema
// expects w:numPr.
func insertAfterStyle(ppr, el *ooxml.Element) {
	at := 0
	if len(ppr.Children) > 0 {
		if first, ok := ppr.Children[0].(*ooxml.Element); ok && first.Name == "w:pStyle" {
			at = 1
		}
	}
	children := make([]ooxml.Node, 0, len(ppr.Children)+1)
	children = append(children, ppr.Children[:at]...)
	children = append(children, el)
	ppr.Children = append(children, ppr.Children[at:]...)
}

// table is a table being filled. Cells are created up front for the whole
// grid; merges mark the cells they cover.
type table struct {
	parent      *ooxml.Element
	outerHeader bool
	rows, cols  int
	cells       [][]*cell
}

type cell struct {
	tc      *ooxml.Element
	span    int
	vmerge  string
	covered bool
	header  bool
}

func (b *backend) BeginTable(rows, cols int) {
	t := &table{parent: b.target, outerHeader: b.header, rows: rows, cols: cols, cells: make([][]*cell, rows)}
	for r := range t.cells {
		t.cells[r] = make([]*cell, cols)
		for c := range t.cells[r] {
			t.cells[r][c] = &cell{tc: ooxml.E("w:tc"), span: 1}
		}
	}
	b.tables = append(b.tables, t)
}

func (b *backend) currentTable() *table {
	if len(b.tables) == 0 {
		return nil
	}
	return b.tables[len(b.tables)-1]
}

func (b *backend) BeginCell(row, col int, header bool) {
	t := b.currentTable()
	if t == nil || row >= t.rows || col >= t.cols {
		return
	}
	c := t.cells[row][col]
	c.header = header
	b.target = c.tc
	b.header = header
}

func (b *backend) EndCell() {
	if t := b.currentTable(); t != nil {
		b.target = t.parent
		b.header = t.outerHeader
	}
}

func (b *backend) MergeCells(top, left, bottom, right int) {
	t := b.currentTable()
	if t == nil || bottom >= t.rows || right >= t.cols {
		return
	}
	for r := top; r <= bottom; r++ {
		t.cells[r][left].span = right - left + 1
		for c := left + 1; c <= right; c++ {
			t.cells[r][c].covered = true
		}
		if bottom > top {
			if r == top {
				t.cells[r][left].vmerge = "restart"
			} else {
				t.cells[r][left].vmerge = "continue"
			}
		}
	}
}

func (b *backend) EndTable() {
	t := b.currentTable()
	if t == nil {
		return
	}
	b.tables = b.tables[:len(b.tables)-1]
	b.target = t.parent
	b.header = t.outerHeader
	t.parent.Add(b.buildTable(t))
}

func (b *backend) buildTable(t *table) *ooxml.Element {
	colWidth := textWidth / t.cols
	tblPr := ooxml.E("w:tblPr")
	grid := b.doc.styles.has(styleTableGrid)
	if grid {
		tblPr.Add(ooxml.E("w:tblStyle", ooxml.A("w:val", styleTableGrid)))
	}
	tblPr.Add(ooxml.E("w:tblW", ooxml.A("w:w", "5000"), ooxml.A("w:type", "pct")))
	if !grid {
		borders := ooxml.E("w:tblBorders")
		for _, side := range []string{"w:top", "w:left", "w:bottom", "w:right", "w:insideH", "w:insideV"} {
			borders.Add(ooxml.E(side, ooxml.A("w:val", "single"), ooxml.A("w:sz", "4"), ooxml.A("w:space", "0"), ooxml.A("w:color", "auto")))
		}
		tblPr.Add(borders)
	}

	tblGrid := ooxml.E("w:tblGrid")
	for c := 0; c < t.cols; c++ {
		tblGrid.Add(ooxml.E("w:gridCol", ooxml.A("w:w", strconv.Itoa(colWidth))))
	}
	tbl := ooxml.E("w:tbl", tblPr, tblGrid)

	for r := 0; r < t.rows; r++ {
		tr := ooxml.E("w:tr")
		allHeader := true
		for c := 0; c < t.cols; c++ {
			cl := t.cells[r][c]
			if cl.covered {
				continue
			}
			allHeader = allHeader && cl.header
			tcPr := ooxml.E("w:tcPr", ooxml.E("w:tcW", ooxml.A("w:w", strconv.Itoa(colWidth*cl.span)), ooxml.A("w:type", "dxa")))
			if cl.span > 1 {
				tcPr.Add(ooxml.E("w:gridSpan", ooxml.A("w:val", strconv.Itoa(cl.span))))
			}
			switch cl.vmerge {
			case "restart":
				tcPr.Add(ooxml.E("w:vMerge", ooxml.A("w:val", "restart")))
			case "continue":
				tcPr.Add(ooxml.E("w:vMerge"))
			}
			cl.tc.Prepend(tcPr)
			// A cell must end with a paragraph.
			if els := cl.tc.Elements(); els[len(els)-1].Name != "w:p" {
				cl.tc.Add(ooxml.E("w:p"))
			}
			tr.Add(cl.tc)
		}
		if allHeader && r == 0 {
			tr.Prepend(ooxml.E("w:trPr", ooxml.E("w:tblHeader")))
		}
		tbl.Add(tr)
	}
	return tbl
}
