package htmlconv

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/strutil"
	"github.com/waftester/reportforge/pkg/templating"
)

// AttrCaptionKind selects the table sequence for a caption marker.
const AttrCaptionKind = "data-gw-caption-kind"

// maxSpan bounds colspan and rowspan.
const maxSpan = 1000

// Options configures a conversion.
type Options struct {
	// Evidence resolves evidence markers by friendly name.
	Evidence finding.EvidenceSet
	// Logger receives warnings about skipped content. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

type handler func(v *visitor, n *html.Node, s Style) error

// handlers is the closed set of supported tags. Anything else is logged
// and skipped together with its children.
var handlers map[atom.Atom]handler

func init() {
	handlers = map[atom.Atom]handler{
		atom.P:          (*visitor).paragraph,
		atom.H1:         (*visitor).heading,
		atom.H2:         (*visitor).heading,
		atom.H3:         (*visitor).heading,
		atom.H4:         (*visitor).heading,
		atom.H5:         (*visitor).heading,
		atom.H6:         (*visitor).heading,
		atom.Pre:        (*visitor).preformatted,
		atom.Blockquote: (*visitor).blockquote,
		atom.Ul:         (*visitor).list,
		atom.Ol:         (*visitor).list,
		atom.Li:         (*visitor).strayItem,
		atom.Table:      (*visitor).table,
		atom.Span:       (*visitor).span,
		atom.A:          (*visitor).anchor,
		atom.Br:         (*visitor).lineBreak,
		atom.B:          styled(Style{Bold: true}),
		atom.Strong:     styled(Style{Bold: true}),
		atom.I:          styled(Style{Italic: true}),
		atom.Em:         styled(Style{Italic: true}),
		atom.U:          styled(Style{Underline: true}),
		atom.Del:        styled(Style{Strike: true}),
		atom.S:          styled(Style{Strike: true}),
		atom.Sub:        styled(Style{Sub: true}),
		atom.Sup:        styled(Style{Sup: true}),
		atom.Code:       styled(Style{Code: true}),
		atom.Mark:       styled(Style{Highlight: true}),
	}
}

func styled(add Style) handler {
	return func(v *visitor, n *html.Node, s Style) error {
		return v.children(n, s.Merge(add))
	}
}

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// Convert parses src and drives b with its structure.
func Convert(src string, b Backend, opts Options) error {
	nodes, err := html.ParseFragment(strings.NewReader(src), bodyContext)
	if err != nil {
		return fmt.Errorf("htmlconv: parsing rich text: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := &visitor{backend: b, evidence: opts.Evidence, logger: logger}
	for _, n := range nodes {
		if err := v.node(n, Style{}); err != nil {
			return err
		}
	}
	v.end(true)
	return nil
}

type visitor struct {
	backend  Backend
	evidence finding.EvidenceSet
	logger   *slog.Logger

	// pending is a paragraph that has been opened but not yet started on
	// the backend; it starts when content arrives.
	pending *Block
	open    bool
	// implicit is the block inline content outside any paragraph gets.
	implicit  Block
	text      textTracker
	pre       bool
	listDepth int
	inItem    bool
}

func (v *visitor) node(n *html.Node, s Style) error {
	switch n.Type {
	case html.TextNode:
		v.textNode(n.Data, s)
	case html.ElementNode:
		h, ok := handlers[n.DataAtom]
		if !ok {
			v.logger.Warn("skipping unsupported rich text tag", slog.String("tag", n.Data))
			return nil
		}
		return h(v, n, s)
	}
	return nil
}

func (v *visitor) children(n *html.Node, s Style) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := v.node(c, s); err != nil {
			return err
		}
	}
	return nil
}

func (v *visitor) inParagraph() bool { return v.open || v.pending != nil }

func (v *visitor) begin(b Block) {
	v.end(true)
	v.pending = &b
}

// materialize starts the pending paragraph, or an implicit one, on the
// backend.
func (v *visitor) materialize() {
	if v.open {
		return
	}
	b := v.implicit
	if v.pending != nil {
		b = *v.pending
	}
	v.backend.BeginParagraph(b)
	v.pending = nil
	v.open = true
}

// end closes the current paragraph. An opened paragraph that never got
// content is still emitted when keepEmpty is set.
func (v *visitor) end(keepEmpty bool) {
	switch {
	case v.open:
		v.backend.EndParagraph()
	case v.pending != nil && keepEmpty:
		v.backend.BeginParagraph(*v.pending)
		v.backend.EndParagraph()
	}
	v.open = false
	v.pending = nil
	v.text.reset()
}

func (v *visitor) textNode(data string, s Style) {
	if v.pre {
		v.materialize()
		for i, line := range strings.Split(data, "\n") {
			if i > 0 {
				v.backend.LineBreak()
			}
			if line != "" {
				v.backend.Text(strutil.XMLSafe(line), s)
			}
		}
		return
	}
	if !v.inParagraph() && collapse(data) == "" {
		return
	}
	runs := v.text.feed(data, s)
	if len(runs) == 0 {
		return
	}
	v.materialize()
	for _, r := range runs {
		v.backend.Text(strutil.XMLSafe(r.text), r.style)
	}
}

// inline emits non-text content within the current paragraph, preceded by
// any deferred space.
func (v *visitor) inline(emit func()) {
	v.materialize()
	if r, ok := v.text.flush(); ok {
		v.backend.Text(r.text, r.style)
	}
	emit()
}

func (v *visitor) paragraph(n *html.Node, s Style) error {
	if v.inItem {
		if v.open {
			v.backend.LineBreak()
			v.text.reset()
		}
		return v.children(n, s)
	}
	b := v.implicit
	b.Align = textAlign(n)
	v.begin(b)
	err := v.children(n, s)
	v.end(true)
	return err
}

func (v *visitor) heading(n *html.Node, s Style) error {
	level := int(n.Data[1] - '0')
	v.begin(Block{Kind: BlockHeading, Level: level, Align: textAlign(n)})
	err := v.children(n, s)
	v.end(true)
	return err
}

func (v *visitor) preformatted(n *html.Node, s Style) error {
	v.begin(Block{Kind: BlockPre})
	v.pre = true
	err := v.children(n, s)
	v.pre = false
	v.end(true)
	return err
}

func (v *visitor) blockquote(n *html.Node, s Style) error {
	v.end(true)
	saved := v.implicit
	v.implicit = Block{Kind: BlockQuote}
	err := v.children(n, s)
	v.end(true)
	v.implicit = saved
	return err
}

func (v *visitor) list(n *html.Node, s Style) error {
	v.end(true)
	ordered := n.DataAtom == atom.Ol
	level := v.listDepth
	if level == 0 {
		v.backend.BeginList()
	}
	v.listDepth++
	savedItem := v.inItem

	var err error
	for c := n.FirstChild; c != nil && err == nil; c = c.NextSibling {
		switch {
		case c.Type == html.ElementNode && c.DataAtom == atom.Li:
			err = v.listItem(c, s, level, ordered)
		case c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol):
			err = v.list(c, s)
		case c.Type == html.TextNode && collapse(c.Data) == "":
		default:
			v.logger.Warn("skipping list content outside an item", slog.String("tag", c.Data))
		}
	}

	v.listDepth--
	v.inItem = savedItem
	if level == 0 {
		v.backend.EndList()
	}
	return err
}

func (v *visitor) listItem(li *html.Node, s Style, level int, ordered bool) error {
	v.begin(Block{Kind: BlockListItem, Level: level, Ordered: ordered})
	v.inItem = true
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
			if err := v.list(c, s); err != nil {
				return err
			}
			v.inItem = false
			continue
		}
		if err := v.node(c, s); err != nil {
			return err
		}
	}
	v.end(true)
	v.inItem = false
	return nil
}

// strayItem handles an li outside any list as a one-item bulleted list.
func (v *visitor) strayItem(n *html.Node, s Style) error {
	v.end(true)
	v.backend.BeginList()
	v.listDepth++
	err := v.listItem(n, s, 0, false)
	v.listDepth--
	v.backend.EndList()
	return err
}

func (v *visitor) anchor(n *html.Node, s Style) error {
	if href := attr(n, "href"); href != "" {
		s.Link = href
	}
	return v.children(n, s)
}

func (v *visitor) lineBreak(n *html.Node, _ Style) error {
	if hasAttr(n, templating.AttrPageBreak) {
		v.materialize()
		v.backend.PageBreak()
	} else {
		v.materialize()
		v.backend.LineBreak()
	}
	v.text.reset()
	return nil
}

func (v *visitor) span(n *html.Node, s Style) error {
	switch {
	case hasAttr(n, templating.AttrEvidence):
		return v.embedEvidence(attr(n, templating.AttrEvidence))
	case hasAttr(n, templating.AttrCaption):
		kind := CaptionFigure
		if attr(n, AttrCaptionKind) == "table" {
			kind = CaptionTable
		}
		name := attr(n, templating.AttrCaption)
		v.inline(func() { v.backend.Caption(name, kind) })
		return nil
	case hasAttr(n, templating.AttrRef):
		name := attr(n, templating.AttrRef)
		v.inline(func() { v.backend.CrossRef(name) })
		return nil
	case hasAttr(n, templating.AttrPageBreak):
		return v.lineBreak(n, s)
	case hasClass(n, "footnote"):
		text := collapse(textContent(n))
		if text != "" {
			v.inline(func() { v.backend.Footnote(strutil.XMLSafe(text), s) })
		}
		return nil
	}
	return v.children(n, s.Merge(parseSpanStyle(attr(n, "style"), attr(n, "class"), v.logger)))
}

func (v *visitor) embedEvidence(name string) error {
	ev, ok := v.evidence[name]
	if !ok {
		return fmt.Errorf("%w: %q", reporterr.ErrUnknownEvidence, name)
	}
	v.end(false)
	return v.backend.Evidence(ev)
}

// table sizes the grid from the declared spans, then places each cell at
// the next free position of its row and merges spanning cells.
func (v *visitor) table(n *html.Node, s Style) error {
	v.end(true)
	rows := tableRows(n)
	height, width := measure(rows)
	if height == 0 || width == 0 {
		return nil
	}

	v.backend.BeginTable(height, width)
	occupied := make([][]bool, height)
	for i := range occupied {
		occupied[i] = make([]bool, width)
	}

	for r, tr := range rows {
		col := 0
		for _, td := range rowCells(tr) {
			for col < width && occupied[r][col] {
				col++
			}
			if col >= width {
				v.logger.Warn("dropping table cell outside the grid", slog.Int("row", r), slog.Int("width", width))
				continue
			}
			rowspan, colspan := spans(td)

			right := col
			for right+1 < min(col+colspan, width) && !occupied[r][right+1] {
				right++
			}
			bottom := r
			for bottom+1 < min(r+rowspan, height) && rangeFree(occupied[bottom+1], col, right) {
				bottom++
			}
			for rr := r; rr <= bottom; rr++ {
				for cc := col; cc <= right; cc++ {
					occupied[rr][cc] = true
				}
			}

			v.backend.BeginCell(r, col, td.DataAtom == atom.Th)
			if err := v.cell(td, s); err != nil {
				return err
			}
			v.backend.EndCell()
			if bottom > r || right > col {
				v.backend.MergeCells(r, col, bottom, right)
			}
			col = right + 1
		}
	}
	v.backend.EndTable()
	return nil
}

// cell converts cell content with fresh block state.
func (v *visitor) cell(td *html.Node, s Style) error {
	implicit, pre, depth, inItem := v.implicit, v.pre, v.listDepth, v.inItem
	v.implicit, v.pre, v.listDepth, v.inItem = Block{}, false, 0, false

	err := v.children(td, s)
	v.end(true)

	v.implicit, v.pre, v.listDepth, v.inItem = implicit, pre, depth, inItem
	return err
}

func rangeFree(row []bool, from, to int) bool {
	for c := from; c <= to; c++ {
		if row[c] {
			return false
		}
	}
	return true
}

// tableRows returns the rows of a table in document order.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			rows = append(rows, c)
		case atom.Thead, atom.Tbody, atom.Tfoot:
			for r := c.FirstChild; r != nil; r = r.NextSibling {
				if r.Type == html.ElementNode && r.DataAtom == atom.Tr {
					rows = append(rows, r)
				}
			}
		}
	}
	return rows
}

func rowCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, c)
		}
	}
	return cells
}

// measure returns the grid size: the largest row-index-plus-rowspan and the
// largest row sum of colspans.
func measure(rows []*html.Node) (height, width int) {
	for r, tr := range rows {
		sum := 0
		for _, td := range rowCells(tr) {
			rowspan, colspan := spans(td)
			sum += colspan
			height = max(height, r+rowspan)
		}
		width = max(width, sum)
	}
	return height, width
}

func spans(td *html.Node) (rowspan, colspan int) {
	return spanAttr(td, "rowspan"), spanAttr(td, "colspan")
}

func spanAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(attr(n, key)))
	if err != nil || v < 1 {
		return 1
	}
	return min(v, maxSpan)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textAlign(n *html.Node) string {
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(prop), "text-align") {
			return strings.ToLower(strings.TrimSpace(val))
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
