// Package plaintext flattens rich text to plain text for spreadsheet cells
// and other targets without structure. Paragraphs and line breaks become
// newlines; evidence, captions and references become readable sentences.
package plaintext

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/htmlconv"
	"github.com/waftester/reportforge/pkg/strutil"
)

// Options configures a conversion.
type Options struct {
	Evidence finding.EvidenceSet
	Logger   *slog.Logger
}

// Convert flattens rendered rich-text HTML.
func Convert(html string, opts Options) (string, error) {
	b := &Backend{}
	if err := htmlconv.Convert(html, b, htmlconv.Options{Evidence: opts.Evidence, Logger: opts.Logger}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ConvertCell flattens html and makes the result safe to store in a
// spreadsheet cell.
func ConvertCell(html string, opts Options) (string, error) {
	s, err := Convert(html, opts)
	if err != nil {
		return "", err
	}
	return strutil.SanitizeFormula(s), nil
}

// Backend is the htmlconv.Backend that accumulates plain text.
type Backend struct {
	lines []string
	line  strings.Builder

	// counters holds the next number of each ordered list level.
	counters []int

	table  *table
	nested int

	// afterLabel separates a caption label from the text that follows.
	afterLabel bool
}

type table struct {
	rows [][]string
	row  int
	col  int
}

// String returns the text gathered so far, without a trailing newline.
func (b *Backend) String() string {
	return strings.TrimRight(strings.Join(b.lines, "\n"), "\n")
}

func (b *Backend) BeginParagraph(blk htmlconv.Block) {
	b.line.Reset()
	b.afterLabel = false
	if blk.Kind != htmlconv.BlockListItem {
		return
	}
	indent := strings.Repeat("  ", blk.Level)
	if !blk.Ordered {
		b.line.WriteString(indent + "- ")
		return
	}
	for len(b.counters) <= blk.Level {
		b.counters = append(b.counters, 1)
	}
	// Deeper levels restart when a shallower item appears.
	for i := blk.Level + 1; i < len(b.counters); i++ {
		b.counters[i] = 1
	}
	b.line.WriteString(indent + strconv.Itoa(b.counters[blk.Level]) + ". ")
	b.counters[blk.Level]++
}

func (b *Backend) EndParagraph() {
	b.emit(b.line.String())
	b.line.Reset()
}

func (b *Backend) emit(line string) {
	if b.table != nil {
		t := b.table
		cell := &t.rows[t.row][t.col]
		if *cell != "" {
			*cell += " "
		}
		*cell += strings.ReplaceAll(line, "\n", " ")
		return
	}
	b.lines = append(b.lines, line)
}

func (b *Backend) Text(text string, _ htmlconv.Style) {
	if b.afterLabel && text != "" {
		if !strings.HasPrefix(text, " ") {
			b.line.WriteString(" ")
		}
		b.afterLabel = false
	}
	b.line.WriteString(text)
}

func (b *Backend) LineBreak() {
	b.line.WriteString("\n")
	b.afterLabel = false
}

func (b *Backend) PageBreak() { b.LineBreak() }

func (b *Backend) Footnote(text string, _ htmlconv.Style) {
	b.line.WriteString(" (" + text + ")")
}

func (b *Backend) Evidence(ev *finding.Evidence) error {
	b.emit(EvidenceSentence(ev))
	return nil
}

// EvidenceSentence is the text that stands in for an embedded evidence
// file.
func EvidenceSentence(ev *finding.Evidence) string {
	if c := strings.TrimSpace(ev.Caption); c != "" {
		return fmt.Sprintf("See evidence file %s: %s.", ev.FriendlyName, strings.TrimRight(c, "."))
	}
	return fmt.Sprintf("See evidence file %s.", ev.FriendlyName)
}

func (b *Backend) Caption(name string, _ htmlconv.CaptionKind) {
	if name != "" {
		b.line.WriteString("See " + name + ".")
		b.afterLabel = true
	}
}

func (b *Backend) CrossRef(name string) { b.line.WriteString("See " + name + ".") }

func (b *Backend) BeginList() { b.counters = b.counters[:0] }

func (b *Backend) EndList() {}

func (b *Backend) BeginTable(rows, cols int) {
	if b.table != nil {
		// Nested tables are flattened into the enclosing cell.
		b.nested++
		return
	}
	b.table = &table{rows: make([][]string, rows)}
	for i := range b.table.rows {
		b.table.rows[i] = make([]string, cols)
	}
}

func (b *Backend) BeginCell(row, col int, _ bool) {
	if b.table == nil || b.nested > 0 {
		return
	}
	b.table.row, b.table.col = row, col
}

func (b *Backend) EndCell() {}

func (b *Backend) MergeCells(_, _, _, _ int) {}

func (b *Backend) EndTable() {
	if b.nested > 0 {
		b.nested--
		return
	}
	t := b.table
	if t == nil {
		return
	}
	b.table = nil
	for _, row := range t.rows {
		b.lines = append(b.lines, strings.TrimRight(strings.Join(row, "\t"), "\t"))
	}
}
