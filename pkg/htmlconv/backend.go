// Package htmlconv walks rendered rich-text HTML and drives a
// format-specific Backend with the structure it finds: paragraphs,
// headings, lists, tables, styled text runs and the report markers.
package htmlconv

import (
	"github.com/waftester/reportforge/pkg/finding"
)

// BlockKind is the kind of paragraph being started.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockQuote
	BlockPre
)

func (k BlockKind) String() string {
	switch k {
	case BlockHeading:
		return "heading"
	case BlockListItem:
		return "list-item"
	case BlockQuote:
		return "quote"
	case BlockPre:
		return "pre"
	default:
		return "paragraph"
	}
}

// Block describes a paragraph.
type Block struct {
	Kind BlockKind
	// Level is the heading level (1-6) for headings and the zero-based
	// nesting depth for list items.
	Level int
	// Ordered is set on list items of numbered lists.
	Ordered bool
	// Align is the CSS text-align of the paragraph, if any.
	Align string
}

// CaptionKind selects the label and sequence a caption is numbered in.
type CaptionKind int

const (
	CaptionFigure CaptionKind = iota
	CaptionTable
)

// Backend receives the structure of a rich-text fragment. Calls arrive in
// document order. Text, LineBreak, PageBreak, Footnote, Caption and
// CrossRef only occur between BeginParagraph and EndParagraph. Evidence is
// always called between paragraphs.
type Backend interface {
	BeginParagraph(b Block)
	EndParagraph()

	Text(text string, s Style)
	LineBreak()
	PageBreak()
	Footnote(text string, s Style)

	// Evidence embeds an evidence file with its caption.
	Evidence(ev *finding.Evidence) error
	// Caption starts an auto-numbered caption in the current paragraph,
	// bookmarked as name when name is not empty.
	Caption(name string, kind CaptionKind)
	// CrossRef references the caption bookmarked as name.
	CrossRef(name string)

	// BeginList and EndList bracket the paragraphs of one top-level list,
	// including its nested lists.
	BeginList()
	EndList()

	BeginTable(rows, cols int)
	BeginCell(row, col int, header bool)
	EndCell()
	// MergeCells merges the inclusive rectangle into its top-left cell.
	MergeCells(top, left, bottom, right int)
	EndTable()
}
