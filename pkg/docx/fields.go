package docx

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/waftester/reportforge/pkg/htmlconv"
	"github.com/waftester/reportforge/pkg/ooxml"
)

// BookmarkName is the bookmark a caption named name is reachable by.
func BookmarkName(name string) string {
	return "_Ref" + strings.Join(strings.Fields(name), "_")
}

// fieldRuns is a complex field: Word computes the result from instr when
// the document is opened or fields are updated; placeholder stands in
// until then.
func fieldRuns(instr, placeholder string) []*ooxml.Element {
	return []*ooxml.Element{
		ooxml.E("w:r", ooxml.E("w:fldChar", ooxml.A("w:fldCharType", "begin"))),
		ooxml.E("w:r", ooxml.E("w:instrText", ooxml.A("xml:space", "preserve"), ooxml.Text(" "+instr+" "))),
		ooxml.E("w:r", ooxml.E("w:fldChar", ooxml.A("w:fldCharType", "separate"))),
		ooxml.E("w:r", textElement(placeholder)),
		ooxml.E("w:r", ooxml.E("w:fldChar", ooxml.A("w:fldCharType", "end"))),
	}
}

// quoteFieldArg quotes a field argument.
func quoteFieldArg(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// captionLabel is the numbered label that starts a caption: the label
// text and a SEQ field, bookmarked when name is set, then the prefix.
func (d *Document) captionLabel(name string, kind htmlconv.CaptionKind) []*ooxml.Element {
	label, prefix, seq := d.cfg.FigureLabel, d.cfg.FigurePrefix, "Figure"
	if kind == htmlconv.CaptionTable {
		label, prefix, seq = d.cfg.TableLabel, d.cfg.TablePrefix, "Table"
	}

	var out []*ooxml.Element
	id := ""
	if name != "" {
		id = strconv.Itoa(d.bookmarkID())
		out = append(out, ooxml.E("w:bookmarkStart", ooxml.A("w:id", id), ooxml.A("w:name", BookmarkName(name))))
	}
	out = append(out, textRun(nil, label+" "))
	out = append(out, fieldRuns("SEQ "+seq+` \* ARABIC`, "#")...)
	if id != "" {
		out = append(out, ooxml.E("w:bookmarkEnd", ooxml.A("w:id", id)))
	}
	if prefix != "" {
		out = append(out, textRun(nil, prefix))
	}
	return out
}

// crossRef is a REF field showing the label and number of the caption
// bookmarked as name.
func (d *Document) crossRef(name string) []*ooxml.Element {
	return fieldRuns("REF "+quoteFieldArg(BookmarkName(name))+` \h`, d.cfg.FigureLabel+" #")
}

// titleCase title-cases caption text word by word. Configured exceptions
// stay lower-case unless they are the first word; first is cleared once
// a word has been written so casing continues across runs.
func (d *Document) titleCase(s string, first *bool) string {
	if !d.cfg.TitleCaseCaptions {
		return s
	}
	caser := cases.Title(language.English, cases.NoLower)
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		if !*first && d.cfg.IsTitleCaseException(w) {
			words[i] = strings.ToLower(w)
		} else {
			words[i] = caser.String(w)
		}
		*first = false
	}
	return strings.Join(words, " ")
}
