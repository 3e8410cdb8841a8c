package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/waftester/reportforge/pkg/htmlconv"
	"github.com/waftester/reportforge/pkg/ooxml"
)

// footnotes collects the footnotes added to a document.
type footnotes struct {
	src   []byte
	next  int
	added []*ooxml.Element
}

var footnoteIDRe = regexp.MustCompile(`<w:footnote\b[^>]*\bw:id="(-?\d+)"`)

func newFootnotes(src []byte) *footnotes {
	return &footnotes{src: src, next: max(maxMatch(footnoteIDRe, src)+1, 1)}
}

// add appends a footnote and returns its ID.
func (f *footnotes) add(text string, rpr *ooxml.Element) int {
	id := f.next
	f.next++
	f.added = append(f.added, ooxml.E("w:footnote", ooxml.A("w:id", strconv.Itoa(id)),
		ooxml.E("w:p",
			ooxml.E("w:pPr", ooxml.E("w:pStyle", ooxml.A("w:val", styleFootnoteText))),
			ooxml.E("w:r",
				ooxml.E("w:rPr", ooxml.E("w:rStyle", ooxml.A("w:val", styleFootnoteRef))),
				ooxml.E("w:footnoteRef"),
			),
			ooxml.E("w:r", rpr, textElement(" "+text)),
		),
	))
	return id
}

// separatorFootnotes is the footnotes part of a template without one:
// the separator and continuation separator Word expects under the
// reserved IDs -1 and 0.
const separatorFootnotes = ooxml.Header +
	`<w:footnotes xmlns:w="` + ooxml.NSWordML + `">` +
	`<w:footnote w:type="separator" w:id="-1"><w:p><w:r><w:separator/></w:r></w:p></w:footnote>` +
	`<w:footnote w:type="continuationSeparator" w:id="0"><w:p><w:r><w:continuationSeparator/></w:r></w:p></w:footnote>` +
	`</w:footnotes>`

func (f *footnotes) render() ([]byte, bool) {
	if len(f.added) == 0 {
		return f.src, false
	}
	src := f.src
	closing := []byte("</w:footnotes>")
	if !bytes.Contains(src, closing) {
		src = []byte(separatorFootnotes)
	}
	return insert(src, bytes.LastIndex(src, closing), []byte(ooxml.Serialize(f.added))), true
}

// footnoteReference is the run that marks a footnote in the body.
func footnoteReference(id int) *ooxml.Element {
	return ooxml.E("w:r",
		ooxml.E("w:rPr", ooxml.E("w:rStyle", ooxml.A("w:val", styleFootnoteRef))),
		ooxml.E("w:footnoteReference", ooxml.A("w:id", strconv.Itoa(id))),
	)
}

func (b *backend) Footnote(text string, s htmlconv.Style) {
	id := b.doc.footnotes.add(text, b.runProps(s))
	b.paragraph().Add(footnoteReference(id))
}

// CleanFootnotes removes empty paragraphs from the separator and
// continuation separator footnotes (IDs -1 and 0) of a written document.
// Templates often carry extra blank paragraphs there, which show up as
// blank lines above every footnote block. The package is rewritten only
// when something was removed.
func CleanFootnotes(doc []byte) ([]byte, error) {
	pkg, err := ooxml.Open(doc)
	if err != nil {
		return nil, err
	}
	part, ok := pkg.Part(FootnotesPart)
	if !ok {
		return doc, nil
	}
	cleaned, changed, err := cleanSeparators(part)
	if err != nil {
		return nil, fmt.Errorf("docx: cleaning footnotes: %w", err)
	}
	if !changed {
		return doc, nil
	}
	pkg.SetPart(FootnotesPart, cleaned)
	return pkg.Bytes()
}

// cleanSeparators cuts run-less paragraphs out of the reserved footnotes,
// keeping at least one paragraph in each.
func cleanSeparators(data []byte) ([]byte, bool, error) {
	type span struct{ from, to int64 }
	var cuts []span

	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		depth         int
		reservedDepth = -1
		paraStart     int64 = -1
		paraHasRun    bool
		kept          int
		empty         []span
	)
	for {
		start := dec.InputOffset()
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch {
			case reservedDepth < 0 && isW(t.Name, "footnote") && isReservedFootnote(t):
				reservedDepth = depth
				kept = 0
				empty = empty[:0]
			case reservedDepth > 0 && depth == reservedDepth+1 && isW(t.Name, "p"):
				paraStart = start
				paraHasRun = false
			case paraStart >= 0 && isW(t.Name, "r"):
				paraHasRun = true
			}
		case xml.EndElement:
			switch {
			case paraStart >= 0 && depth == reservedDepth+1 && isW(t.Name, "p"):
				if paraHasRun {
					kept++
				} else {
					empty = append(empty, span{paraStart, dec.InputOffset()})
				}
				paraStart = -1
			case depth == reservedDepth:
				if kept == 0 && len(empty) > 0 {
					empty = empty[1:]
				}
				cuts = append(cuts, empty...)
				empty = nil
				reservedDepth = -1
			}
			depth--
		}
	}
	if len(cuts) == 0 {
		return data, false, nil
	}

	var out bytes.Buffer
	var last int64
	for _, c := range cuts {
		out.Write(data[last:c.from])
		last = c.to
	}
	out.Write(data[last:])
	return out.Bytes(), true, nil
}

func isW(n xml.Name, local string) bool {
	return n.Space == ooxml.NSWordML && n.Local == local
}

func isReservedFootnote(se xml.StartElement) bool {
	for _, a := range se.Attr {
		if a.Name.Local == "id" && (a.Value == "-1" || a.Value == "0") {
			return true
		}
	}
	return false
}
