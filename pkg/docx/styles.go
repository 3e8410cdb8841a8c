package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/reporterr"
)

// Style IDs the converter refers to.
const (
	styleCaption       = "Caption"
	styleCodeBlock     = "CodeBlock"
	styleCodeInline    = "CodeInline"
	styleHyperlink     = "Hyperlink"
	styleListParagraph = "ListParagraph"
	styleQuote         = "Quote"
	styleTableGrid     = "TableGrid"
	styleFootnoteText  = "FootnoteText"
	styleFootnoteRef   = "FootnoteReference"
)

// customStyles are added to templates that do not define them.
var customStyles = map[string]*ooxml.Element{
	styleCodeBlock: ooxml.E("w:style", ooxml.A("w:type", "paragraph"), ooxml.A("w:customStyle", "1"), ooxml.A("w:styleId", styleCodeBlock),
		ooxml.E("w:name", ooxml.A("w:val", "Code Block")),
		ooxml.E("w:basedOn", ooxml.A("w:val", "Normal")),
		ooxml.E("w:qFormat"),
		ooxml.E("w:pPr",
			ooxml.E("w:shd", ooxml.A("w:val", "clear"), ooxml.A("w:color", "auto"), ooxml.A("w:fill", "F2F2F2")),
			ooxml.E("w:spacing", ooxml.A("w:after", "0"), ooxml.A("w:line", "240"), ooxml.A("w:lineRule", "auto")),
		),
		ooxml.E("w:rPr",
			ooxml.E("w:rFonts", ooxml.A("w:ascii", "Courier New"), ooxml.A("w:hAnsi", "Courier New"), ooxml.A("w:cs", "Courier New")),
			ooxml.E("w:sz", ooxml.A("w:val", "18")),
		),
	),
	styleCodeInline: ooxml.E("w:style", ooxml.A("w:type", "character"), ooxml.A("w:customStyle", "1"), ooxml.A("w:styleId", styleCodeInline),
		ooxml.E("w:name", ooxml.A("w:val", "Code Inline")),
		ooxml.E("w:qFormat"),
		ooxml.E("w:rPr",
			ooxml.E("w:rFonts", ooxml.A("w:ascii", "Courier New"), ooxml.A("w:hAnsi", "Courier New"), ooxml.A("w:cs", "Courier New")),
		),
	),
}

// styles knows which style IDs the template defines and which custom
// styles had to be added.
type styles struct {
	src     []byte
	defined map[string]string // ID -> type
	added   map[string]bool
}

func loadStyles(pkg *ooxml.Package) (*styles, error) {
	st := &styles{defined: make(map[string]string), added: make(map[string]bool)}
	data, ok := pkg.Part(StylesPart)
	if !ok {
		return st, nil
	}
	st.src = data
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", reporterr.ErrInvalidTemplateDocument, StylesPart, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "style" || se.Name.Space != ooxml.NSWordML {
			continue
		}
		var id, typ string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "styleId":
				id = a.Value
			case "type":
				typ = a.Value
			}
		}
		if id != "" {
			st.defined[id] = typ
		}
	}
	return st, nil
}

// has reports whether the template defines style id.
func (s *styles) has(id string) bool {
	_, ok := s.defined[id]
	return ok
}

// use reports whether style id can be referenced, adding the definition
// when it is one of the custom styles the template lacks.
func (s *styles) use(id string) bool {
	if s.has(id) || s.added[id] {
		return true
	}
	if _, ok := customStyles[id]; ok {
		s.added[id] = true
		return true
	}
	return false
}

const stylesRoot = `<w:styles xmlns:w="` + ooxml.NSWordML + `">`

func (s *styles) render() ([]byte, bool) {
	if len(s.added) == 0 {
		return s.src, false
	}
	ids := make([]string, 0, len(s.added))
	for id := range s.added {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	defs := make([]*ooxml.Element, 0, len(ids))
	for _, id := range ids {
		defs = append(defs, customStyles[id])
	}

	src := s.src
	closing := []byte("</w:styles>")
	if !bytes.Contains(src, closing) {
		src = []byte(ooxml.Header + stylesRoot + "</w:styles>")
	}
	return insert(src, bytes.LastIndex(src, closing), []byte(ooxml.Serialize(defs))), true
}
