// Package docx renders reports into Word documents. A template document
// acts as the skeleton: its parts are rendered as templates, and rich text
// is converted to WordprocessingML through the htmlconv visitor.
package docx

import (
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/waftester/reportforge/pkg/config"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/htmlconv"
	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/reporterr"
)

// Part names and content types of a WordprocessingML package.
const (
	DocumentPart  = "word/document.xml"
	StylesPart    = "word/styles.xml"
	NumberingPart = "word/numbering.xml"
	FootnotesPart = "word/footnotes.xml"
	MediaDir      = "word/media"

	MIME      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	Extension = "docx"

	numberingContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"
	footnotesContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.footnotes+xml"
	stylesContentType    = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
)

// Options configures a Document.
type Options struct {
	Config *config.ReportConfig
	Logger *slog.Logger
	// EvidenceRoot resolves relative evidence paths.
	EvidenceRoot string
}

// Document is one Word document being generated. It owns the package and
// every allocator that must be unique per document: relationship IDs,
// bookmark and drawing IDs, numbering definitions and footnotes. A
// Document is not safe for concurrent use.
type Document struct {
	pkg    *ooxml.Package
	cfg    *config.ReportConfig
	logger *slog.Logger
	root   string

	rels      *ooxml.Relationships
	styles    *styles
	numbering *numbering
	footnotes *footnotes

	nextBookmark int
	nextDrawing  int
}

var (
	bookmarkIDRe = regexp.MustCompile(`<w:bookmarkStart\b[^>]*\bw:id="(\d+)"`)
	drawingIDRe  = regexp.MustCompile(`<wp:docPr\b[^>]*\bid="(\d+)"`)
)

// NewDocument prepares pkg, which must contain a WordprocessingML main
// part, for rendering.
func NewDocument(pkg *ooxml.Package, opts Options) (*Document, error) {
	body, ok := pkg.Part(DocumentPart)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", reporterr.ErrInvalidTemplateDocument, DocumentPart)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultReportConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rels, err := pkg.Rels(DocumentPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reporterr.ErrInvalidTemplateDocument, err)
	}
	st, err := loadStyles(pkg)
	if err != nil {
		return nil, err
	}
	num, _ := pkg.Part(NumberingPart)
	fn, _ := pkg.Part(FootnotesPart)

	return &Document{
		pkg:          pkg,
		cfg:          cfg,
		logger:       logger,
		root:         opts.EvidenceRoot,
		rels:         rels,
		styles:       st,
		numbering:    newNumbering(num),
		footnotes:    newFootnotes(fn),
		nextBookmark: maxMatch(bookmarkIDRe, body) + 1,
		nextDrawing:  maxMatch(drawingIDRe, body) + 1,
	}, nil
}

func maxMatch(re *regexp.Regexp, data []byte) int {
	highest := 0
	for _, m := range re.FindAllSubmatch(data, -1) {
		if n, err := strconv.Atoi(string(m[1])); err == nil && n > highest {
			highest = n
		}
	}
	return highest
}

// Package returns the underlying package.
func (d *Document) Package() *ooxml.Package { return d.pkg }

// Convert turns rendered rich-text HTML into block-level WordprocessingML.
// The result always contains at least one paragraph so it can stand in
// for the paragraph it replaces, including inside table cells.
func (d *Document) Convert(html string, evidence finding.EvidenceSet) (string, error) {
	b := newBackend(d)
	if err := htmlconv.Convert(html, b, htmlconv.Options{Evidence: evidence, Logger: d.logger}); err != nil {
		return "", err
	}
	blocks := b.root.Elements()
	if len(blocks) == 0 || blocks[len(blocks)-1].Name != "w:p" {
		b.root.Add(ooxml.E("w:p"))
	}
	return ooxml.Serialize(b.root.Elements()), nil
}

func (d *Document) bookmarkID() int {
	id := d.nextBookmark
	d.nextBookmark++
	return id
}

func (d *Document) drawingID() int {
	id := d.nextDrawing
	d.nextDrawing++
	return id
}

func (d *Document) evidencePath(p string) string {
	if d.root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.root, p)
}

// Finish writes body as the main part, flushes numbering, footnotes,
// styles and relationships into the package and returns the serialized
// document.
func (d *Document) Finish(body []byte) ([]byte, error) {
	d.pkg.SetPart(DocumentPart, body)

	if data, changed := d.numbering.render(); changed {
		if err := d.addPart(NumberingPart, data, ooxml.RelNumbering, numberingContentType); err != nil {
			return nil, err
		}
	}
	if data, changed := d.footnotes.render(); changed {
		if err := d.addPart(FootnotesPart, data, ooxml.RelFootnotes, footnotesContentType); err != nil {
			return nil, err
		}
	}
	if data, changed := d.styles.render(); changed {
		if err := d.addPart(StylesPart, data, ooxml.RelStyles, stylesContentType); err != nil {
			return nil, err
		}
	}
	if err := d.pkg.SetRels(DocumentPart, d.rels); err != nil {
		return nil, err
	}

	out, err := d.pkg.Bytes()
	if err != nil {
		return nil, err
	}
	return CleanFootnotes(out)
}

// addPart stores a part referenced from the main part, adding the
// relationship and content type when the template lacked them.
func (d *Document) addPart(name string, data []byte, relType, contentType string) error {
	d.pkg.SetPart(name, data)
	d.rels.Ensure(relType, path.Base(name), "")
	return d.pkg.EnsureOverride(name, contentType)
}
