// Package pptx renders reports into PowerPoint decks. Slides are added to
// a template presentation from its layouts; rich text is converted to
// DrawingML text through the htmlconv visitor.
//
// PresentationML has no heading levels and no field numbering, so headings
// become bold paragraphs and evidence, captions and references become
// italic "See <name>" runs.
package pptx

import (
	"bytes"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/waftester/reportforge/pkg/config"
	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/reporterr"
)

// Part names and content types of a PresentationML package.
const (
	PresentationPart = "ppt/presentation.xml"
	SlidesDir        = "ppt/slides"

	MIME      = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	Extension = "pptx"

	slideContentType = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
)

// Default slide size (16:9) used when the template does not declare one.
const (
	defaultSlideWidth  = 12192000
	defaultSlideHeight = 6858000
)

// Options configures a Presentation.
type Options struct {
	Config *config.ReportConfig
	Logger *slog.Logger
}

// Presentation is one deck being generated. It is not safe for concurrent
// use.
type Presentation struct {
	pkg    *ooxml.Package
	cfg    *config.ReportConfig
	logger *slog.Logger

	rels    *ooxml.Relationships
	layouts []string
	width   int64
	height  int64

	slides      []*Slide
	nextSlide   int
	nextSlideID int
}

var (
	layoutNumRe = regexp.MustCompile(`(\d+)\.xml$`)
	slideNumRe  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	slideIDRe   = regexp.MustCompile(`<p:sldId\b[^>]*\bid="(\d+)"`)
	slideSizeRe = regexp.MustCompile(`<p:sldSz\b[^>]*\bcx="(\d+)"[^>]*\bcy="(\d+)"`)
)

// NewPresentation prepares pkg, which must contain a presentation part
// and at least one slide layout.
func NewPresentation(pkg *ooxml.Package, opts Options) (*Presentation, error) {
	main, ok := pkg.Part(PresentationPart)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", reporterr.ErrInvalidTemplateDocument, PresentationPart)
	}
	layouts := pkg.Match("ppt/slideLayouts/slideLayout*.xml")
	if len(layouts) == 0 {
		return nil, fmt.Errorf("%w: the presentation has no slide layouts", reporterr.ErrInvalidTemplateDocument)
	}
	sort.SliceStable(layouts, func(i, j int) bool { return partNumber(layouts[i]) < partNumber(layouts[j]) })

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultReportConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rels, err := pkg.Rels(PresentationPart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", reporterr.ErrInvalidTemplateDocument, err)
	}

	p := &Presentation{
		pkg:         pkg,
		cfg:         cfg,
		logger:      logger,
		rels:        rels,
		layouts:     layouts,
		width:       defaultSlideWidth,
		height:      defaultSlideHeight,
		nextSlideID: 256,
		nextSlide:   1,
	}
	if m := slideSizeRe.FindSubmatch(main); m != nil {
		p.width, _ = strconv.ParseInt(string(m[1]), 10, 64)
		p.height, _ = strconv.ParseInt(string(m[2]), 10, 64)
	}
	for _, m := range slideIDRe.FindAllSubmatch(main, -1) {
		if n, err := strconv.Atoi(string(m[1])); err == nil && n >= p.nextSlideID {
			p.nextSlideID = n + 1
		}
	}
	for _, name := range pkg.Parts() {
		if m := slideNumRe.FindStringSubmatch(name); m != nil {
			if n, _ := strconv.Atoi(m[1]); n >= p.nextSlide {
				p.nextSlide = n + 1
			}
		}
	}
	return p, nil
}

func partNumber(name string) int {
	m := layoutNumRe.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Package returns the underlying package.
func (p *Presentation) Package() *ooxml.Package { return p.pkg }

// Slides returns the slides added so far.
func (p *Presentation) Slides() []*Slide { return p.slides }

// layout returns the layout part at index i, falling back to the last one.
func (p *Presentation) layout(i int) string {
	if i >= 0 && i < len(p.layouts) {
		return p.layouts[i]
	}
	last := p.layouts[len(p.layouts)-1]
	p.logger.Warn("slide layout out of range, using the last layout",
		slog.Int("layout", i), slog.Int("layouts", len(p.layouts)), slog.String("using", last))
	return last
}

// AddSlide appends a slide based on layout index layout. The body
// placeholder is the content placeholder; title slides use the subtitle.
func (p *Presentation) AddSlide(layout int, placeholder Placeholder) *Slide {
	n := p.nextSlide
	p.nextSlide++
	s := newSlide(p, path.Join(SlidesDir, "slide"+strconv.Itoa(n)+".xml"), placeholder)
	s.rels.Add(ooxml.RelSlideLayout, "../slideLayouts/"+path.Base(p.layout(layout)), "")
	p.slides = append(p.slides, s)
	return s
}

// Finish writes the slides, registers them with the presentation and
// returns the serialized deck.
func (p *Presentation) Finish() ([]byte, error) {
	var ids []*ooxml.Element
	for _, s := range p.slides {
		p.pkg.SetPart(s.part, s.bytes())
		if err := p.pkg.SetRels(s.part, s.rels); err != nil {
			return nil, err
		}
		if err := p.pkg.EnsureOverride(s.part, slideContentType); err != nil {
			return nil, err
		}
		relID := p.rels.Add(ooxml.RelSlide, "slides/"+path.Base(s.part), "")
		ids = append(ids, ooxml.E("p:sldId", ooxml.A("id", strconv.Itoa(p.nextSlideID)), ooxml.A("r:id", relID)))
		p.nextSlideID++
	}

	if len(ids) > 0 {
		main, _ := p.pkg.Part(PresentationPart)
		p.pkg.SetPart(PresentationPart, insertSlideIDs(main, ooxml.Serialize(ids)))
	}
	if err := p.pkg.SetRels(PresentationPart, p.rels); err != nil {
		return nil, err
	}
	return p.pkg.Bytes()
}

// insertSlideIDs adds entries to the slide list, creating the list right
// before the slide size when the template has none.
func insertSlideIDs(main []byte, ids string) []byte {
	if i := bytes.Index(main, []byte("</p:sldIdLst>")); i >= 0 {
		return splice(main, i, i, ids)
	}
	empty := []byte("<p:sldIdLst/>")
	if i := bytes.Index(main, empty); i >= 0 {
		return splice(main, i, i+len(empty), "<p:sldIdLst>"+ids+"</p:sldIdLst>")
	}
	list := "<p:sldIdLst>" + ids + "</p:sldIdLst>"
	for _, next := range []string{"<p:sldSz", "<p:notesSz", "</p:presentation>"} {
		if i := bytes.Index(main, []byte(next)); i >= 0 {
			return splice(main, i, i, list)
		}
	}
	return main
}

func splice(s []byte, from, to int, data string) []byte {
	out := make([]byte, 0, len(s)+len(data))
	out = append(out, s[:from]...)
	out = append(out, data...)
	return append(out, s[to:]...)
}
