package docx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/htmlconv"
	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/plaintext"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/strutil"
)

// embedEvidence appends the evidence file and its caption to target.
func (d *Document) embedEvidence(target *ooxml.Element, ev *finding.Evidence) error {
	path := d.evidencePath(ev.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &reporterr.MissingEvidenceError{Name: ev.FriendlyName, Path: path}
		}
		return fmt.Errorf("docx: reading evidence %q: %w", ev.FriendlyName, err)
	}

	var content *ooxml.Element
	switch ev.Class() {
	case finding.EvidenceImage:
		content, err = d.picture(ev, data)
		if err != nil {
			return err
		}
	case finding.EvidenceText:
		content = d.codeParagraph(string(data))
	default:
		d.logger.Warn("evidence type cannot be embedded", slog.String("evidence", ev.FriendlyName), slog.String("path", ev.Path))
		target.Add(ooxml.E("w:p", textRun(nil, plaintext.EvidenceSentence(ev))))
		return nil
	}

	caption := d.evidenceCaption(ev)
	if d.cfg.FigureCaptionLocation == "before" {
		target.Add(caption, content)
	} else {
		target.Add(content, caption)
	}
	return nil
}

// codeParagraph holds text evidence verbatim in the code block style.
func (d *Document) codeParagraph(text string) *ooxml.Element {
	text = strings.ReplaceAll(strutil.XMLSafe(text), "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	p := ooxml.E("w:p")
	if d.styles.use(styleCodeBlock) {
		p.Add(ooxml.E("w:pPr", pStyle(styleCodeBlock)))
	}
	return p.Add(textRun(nil, text))
}

func (d *Document) evidenceCaption(ev *finding.Evidence) *ooxml.Element {
	p := ooxml.E("w:p", ooxml.E("w:pPr", pStyle(styleCaption)))
	p.Add(d.captionLabel(ev.FriendlyName, htmlconv.CaptionFigure))
	if c := strings.TrimSpace(ev.Caption); c != "" {
		first := true
		p.Add(textRun(nil, d.titleCase(strutil.XMLSafe(c), &first)))
	}
	return p
}

// picture is a centered paragraph holding the image scaled to the
// configured width.
func (d *Document) picture(ev *finding.Evidence, data []byte) (*ooxml.Element, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &reporterr.UnrecognizedImageError{Name: ev.FriendlyName, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &reporterr.UnrecognizedImageError{Name: ev.FriendlyName}
	}
	part, err := d.pkg.AddMedia(MediaDir, format, data)
	if err != nil {
		return nil, &reporterr.UnrecognizedImageError{Name: ev.FriendlyName, Err: err}
	}
	relID := d.rels.Ensure(ooxml.RelImage, strings.TrimPrefix(part, "word/"), "")

	cx := d.cfg.ImageMaxWidthEMU()
	cy := cx * int64(cfg.Height) / int64(cfg.Width)
	drawing := d.inlinePicture(relID, ev.FriendlyName, cx, cy)

	return ooxml.E("w:p",
		ooxml.E("w:pPr", ooxml.E("w:jc", ooxml.A("w:val", "center"))),
		ooxml.E("w:r", ooxml.E("w:drawing", drawing)),
	), nil
}

func (d *Document) inlinePicture(relID, name string, cx, cy int64) *ooxml.Element {
	id := strconv.Itoa(d.drawingID())
	ext := func(n string) *ooxml.Element {
		return ooxml.E(n, ooxml.A("cx", strconv.FormatInt(cx, 10)), ooxml.A("cy", strconv.FormatInt(cy, 10)))
	}

	effect := ooxml.E("wp:effectExtent", ooxml.A("l", "0"), ooxml.A("t", "0"), ooxml.A("r", "0"), ooxml.A("b", "0"))
	spPr := ooxml.E("pic:spPr",
		ooxml.E("a:xfrm", ooxml.E("a:off", ooxml.A("x", "0"), ooxml.A("y", "0")), ext("a:ext")),
		ooxml.E("a:prstGeom", ooxml.A("prst", "rect"), ooxml.E("a:avLst")),
	)
	if d.cfg.Border.Enabled {
		addBorder(spPr, effect, d.cfg.BorderColor(), d.cfg.Border.Weight)
	}

	return ooxml.E("wp:inline",
		ooxml.A("xmlns:wp", ooxml.NSWordDrawing),
		ooxml.A("distT", "0"), ooxml.A("distB", "0"), ooxml.A("distL", "0"), ooxml.A("distR", "0"),
		ext("wp:extent"),
		effect,
		ooxml.E("wp:docPr", ooxml.A("id", id), ooxml.A("name", "Picture "+id), ooxml.A("descr", name)),
		ooxml.E("wp:cNvGraphicFramePr",
			ooxml.E("a:graphicFrameLocks", ooxml.A("xmlns:a", ooxml.NSDrawingML), ooxml.A("noChangeAspect", "1")),
		),
		ooxml.E("a:graphic", ooxml.A("xmlns:a", ooxml.NSDrawingML),
			ooxml.E("a:graphicData", ooxml.A("uri", ooxml.NSPicture),
				ooxml.E("pic:pic", ooxml.A("xmlns:pic", ooxml.NSPicture),
					ooxml.E("pic:nvPicPr",
						ooxml.E("pic:cNvPr", ooxml.A("id", "0"), ooxml.A("name", name)),
						ooxml.E("pic:cNvPicPr"),
					),
					ooxml.E("pic:blipFill",
						ooxml.E("a:blip", ooxml.A("xmlns:r", ooxml.NSOfficeRels), ooxml.A("r:embed", relID)),
						ooxml.E("a:stretch", ooxml.E("a:fillRect")),
					),
					spPr,
				),
			),
		),
	)
}

// addBorder outlines the picture with a solid line and grows the effect
// extent by the line weight so the border is not clipped.
func addBorder(spPr, effect *ooxml.Element, color string, weight int) {
	w := strconv.Itoa(weight)
	spPr.Add(ooxml.E("a:ln", ooxml.A("w", w),
		ooxml.E("a:solidFill", ooxml.E("a:srgbClr", ooxml.A("val", color))),
	))
	for _, side := range []string{"l", "t", "r", "b"} {
		effect.Set(side, w)
	}
}
