package docx

import (
	"bytes"
	"context"
	"errors"
	"html"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/reportforge/pkg/config"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/richtext"
	"github.com/waftester/reportforge/pkg/templating"
)

const testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

func documentXML(body string) string {
	return ooxml.Header + `<w:document xmlns:w="` + ooxml.NSWordML + `"><w:body>` + body + `</w:body></w:document>`
}

// newTestDocument builds a document from a template holding body plus the
// extra parts given.
func newTestDocument(t *testing.T, body string, parts map[string]string, cfg *config.ReportConfig) *Document {
	t.Helper()
	pkg := ooxml.New()
	pkg.SetPart(ooxml.ContentTypesPart, []byte(testContentTypes))
	pkg.SetPart(DocumentPart, []byte(documentXML(body)))
	for name, data := range parts {
		pkg.SetPart(name, []byte(data))
	}
	d, err := NewDocument(pkg, Options{Config: cfg, EvidenceRoot: t.TempDir()})
	require.NoError(t, err)
	return d
}

var visibleTextRe = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)

func visibleText(xml string) string {
	var sb strings.Builder
	for _, m := range visibleTextRe.FindAllStringSubmatch(xml, -1) {
		sb.WriteString(html.UnescapeString(m[1]))
	}
	return sb.String()
}

func TestNewDocument_RequiresMainPart(t *testing.T) {
	pkg := ooxml.New()
	pkg.SetPart(ooxml.ContentTypesPart, []byte(testContentTypes))
	_, err := NewDocument(pkg, Options{})
	assert.ErrorIs(t, err, reporterr.ErrInvalidTemplateDocument)
}

func TestConvert_Paragraph(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	out, err := d.Convert("<p>Found in <b>login</b> form.</p>", nil)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<w:p>"))
	assert.Contains(t, out, "<w:rPr><w:b/></w:rPr>")
	assert.Equal(t, "Found in login form.", visibleText(out))
}

func TestConvert_AlwaysEndsWithParagraph(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)

	out, err := d.Convert("", nil)
	require.NoError(t, err)
	assert.Equal(t, "<w:p/>", out)

	out, err = d.Convert("<table><tr><td>a</td></tr></table>", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "</w:tbl><w:p/>"))
}

var numIDRefRe = regexp.MustCompile(`<w:numId w:val="(\d+)"/>`)

func numIDs(xml string) []string {
	var ids []string
	for _, m := range numIDRefRe.FindAllStringSubmatch(xml, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

func TestConvert_ListNumberingReuse(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)

	out, err := d.Convert("<ul><li>a</li><li>b</li></ul><ul><li>c</li></ul><ol><li>d</li></ol>", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1", "1", "2"}, numIDs(out))

	// Same shape in a later fragment of the same document.
	out, err = d.Convert("<ol><li>e</li></ol>", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, numIDs(out))
	assert.Len(t, d.numbering.abstracts, 2)
}

func TestConvert_NestedListLevels(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	out, err := d.Convert("<ol><li>one<ul><li>inner</li></ul></li><li>two</li></ol>", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "1", "1"}, numIDs(out))
	assert.Contains(t, out, `<w:ilvl w:val="1"/>`)
	assert.Contains(t, out, `<w:pStyle w:val="ListParagraph"/><w:numPr>`)

	part, changed := d.numbering.render()
	require.True(t, changed)
	s := string(part)
	assert.Contains(t, s, `<w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="decimal"/><w:lvlText w:val="%1."/>`)
	assert.Contains(t, s, `<w:lvl w:ilvl="1"><w:start w:val="1"/><w:numFmt w:val="bullet"/>`)
	assert.Contains(t, s, `<w:ind w:left="1440" w:hanging="360"/>`)
}

func TestListShape_Key(t *testing.T) {
	var s listShape
	assert.Equal(t, "bbbbbbbbb", s.key())

	s.see(0, true)
	s.see(2, false)
	s.see(0, false) // first item decides
	assert.Equal(t, "oobbbbbbb", s.key())
}

func TestNumbering_RenderIntoTemplate(t *testing.T) {
	src := `<w:numbering xmlns:w="` + ooxml.NSWordML + `">` +
		`<w:abstractNum w:abstractNumId="0"><w:multiLevelType w:val="singleLevel"/></w:abstractNum>` +
		`<w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>` +
		`<w:numIdMacAtCleanup w:val="1"/></w:numbering>`
	n := newNumbering([]byte(src))

	var shape listShape
	shape.see(0, true)
	assert.Equal(t, 2, n.id(shape))

	part, changed := n.render()
	require.True(t, changed)
	s := string(part)
	abstract := strings.Index(s, `<w:abstractNum w:abstractNumId="1">`)
	firstNum := strings.Index(s, `<w:num w:numId="1">`)
	newNum := strings.Index(s, `<w:num w:numId="2">`)
	cleanup := strings.Index(s, `<w:numIdMacAtCleanup`)
	require.True(t, abstract >= 0 && firstNum >= 0 && newNum >= 0 && cleanup >= 0)
	assert.Less(t, abstract, firstNum)
	assert.Less(t, firstNum, newNum)
	assert.Less(t, newNum, cleanup)
}

func TestNumbering_Unchanged(t *testing.T) {
	n := newNumbering(nil)
	part, changed := n.render()
	assert.False(t, changed)
	assert.Nil(t, part)
}

func TestConvert_CaptionAndCrossRef(t *testing.T) {
	d := newTestDocument(t, `<w:p><w:bookmarkStart w:id="4" w:name="_GoBack"/><w:bookmarkEnd w:id="4"/></w:p>`, nil, nil)
	src := `<p><span data-gw-caption="Login Form"></span>admin login of the portal</p>` +
		`<p>See <span data-gw-ref="Login Form"></span> for details.</p>`

	out, err := d.Convert(src, nil)
	require.NoError(t, err)

	assert.Contains(t, out, `<w:pPr><w:pStyle w:val="Caption"/></w:pPr>`)
	assert.Contains(t, out, `<w:bookmarkStart w:id="5" w:name="_RefLogin_Form"/>`)
	assert.Contains(t, out, `<w:instrText xml:space="preserve"> SEQ Figure \* ARABIC </w:instrText>`)
	assert.Contains(t, out, `<w:bookmarkEnd w:id="5"/>`)
	assert.Contains(t, out, `<w:instrText xml:space="preserve"> REF &#34;_RefLogin_Form&#34; \h </w:instrText>`)
	assert.Contains(t, out, "Admin Login of the Portal")
	assert.NotContains(t, out, "data-gw")
	assert.Equal(t, 2, strings.Count(out, `w:fldCharType="begin"`))
}

func TestConvert_CaptionTextAfterPrefix(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)

	out, err := d.Convert(`<p><span data-gw-caption="Shot"></span> login page</p>`, nil)
	require.NoError(t, err)

	assert.Contains(t, out, `>Login Page</w:t>`)
	assert.NotContains(t, out, `> Login`)
}

func TestConvert_TableCaption(t *testing.T) {
	cfg := config.DefaultReportConfig()
	cfg.TablePrefix = ": "
	d := newTestDocument(t, "", nil, cfg)

	out, err := d.Convert(`<p><span data-gw-caption="" data-gw-caption-kind="table"></span>Hosts</p>`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, " SEQ Table ")
	assert.NotContains(t, out, "bookmarkStart")
	assert.Equal(t, "Table #: Hosts", visibleText(out))
}

func TestBookmarkName(t *testing.T) {
	assert.Equal(t, "_RefLogin_Form", BookmarkName("Login Form"))
	assert.Equal(t, "_Refa_b", BookmarkName("  a \t b "))
}

func TestQuoteFieldArg(t *testing.T) {
	assert.Equal(t, `"a\\b\"c"`, quoteFieldArg(`a\b"c`))
}

func TestTitleCase(t *testing.T) {
	cfg := config.DefaultReportConfig()
	d := newTestDocument(t, "", nil, cfg)

	first := true
	assert.Equal(t, "The Proof of Concept", d.titleCase("the proof of concept", &first))
	assert.False(t, first)
	assert.Equal(t, " and More", d.titleCase(" and more", &first))

	cfg.TitleCaseCaptions = false
	first = true
	assert.Equal(t, "as typed", d.titleCase("as typed", &first))
}

func TestConvert_HyperlinkWithoutStyle(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	out, err := d.Convert(`<p><a href="https://example.com/a?b=1&amp;c=2">site</a> and <a href="#_RefX">local</a></p>`, nil)
	require.NoError(t, err)

	assert.Contains(t, out, `<w:hyperlink xmlns:r="`+ooxml.NSOfficeRels+`" r:id="rId1" w:history="1">`)
	assert.Contains(t, out, `<w:color w:val="0563C1" w:themeColor="hyperlink"/>`)
	assert.Contains(t, out, `<w:u w:val="single"/>`)
	assert.Contains(t, out, `<w:hyperlink w:anchor="_RefX" w:history="1">`)

	rel, ok := d.rels.Get("rId1")
	require.True(t, ok)
	assert.Equal(t, ooxml.RelHyperlink, rel.Type)
	assert.Equal(t, "https://example.com/a?b=1&c=2", rel.Target)
	assert.Equal(t, ooxml.TargetModeExt, rel.TargetMode)
}

func TestConvert_HyperlinkStyle(t *testing.T) {
	styles := `<w:styles xmlns:w="` + ooxml.NSWordML + `"><w:style w:type="character" w:styleId="Hyperlink"><w:name w:val="Hyperlink"/></w:style></w:styles>`
	d := newTestDocument(t, "", map[string]string{StylesPart: styles}, nil)
	out, err := d.Convert(`<p><a href="https://example.com">site</a></p>`, nil)
	require.NoError(t, err)

	assert.Contains(t, out, `<w:rStyle w:val="Hyperlink"/>`)
	assert.NotContains(t, out, "themeColor")
}

func TestConvert_TableMerges(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	src := `<table>` +
		`<tr><th colspan="2">head</th></tr>` +
		`<tr><td rowspan="2">b</td><td>c</td></tr>` +
		`<tr><td>d</td></tr>` +
		`</table>`
	out, err := d.Convert(src, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(out, "<w:tr>"))
	assert.Equal(t, 5, strings.Count(out, "<w:tc>"))
	assert.Equal(t, 2, strings.Count(out, "<w:gridCol "))
	assert.Contains(t, out, `<w:gridSpan w:val="2"/>`)
	assert.Contains(t, out, `<w:vMerge w:val="restart"/>`)
	assert.Contains(t, out, `<w:vMerge/>`)
	assert.Contains(t, out, `<w:trPr><w:tblHeader/></w:trPr>`)
	assert.Contains(t, out, "<w:tblBorders>")
	assert.Equal(t, "headbcd", visibleText(out))
}

func TestConvert_TableGridStyle(t *testing.T) {
	styles := `<w:styles xmlns:w="` + ooxml.NSWordML + `"><w:style w:type="table" w:styleId="TableGrid"/></w:styles>`
	d := newTestDocument(t, "", map[string]string{StylesPart: styles}, nil)
	out, err := d.Convert(`<table><tr><td>a</td></tr></table>`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `<w:tblStyle w:val="TableGrid"/>`)
	assert.NotContains(t, out, "<w:tblBorders>")
}

func TestConvert_CodeBlockAddsStyle(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	out, err := d.Convert("<pre>GET /\nHost: a</pre>", nil)
	require.NoError(t, err)
	assert.Contains(t, out, `<w:pStyle w:val="CodeBlock"/>`)
	assert.Contains(t, out, "<w:br/>")

	part, changed := d.styles.render()
	require.True(t, changed)
	assert.Contains(t, string(part), `w:styleId="CodeBlock"`)
	assert.NotContains(t, string(part), `w:styleId="CodeInline"`)
}

func TestConvert_Footnote(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	out, err := d.Convert(`<p>Claim<span class="footnote">Source: vendor advisory</span></p>`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `<w:footnoteReference w:id="1"/>`)

	part, changed := d.footnotes.render()
	require.True(t, changed)
	s := string(part)
	assert.Contains(t, s, `w:id="-1"`)
	assert.Contains(t, s, `<w:footnote w:id="1">`)
	assert.Contains(t, s, "Source: vendor advisory")
}

func TestCleanSeparators(t *testing.T) {
	ns := `xmlns:w="` + ooxml.NSWordML + `"`
	src := `<w:footnotes ` + ns + `>` +
		`<w:footnote w:type="separator" w:id="-1"><w:p><w:pPr/></w:p><w:p><w:r><w:separator/></w:r></w:p><w:p/></w:footnote>` +
		`<w:footnote w:type="continuationSeparator" w:id="0"><w:p/><w:p/></w:footnote>` +
		`<w:footnote w:id="1"><w:p/><w:p/></w:footnote>` +
		`</w:footnotes>`
	want := `<w:footnotes ` + ns + `>` +
		`<w:footnote w:type="separator" w:id="-1"><w:p><w:r><w:separator/></w:r></w:p></w:footnote>` +
		`<w:footnote w:type="continuationSeparator" w:id="0"><w:p/></w:footnote>` +
		`<w:footnote w:id="1"><w:p/><w:p/></w:footnote>` +
		`</w:footnotes>`

	out, changed, err := cleanSeparators([]byte(src))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, want, string(out))

	again, changed, err := cleanSeparators(out)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, want, string(again))
}

func TestCleanFootnotes_NoFootnotesPart(t *testing.T) {
	d := newTestDocument(t, "<w:p/>", nil, nil)
	doc, err := d.Package().Bytes()
	require.NoError(t, err)

	out, err := CleanFootnotes(doc)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestConvert_ImageEvidence(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	writePNG(t, filepath.Join(d.root, "shot.png"), 20, 10)
	set := finding.NewEvidenceSet([]finding.Evidence{{FriendlyName: "shot", Path: "shot.png", Caption: "login page of the app"}})

	out, err := d.Convert(`<p>Before</p><p><span data-gw-evidence="shot"></span></p>`, set)
	require.NoError(t, err)

	assert.Contains(t, out, `<wp:extent cx="5943600" cy="2971800"/>`)
	assert.Contains(t, out, `<wp:effectExtent l="12700" t="12700" r="12700" b="12700"/>`)
	assert.Contains(t, out, `<a:srgbClr val="2D2B6B"/>`)
	assert.Contains(t, out, `<wp:docPr id="1" name="Picture 1" descr="shot"/>`)
	assert.Contains(t, out, `r:embed="rId1"`)
	assert.Contains(t, out, "Login Page of the App")

	// Picture first, caption after.
	assert.Less(t, strings.Index(out, "<w:drawing>"), strings.Index(out, `w:val="Caption"`))

	rel, ok := d.rels.Get("rId1")
	require.True(t, ok)
	assert.Equal(t, ooxml.RelImage, rel.Type)
	assert.True(t, strings.HasPrefix(rel.Target, "media/image-"))
	assert.True(t, d.pkg.Has("word/"+rel.Target))

	// The same file again reuses the media part and relationship.
	out, err = d.Convert(`<p><span data-gw-evidence="shot"></span></p>`, set)
	require.NoError(t, err)
	assert.Contains(t, out, `r:embed="rId1"`)
	assert.Contains(t, out, `<wp:docPr id="2"`)
	assert.Len(t, d.pkg.Match("word/media/*"), 1)
}

func TestConvert_ImageEvidenceCaptionBeforeWithoutBorder(t *testing.T) {
	cfg := config.DefaultReportConfig()
	cfg.FigureCaptionLocation = "before"
	cfg.Border.Enabled = false
	d := newTestDocument(t, "", nil, cfg)
	writePNG(t, filepath.Join(d.root, "shot.png"), 4, 4)
	set := finding.NewEvidenceSet([]finding.Evidence{{FriendlyName: "shot", Path: "shot.png"}})

	out, err := d.Convert(`<p><span data-gw-evidence="shot"></span></p>`, set)
	require.NoError(t, err)
	assert.NotContains(t, out, "<a:ln")
	assert.Less(t, strings.Index(out, `w:val="Caption"`), strings.Index(out, "<w:drawing>"))
}

func TestConvert_TextEvidence(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(d.root, "req.txt"), []byte("GET / HTTP/1.1\r\nHost: a\r\n"), 0o644))
	set := finding.NewEvidenceSet([]finding.Evidence{{FriendlyName: "req", Path: "req.txt"}})

	out, err := d.Convert(`<p><span data-gw-evidence="req"></span></p>`, set)
	require.NoError(t, err)
	assert.Contains(t, out, `<w:pStyle w:val="CodeBlock"/>`)
	assert.Contains(t, out, "GET / HTTP/1.1")
	assert.Equal(t, 1, strings.Count(out, "<w:br/>"))
	assert.Contains(t, out, `w:val="Caption"`)
}

func TestConvert_MissingEvidence(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	set := finding.NewEvidenceSet([]finding.Evidence{{FriendlyName: "gone", Path: "gone.png"}})

	_, err := d.Convert(`<p><span data-gw-evidence="gone"></span></p>`, set)
	require.Error(t, err)
	assert.ErrorIs(t, err, reporterr.ErrEvidenceNotFound)
	var missing *reporterr.MissingEvidenceError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "gone", missing.Name)
}

func TestConvert_UnrecognizedImage(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(d.root, "bad.png"), []byte("not an image"), 0o644))
	set := finding.NewEvidenceSet([]finding.Evidence{{FriendlyName: "bad", Path: "bad.png"}})

	_, err := d.Convert(`<p><span data-gw-evidence="bad"></span></p>`, set)
	assert.ErrorIs(t, err, reporterr.ErrUnrecognizedImage)
	var bad *reporterr.UnrecognizedImageError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, "bad", bad.Name)
}

func TestConvert_UnknownEvidenceType(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(d.root, "dump.bin"), []byte{0, 1, 2}, 0o644))
	set := finding.NewEvidenceSet([]finding.Evidence{{FriendlyName: "dump", Path: "dump.bin"}})

	out, err := d.Convert(`<p><span data-gw-evidence="dump"></span></p>`, set)
	require.NoError(t, err)
	assert.Contains(t, visibleText(out), "See evidence file dump.")
}

func TestPrepareSkeleton_MergesSplitActions(t *testing.T) {
	src := `<w:p><w:r><w:t>Hello {{.cli</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>ent.name}} &amp; co</w:t></w:r></w:p>`
	want := `<w:p><w:r><w:t xml:space="preserve">Hello {{.client.name | xml}} &amp; co</w:t></w:r><w:r><w:rPr><w:b/></w:rPr></w:r></w:p>`
	assert.Equal(t, want, PrepareSkeleton(src))
}

func TestPrepareSkeleton_LeavesPlainParagraphs(t *testing.T) {
	src := `<w:p><w:pPr/><w:r><w:t>No actions</w:t></w:r></w:p><w:p/>`
	assert.Equal(t, `<w:p><w:pPr/><w:r><w:t>No actions</w:t></w:r></w:p><w:p></w:p>`, PrepareSkeleton(src))
}

func TestPrepareSkeleton_Actions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"control", "{{if .x}}yes{{else}}no{{end}}", "{{if .x}}yes{{else}}no{{end}}"},
		{"trim markers", "a {{- .x -}} b", "a {{- .x | xml -}} b"},
		{"pipeline", "{{.x | upper}}", "{{.x | upper | xml}}"},
		{"assignment", "{{$n := len .findings}}{{$n}}", "{{$n := len .findings}}{{$n | xml}}"},
		{"comment", "{{/* note */}}", "{{/* note */}}"},
		{"smart quotes", "{{eq .x “a”}}", `{{eq .x "a" | xml}}`},
		{"literal escaping", "<b> {{.x}}", "&lt;b&gt; {{.x | xml}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `<w:p><w:r><w:t>` + ooxml.Escape(tt.text) + `</w:t></w:r></w:p>`
			want := `<w:p><w:r><w:t xml:space="preserve">` + tt.want + `</w:t></w:r></w:p>`
			assert.Equal(t, want, PrepareSkeleton(src))
		})
	}
}

func TestPrepareSkeleton_ParagraphActions(t *testing.T) {
	src := `<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>{{p range .findings}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p .description_rt}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p if eq .title “x”}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p end}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p end}}</w:t></w:r></w:p>`
	want := `{{range .findings}}{{.description_rt | paragraphs}}{{if eq .title "x"}}{{end}}{{end}}`
	assert.Equal(t, want, PrepareSkeleton(src))
}

func TestPrepareSkeleton_RowActions(t *testing.T) {
	cell := func(text string) string {
		return `<w:tr><w:tc><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:tc></w:tr>`
	}
	src := `<w:tbl><w:tblPr/>` + cell("{{tr range .findings}}") + cell("{{.title}}") + cell("{{tr end}}") + `</w:tbl>`
	want := `<w:tbl><w:tblPr/>{{range .findings}}` +
		`<w:tr><w:tc><w:p><w:r><w:t xml:space="preserve">{{.title | xml}}</w:t></w:r></w:p></w:tc></w:tr>` +
		`{{end}}</w:tbl>`
	assert.Equal(t, want, PrepareSkeleton(src))
}

func TestXMLValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", `a<b & "c"`, "a&lt;b &amp; &#34;c&#34;"},
		{"control characters", "a\x01b", "ab"},
		{"number", 42, "42"},
		{"inline xml", InlineXML("<w:r/>"), closeRun + "<w:r/>" + openRun},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := xmlValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParagraphsValue(t *testing.T) {
	got, err := paragraphsValue(nil)
	require.NoError(t, err)
	assert.Equal(t, "<w:p/>", got)

	got, err = paragraphsValue("a\nb")
	require.NoError(t, err)
	assert.Equal(t, `<w:p><w:r><w:t xml:space="preserve">a</w:t><w:br/><w:t xml:space="preserve">b</w:t></w:r></w:p>`, got)
}

func TestSeverityRun(t *testing.T) {
	run := SeverityRun(finding.Critical)
	assert.Equal(t, InlineXML(`<w:r><w:rPr><w:b/><w:color w:val="A60023"/></w:rPr><w:t xml:space="preserve">Critical</w:t></w:r>`), run)
}

func testBuilder(t *testing.T, data *finding.ReportData) *richtext.Builder {
	t.Helper()
	env := templating.New(templating.Options{Funcs: Funcs()})
	b, err := richtext.NewBuilder(context.Background(), richtext.NewPreprocessor(env), data, nil)
	require.NoError(t, err)
	return b
}

func sqlInjection() *finding.ReportData {
	return &finding.ReportData{
		Report: finding.ReportMeta{Title: "Assessment"},
		Findings: []finding.Finding{{
			Title:       "SQL Injection",
			Severity:    finding.Critical,
			Description: "<p>Found in <b>login</b> form.</p>",
			Impact:      "<p>Data & more</p>",
		}},
	}
}

func TestBind_FindingRichText(t *testing.T) {
	d := newTestDocument(t, "", nil, nil)
	b := testBuilder(t, sqlInjection())
	d.Bind(b)

	fc := b.Vars()["findings"].([]any)[0].(map[string]any)
	rich, ok := fc["description_rt"].(*Rich)
	require.True(t, ok)

	plain, err := rich.Plain()
	require.NoError(t, err)
	assert.Equal(t, "Found in login form.", plain)

	blocks, err := rich.Blocks()
	require.NoError(t, err)
	assert.Contains(t, blocks, "<w:b/>")

	assert.Equal(t, SeverityRun(finding.Critical), fc["severity_rt"])
	for _, field := range finding.FindingRichTextFields {
		assert.Contains(t, fc, field.Key+"_rt")
	}
}

func TestRender_Skeleton(t *testing.T) {
	body := `<w:p><w:r><w:t>{{.report.title}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p range .findings}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{.title}} {{.severity_rt}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p .description_rt}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Impact: {{.impact_rt}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p end}}</w:t></w:r></w:p>`
	d := newTestDocument(t, body, nil, nil)
	b := testBuilder(t, sqlInjection())
	d.Bind(b)

	env := templating.New(templating.Options{Funcs: Funcs()})
	out, err := d.Render(env, b.Vars(), b.Sink())
	require.NoError(t, err)

	pkg, err := ooxml.Open(out)
	require.NoError(t, err)
	doc, err := pkg.MustPart(DocumentPart)
	require.NoError(t, err)
	s := string(doc)

	assert.Contains(t, s, "Assessment")
	assert.Contains(t, s, `SQL Injection </w:t></w:r><w:r><w:rPr><w:b/><w:color w:val="A60023"/>`)
	assert.Contains(t, s, "Impact: Data &amp; more")
	assert.Equal(t, "AssessmentSQL Injection CriticalFound in login form.Impact: Data & more", visibleText(s))
	assert.NotContains(t, s, "{{")
	assert.NotContains(t, s, "data-gw")
}

func TestRender_ReportsLocation(t *testing.T) {
	d := newTestDocument(t, `<w:p><w:r><w:t>{{.x | filter_severity 3}}</w:t></w:r></w:p>`, nil, nil)
	env := templating.New(templating.Options{Funcs: Funcs()})
	_, err := d.Render(env, map[string]any{"x": []any{}}, &richtext.Sink{})
	require.Error(t, err)
	assert.Equal(t, []string{"the template part " + DocumentPart}, reporterr.Locations(err))
}

func TestRender_MarkersNeverSurvive(t *testing.T) {
	data := sqlInjection()
	data.Findings[0].Description = "<p>See {{.ref foo}}</p>"
	d := newTestDocument(t, `<w:p><w:r><w:t>{{p range .findings}}</w:t></w:r></w:p><w:p><w:r><w:t>{{p .description_rt}}</w:t></w:r></w:p><w:p><w:r><w:t>{{p end}}</w:t></w:r></w:p>`, nil, nil)
	b := testBuilder(t, data)
	d.Bind(b)

	env := templating.New(templating.Options{Funcs: Funcs()})
	out, err := d.Render(env, b.Vars(), b.Sink())
	require.NoError(t, err)

	pkg, err := ooxml.Open(out)
	require.NoError(t, err)
	doc, _ := pkg.Part(DocumentPart)
	text := visibleText(string(doc))
	assert.NotContains(t, string(doc), "data-gw-ref")
	assert.NotContains(t, text, "{{.ref foo}}")
	assert.Contains(t, string(doc), `REF &#34;_Reffoo&#34; \h`)
}
