package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/waftester/reportforge/pkg/config"
	"github.com/waftester/reportforge/pkg/docx"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/metrics"
	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/pptx"
	"github.com/waftester/reportforge/pkg/reporterr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/></Types>`

func writeTemplate(t *testing.T, name string, parts map[string]string) string {
	t.Helper()
	pkg := ooxml.New()
	pkg.SetPart(ooxml.ContentTypesPart, []byte(contentTypes))
	for part, data := range parts {
		pkg.SetPart(part, []byte(data))
	}
	data, err := pkg.Bytes()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func docxTemplate(t *testing.T) string {
	body := `<w:p><w:r><w:t>{{.report.title}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p range .findings}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{.title}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p .description_rt}}</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>{{p end}}</w:t></w:r></w:p>`
	return writeTemplate(t, "template.docx", map[string]string{
		docx.DocumentPart: ooxml.Header + `<w:document xmlns:w="` + ooxml.NSWordML + `"><w:body>` + body + `</w:body></w:document>`,
	})
}

func pptxTemplate(t *testing.T) string {
	return writeTemplate(t, "template.pptx", map[string]string{
		pptx.PresentationPart: ooxml.Header + `<p:presentation xmlns:p="` + ooxml.NSPresentation + `" xmlns:r="` + ooxml.NSOfficeRels + `"><p:sldSz cx="9144000" cy="6858000"/></p:presentation>`,
		"ppt/slideLayouts/slideLayout1.xml": "<p:sldLayout/>",
		"ppt/slideLayouts/slideLayout2.xml": "<p:sldLayout/>",
	})
}

func sampleReport() *finding.ReportData {
	return &finding.ReportData{
		Report: finding.ReportMeta{Title: "Assessment"},
		Client: finding.Client{Name: "Acme"},
		Findings: []finding.Finding{{
			Title:       "SQL Injection",
			Severity:    finding.Critical,
			Description: "<p>Found in <b>login</b> form.</p>",
			Impact:      "<p>Full database read.</p>",
		}},
	}
}

func newExporter(t *testing.T, opts Options) *Exporter {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func TestParseFormats(t *testing.T) {
	got, err := ParseFormats(" DOCX,xlsx,,docx ")
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatDOCX, FormatXLSX}, got)

	_, err = ParseFormats("docx,pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	assert.True(t, FormatPPTX.NeedsTemplate())
	assert.False(t, FormatJSON.NeedsTemplate())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultReportConfig()
	cfg.XLSX.SheetName = ""
	_, err := New(Options{Config: cfg})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestExport_DOCX(t *testing.T) {
	e := newExporter(t, Options{})
	out, err := e.Export(context.Background(), Request{Format: FormatDOCX, Data: sampleReport(), Template: docxTemplate(t)})
	require.NoError(t, err)
	assert.Equal(t, docx.MIME, out.MIME)
	assert.Equal(t, "report.docx", out.Filename("report"))

	pkg, err := ooxml.Open(out.Data)
	require.NoError(t, err)
	doc, err := pkg.MustPart(docx.DocumentPart)
	require.NoError(t, err)
	s := string(doc)
	assert.Contains(t, s, "Assessment")
	assert.Contains(t, s, "SQL Injection")
	assert.Contains(t, s, "<w:b/>")
	assert.NotContains(t, s, "{{")
}

func TestExport_PPTX(t *testing.T) {
	e := newExporter(t, Options{})
	out, err := e.Export(context.Background(), Request{Format: FormatPPTX, Data: sampleReport(), Template: pptxTemplate(t)})
	require.NoError(t, err)
	assert.Equal(t, "pptx", out.Extension)

	pkg, err := ooxml.Open(out.Data)
	require.NoError(t, err)
	assert.Len(t, pkg.Match("ppt/slides/slide*.xml"), 3)
}

func TestExport_XLSX(t *testing.T) {
	e := newExporter(t, Options{})
	out, err := e.Export(context.Background(), Request{Format: FormatXLSX, Data: sampleReport()})
	require.NoError(t, err)

	pkg, err := ooxml.Open(out.Data)
	require.NoError(t, err)
	assert.True(t, pkg.Has("xl/workbook.xml"))
}

func TestExport_JSON(t *testing.T) {
	e := newExporter(t, Options{})
	out, err := e.Export(context.Background(), Request{Format: FormatJSON, Data: sampleReport()})
	require.NoError(t, err)
	assert.Equal(t, "application/json", out.MIME)
	assert.Contains(t, string(out.Data), `"SQL Injection"`)
	assert.True(t, strings.HasSuffix(string(out.Data), "}\n"))
}

func TestExport_Errors(t *testing.T) {
	e := newExporter(t, Options{})
	ctx := context.Background()

	_, err := e.Export(ctx, Request{Format: "pdf", Data: sampleReport()})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = e.Export(ctx, Request{Format: FormatDOCX, Data: sampleReport()})
	assert.ErrorIs(t, err, reporterr.ErrTemplateNotFound)

	_, err = e.Export(ctx, Request{Format: FormatDOCX, Data: sampleReport(), Template: filepath.Join(t.TempDir(), "missing.docx")})
	assert.ErrorIs(t, err, reporterr.ErrTemplateNotFound)

	bad := filepath.Join(t.TempDir(), "bad.docx")
	require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0o600))
	_, err = e.Export(ctx, Request{Format: FormatDOCX, Data: sampleReport(), Template: bad})
	assert.ErrorIs(t, err, reporterr.ErrInvalidTemplateDocument)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Export(cancelled, Request{Format: FormatJSON, Data: sampleReport()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExport_RichTextErrorLocation(t *testing.T) {
	data := sampleReport()
	data.Findings[0].Description = `<p>{{ filter_severity "x" }}</p>`
	e := newExporter(t, Options{})

	_, err := e.Export(context.Background(), Request{Format: FormatXLSX, Data: data})
	require.Error(t, err)
	assert.Contains(t, reporterr.Locations(err), `the description of finding "SQL Injection"`)
}

func TestExport_Metrics(t *testing.T) {
	m, err := metrics.New()
	require.NoError(t, err)
	e := newExporter(t, Options{Metrics: m})

	_, err = e.Export(context.Background(), Request{Format: FormatJSON, Data: sampleReport()})
	require.NoError(t, err)
	_, err = e.Export(context.Background(), Request{Format: FormatDOCX, Data: sampleReport()})
	require.Error(t, err)

	assert.Equal(t, 2, testutil.CollectAndCount(m.Registry(), "reportforge_exports_total"))
}

func TestExportAll(t *testing.T) {
	e := newExporter(t, Options{})
	reqs := []Request{
		{Format: FormatDOCX, Data: sampleReport(), Template: docxTemplate(t)},
		{Format: FormatPPTX, Data: sampleReport(), Template: pptxTemplate(t)},
		{Format: FormatXLSX, Data: sampleReport()},
		{Format: FormatJSON, Data: sampleReport()},
	}
	outs, err := e.ExportAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, outs, 4)
	for i, out := range outs {
		assert.Equal(t, reqs[i].Format, out.Format)
		assert.NotEmpty(t, out.Data)
	}
}

func TestExportAll_FailureNamesFormat(t *testing.T) {
	e := newExporter(t, Options{})
	_, err := e.ExportAll(context.Background(), []Request{
		{Format: FormatJSON, Data: sampleReport()},
		{Format: FormatPPTX, Data: sampleReport()},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, reporterr.ErrTemplateNotFound)
	assert.True(t, strings.HasPrefix(err.Error(), "pptx: "))
}
