package export

import (
	"context"
	"fmt"

	"github.com/waftester/reportforge/pkg/defaults"
	"github.com/waftester/reportforge/pkg/docx"
	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/pptx"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/templating"
	"github.com/waftester/reportforge/pkg/xlsx"
)

const jsonIndent = defaults.JSONIndent

// driver produces one format.
type driver struct {
	mime     string
	ext      string
	template bool
	run      func(ctx context.Context, j *job) ([]byte, error)
}

var drivers = map[Format]driver{
	FormatDOCX: {mime: docx.MIME, ext: docx.Extension, template: true, run: exportDOCX},
	FormatPPTX: {mime: pptx.MIME, ext: pptx.Extension, template: true, run: exportPPTX},
	FormatXLSX: {mime: xlsx.MIME, ext: xlsx.Extension, run: exportXLSX},
	FormatJSON: {mime: "application/json", ext: "json", run: exportJSON},
}

// OpenTemplate reads the template package at path.
func OpenTemplate(path string) (*ooxml.Package, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no template file given", reporterr.ErrTemplateNotFound)
	}
	return ooxml.OpenFile(path)
}

func exportDOCX(ctx context.Context, j *job) ([]byte, error) {
	pkg, err := OpenTemplate(j.req.Template)
	if err != nil {
		return nil, err
	}
	env := templating.New(templating.Options{Logger: j.logger, Funcs: docx.Funcs()})
	b, err := j.builder(ctx, env)
	if err != nil {
		return nil, err
	}
	doc, err := docx.NewDocument(pkg, docx.Options{Config: j.cfg, Logger: j.logger, EvidenceRoot: j.opts.EvidenceRoot})
	if err != nil {
		return nil, err
	}
	doc.Bind(b)
	return doc.Render(env, b.Vars(), b.Sink())
}

func exportPPTX(ctx context.Context, j *job) ([]byte, error) {
	pkg, err := OpenTemplate(j.req.Template)
	if err != nil {
		return nil, err
	}
	b, err := j.builder(ctx, templating.New(templating.Options{Logger: j.logger}))
	if err != nil {
		return nil, err
	}
	pres, err := pptx.NewPresentation(pkg, pptx.Options{Config: j.cfg, Logger: j.logger})
	if err != nil {
		return nil, err
	}
	if err := pres.AddReport(b); err != nil {
		return nil, err
	}
	return pres.Finish()
}

func exportXLSX(ctx context.Context, j *job) ([]byte, error) {
	b, err := j.builder(ctx, templating.New(templating.Options{Logger: j.logger}))
	if err != nil {
		return nil, err
	}
	return xlsx.Export(b, xlsx.Options{Config: j.cfg, Logger: j.logger})
}
