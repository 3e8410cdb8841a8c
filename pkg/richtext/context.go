package richtext

import (
	"context"
	"fmt"

	"github.com/waftester/reportforge/pkg/extrafields"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/templating"
)

// Builder assembles the variables rich text is rendered against for one
// export. Rich-text extra fields are replaced in the variable tree by Lazy
// values bound to the report variables, so templates can embed them and
// they can embed each other.
type Builder struct {
	pre      *Preprocessor
	data     *finding.ReportData
	sink     *Sink
	findings []finding.Finding
	base     map[string]any
	bindings []binding
}

// binding ties a Lazy to the finding whose variables it renders with; -1
// means the report variables.
type binding struct {
	lazy    *Lazy
	finding int
}

// NewBuilder builds the report variables for data. registry may be nil,
// in which case extra fields are exposed as plain values.
func NewBuilder(ctx context.Context, pre *Preprocessor, data *finding.ReportData, registry *extrafields.Registry) (*Builder, error) {
	base, err := data.Context()
	if err != nil {
		return nil, fmt.Errorf("richtext: building report variables: %w", err)
	}
	b := &Builder{
		pre:      pre,
		data:     data,
		sink:     &Sink{},
		findings: data.SortedFindings(),
		base:     base,
	}
	base[templating.OldDotVarsKey] = b.legacyVars(nil)

	if registry != nil {
		if err := b.lazyExtraFields(ctx, registry); err != nil {
			return nil, err
		}
	}
	for _, bd := range b.bindings {
		if bd.finding < 0 {
			bd.lazy.Bind(base)
		} else {
			bd.lazy.Bind(b.FindingVars(bd.finding))
		}
	}
	return b, nil
}

// Sink returns the error sink shared by the export's Lazy values.
func (b *Builder) Sink() *Sink { return b.sink }

// Preprocessor returns the preprocessor rich text is rendered with.
func (b *Builder) Preprocessor() *Preprocessor { return b.pre }

// Data returns the report being exported.
func (b *Builder) Data() *finding.ReportData { return b.data }

// Vars returns the report-level variables.
func (b *Builder) Vars() map[string]any { return b.base }

// Findings returns the findings in report order. Index i matches
// FindingVars(i).
func (b *Builder) Findings() []finding.Finding { return b.findings }

// findingContexts returns the generic finding maps inside the variables.
func (b *Builder) findingContexts() []any {
	list, _ := b.base["findings"].([]any)
	return list
}

// FindingVars returns the variables for rich text of finding i: the report
// variables plus "finding" and the finding's evidence in the legacy map.
func (b *Builder) FindingVars(i int) map[string]any {
	vars := make(map[string]any, len(b.base)+1)
	for k, v := range b.base {
		vars[k] = v
	}
	if list := b.findingContexts(); i < len(list) {
		vars["finding"] = list[i]
	}
	vars[templating.OldDotVarsKey] = b.legacyVars(b.findings[i].Evidence)
	return vars
}

// Evidence returns the evidence in scope for finding i, or for report-level
// rich text when i is negative.
func (b *Builder) Evidence(i int) finding.EvidenceSet {
	if i < 0 {
		return finding.NewEvidenceSet(b.data.Evidence)
	}
	return finding.NewEvidenceSet(b.data.Evidence, b.findings[i].Evidence)
}

// RenderFinding renders one rich-text field of finding i to HTML.
func (b *Builder) RenderFinding(i int, field finding.RichTextField) (string, error) {
	f := &b.findings[i]
	html, err := b.Render(f.RichText(field.Key), b.FindingVars(i))
	return html, reporterr.WithLocationf(err, "the %s of finding %q", field.Label, f.Title)
}

// Render renders src against vars and reports errors raised by Lazy values
// printed along the way.
func (b *Builder) Render(src string, vars map[string]any) (string, error) {
	mark := b.sink.Len()
	html, err := b.pre.Render(src, vars)
	if err == nil {
		err = b.sink.Since(mark)
	}
	if err != nil {
		return "", err
	}
	return html, nil
}

// legacyVars is the map {{.name}} placeholders resolve in: evidence markers
// by friendly name plus a few project shortcuts.
func (b *Builder) legacyVars(extra []finding.Evidence) map[string]any {
	vars := map[string]any{
		"client":        b.data.Client.Name,
		"project_start": b.data.Project.StartDate,
		"project_end":   b.data.Project.EndDate,
		"project_type":  b.data.Project.Type,
	}
	for _, list := range [][]finding.Evidence{b.data.Evidence, extra} {
		for _, e := range list {
			vars[e.FriendlyName] = templating.EvidenceMarker(e.FriendlyName)
		}
	}
	return vars
}

func (b *Builder) lazyExtraFields(ctx context.Context, registry *extrafields.Registry) error {
	wrap := func(model, owner string, holder any, findingIndex int) error {
		m, ok := holder.(map[string]any)
		if !ok {
			return nil
		}
		fields, ok := m["extra_fields"].(map[string]any)
		if !ok {
			return nil
		}
		names, err := registry.RichTextNames(ctx, model)
		if err != nil {
			return fmt.Errorf("richtext: %w", err)
		}
		for _, name := range names {
			src, ok := fields[name].(string)
			if !ok {
				continue
			}
			l := b.pre.Lazy(fmt.Sprintf("the extra field %s of %s", name, owner), src, b.sink)
			fields[name] = l
			b.bindings = append(b.bindings, binding{lazy: l, finding: findingIndex})
		}
		return nil
	}

	if err := wrap(extrafields.ModelReport, "the report", b.base, -1); err != nil {
		return err
	}
	if err := wrap(extrafields.ModelProject, "the project", b.base["project"], -1); err != nil {
		return err
	}
	if err := wrap(extrafields.ModelClient, "the client", b.base["client"], -1); err != nil {
		return err
	}
	for i, fc := range b.findingContexts() {
		if err := wrap(extrafields.ModelFinding, fmt.Sprintf("finding %q", b.findings[i].Title), fc, i); err != nil {
			return err
		}
	}
	if logs, ok := b.base["logs"].([]any); ok {
		for i, lc := range logs {
			if err := wrap(extrafields.ModelLogEntry, fmt.Sprintf("log entry %d", i+1), lc, -1); err != nil {
				return err
			}
		}
	}
	return nil
}

// VisitLazy calls fn for every Lazy value found in the extra_fields maps of
// the variable tree rooted at v.
func VisitLazy(v any, fn func(fields map[string]any, key string, l *Lazy)) {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			if l, ok := child.(*Lazy); ok {
				fn(v, k, l)
				continue
			}
			VisitLazy(child, fn)
		}
	case []any:
		for _, child := range v {
			VisitLazy(child, fn)
		}
	}
}
