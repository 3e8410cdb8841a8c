package richtext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waftester/reportforge/pkg/extrafields"
	"github.com/waftester/reportforge/pkg/finding"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/templating"
)

func TestPrepare(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"ref", `See {{.ref fig1}}`, `See {{ ref "fig1" }}`},
		{"caption with name", `{{.caption  login page }}`, `{{ caption "login page" }}`},
		{"bare caption", `{{.caption}}`, `{{ caption }}`},
		{"legacy name", `{{.client}}`, `{{ get ._old_dot_vars "client" }}`},
		{"evidence with spaces", `{{.Screenshot 1}}`, `{{ get ._old_dot_vars "Screenshot 1" }}`},
		{"unknown non-identifier", `{{.my-shot}}`, `{{ get ._old_dot_vars "my-shot" }}`},
		{"unknown identifier", `{{.subtitle}}`, `{{ get ._old_dot_vars "subtitle" }}`},
		{"dotted name is one key", `{{.project.name}}`, `{{ get ._old_dot_vars "project.name" }}`},
		{"spaced expressions untouched", `{{ .project.name }}`, `{{ .project.name }}`},
		{"page break", `<p>a</p><p><!-- pagebreak --></p><p>b</p>`, `<p>a</p>` + templating.PageBreakMarker + `<p>b</p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prepare(tt.src))
		})
	}
}

func TestPreprocessorRender(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	vars := map[string]any{
		"project":                  map[string]any{"name": "Atlas"},
		templating.OldDotVarsKey: map[string]any{"client": "Acme"},
	}

	out, err := pre.Render("<p>{{.client}} / {{ .project.name }} / {{.ref fig}}</p>", vars)
	require.NoError(t, err)
	assert.Equal(t, `<p>Acme / Atlas / <span data-gw-ref="fig"></span></p>`, out)

	out, err = pre.Render("<p>[{{.project.name}}][{{.missing}}]</p>", vars)
	require.NoError(t, err)
	assert.Equal(t, "<p>[][]</p>", out)

	out, err = pre.Render("a\x01b\x0bc\td", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc\td", out)
}

func TestPreprocessorSyntaxError(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	_, err := pre.Render("<p>{{ .a </p>", nil)
	assert.True(t, errors.Is(err, reporterr.ErrTemplateSyntax))
}

func TestLazyMemoises(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	l := pre.Lazy("the summary", "<p>{{ .n }}</p>", &Sink{})
	vars := map[string]any{"n": "one"}
	l.Bind(vars)

	out, err := l.Render()
	require.NoError(t, err)
	assert.Equal(t, "<p>one</p>", out)

	vars["n"] = "two"
	out, err = l.Render()
	require.NoError(t, err)
	assert.Equal(t, "<p>one</p>", out)
	assert.Equal(t, "<p>one</p>", l.String())
}

func TestLazyCircularReference(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	sink := &Sink{}
	l := pre.Lazy("the summary", "<p>{{ .self }}</p>", sink)
	l.Bind(map[string]any{"self": l})

	_, err := l.Render()
	require.Error(t, err)
	assert.True(t, errors.Is(err, reporterr.ErrCircularReference))
	assert.Contains(t, reporterr.Locations(err), "the summary")

	_, again := l.Render()
	assert.Equal(t, err, again)
}

func TestLazyMutualReference(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	sink := &Sink{}
	a := pre.Lazy("a", "A{{ .b }}", sink)
	b := pre.Lazy("b", "B{{ .a }}", sink)
	vars := map[string]any{"a": a, "b": b}
	a.Bind(vars)
	b.Bind(vars)

	_, err := a.Render()
	assert.True(t, errors.Is(err, reporterr.ErrCircularReference))
}

func reportData() *finding.ReportData {
	data := &finding.ReportData{
		Client: finding.Client{Name: "Acme"},
		Project: finding.Project{
			Name:      "Atlas",
			StartDate: "2024-01-08",
			ExtraFields: map[string]any{
				"scope_rt":  "<p>Scope for {{ .client.name }}</p>",
				"loop":      "<p>{{ .project.extra_fields.loop }}</p>",
				"reference": "ticket-42",
			},
		},
		Evidence: []finding.Evidence{{FriendlyName: "Network map", Path: "map.png"}},
		Findings: []finding.Finding{
			{Title: "Banner", Severity: finding.Low, Position: 1, Description: "<p>{{.project_start}}</p>"},
			{
				Title:       "SQL Injection",
				Severity:    finding.Critical,
				Position:    1,
				Description: "<p>In {{ .finding.title }}: {{.Login form}} and {{.Network map}}</p>",
				Impact:      "<p>{{ .project.extra_fields.scope_rt }}</p>",
				Evidence:    []finding.Evidence{{FriendlyName: "Login form", Path: "login.png"}},
				ExtraFields: map[string]any{"attack_path": "<p>via {{ .finding.title }}</p>"},
			},
		},
	}
	data.Normalize()
	return data
}

func specs() *extrafields.Registry {
	return extrafields.NewRegistry(extrafields.StaticLoader(map[string][]extrafields.Spec{
		extrafields.ModelProject: {
			{InternalName: "scope_rt", DisplayName: "Scope", Type: extrafields.TypeRichText},
			{InternalName: "loop", DisplayName: "Loop", Type: extrafields.TypeRichText},
			{InternalName: "reference", DisplayName: "Reference", Type: extrafields.TypeString},
		},
		extrafields.ModelFinding: {
			{InternalName: "attack_path", DisplayName: "Attack path", Type: extrafields.TypeRichText},
		},
	}), nil)
}

func TestBuilderFindingFields(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	b, err := NewBuilder(context.Background(), pre, reportData(), specs())
	require.NoError(t, err)

	require.Len(t, b.Findings(), 2)
	assert.Equal(t, "SQL Injection", b.Findings()[0].Title)

	desc, err := b.RenderFinding(0, finding.FindingRichTextFields[0])
	require.NoError(t, err)
	assert.Equal(t, `<p>In SQL Injection: `+templating.EvidenceMarker("Login form")+` and `+templating.EvidenceMarker("Network map")+`</p>`, desc)

	impact, err := b.RenderFinding(0, finding.FindingRichTextFields[1])
	require.NoError(t, err)
	assert.Equal(t, "<p><p>Scope for Acme</p></p>", impact)

	banner, err := b.RenderFinding(1, finding.FindingRichTextFields[0])
	require.NoError(t, err)
	assert.Equal(t, "<p>2024-01-08</p>", banner)

	assert.Len(t, b.Evidence(0), 2)
	assert.Len(t, b.Evidence(-1), 1)

	fields := b.Vars()["findings"].([]any)[0].(map[string]any)["extra_fields"].(map[string]any)
	lazy, ok := fields["attack_path"].(*Lazy)
	require.True(t, ok)
	out, err := lazy.Render()
	require.NoError(t, err)
	assert.Equal(t, "<p>via SQL Injection</p>", out)

	project := b.Vars()["project"].(map[string]any)["extra_fields"].(map[string]any)
	assert.Equal(t, "ticket-42", project["reference"])
}

func TestBuilderCircularExtraField(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	b, err := NewBuilder(context.Background(), pre, reportData(), specs())
	require.NoError(t, err)

	_, err = b.Render("{{ .project.extra_fields.loop }}", b.Vars())
	require.Error(t, err)
	assert.True(t, errors.Is(err, reporterr.ErrCircularReference))
	assert.Equal(t, "circular_reference", reporterr.Category(err))
}

func TestVisitLazy(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	b, err := NewBuilder(context.Background(), pre, reportData(), specs())
	require.NoError(t, err)

	var names []string
	VisitLazy(b.Vars(), func(_ map[string]any, key string, _ *Lazy) {
		names = append(names, key)
	})
	assert.ElementsMatch(t, []string{"scope_rt", "loop", "attack_path"}, names)
}

func TestBuilderWithoutRegistry(t *testing.T) {
	pre := NewPreprocessor(templating.New(templating.Options{}))
	b, err := NewBuilder(context.Background(), pre, reportData(), nil)
	require.NoError(t, err)

	out, err := b.Render("{{ .project.extra_fields.scope_rt }}", b.Vars())
	require.NoError(t, err)
	assert.Equal(t, "<p>Scope for {{ .client.name }}</p>", out)
}
