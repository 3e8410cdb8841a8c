package lint

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/waftester/reportforge/pkg/defaults"
	"github.com/waftester/reportforge/pkg/extrafields"
	"github.com/waftester/reportforge/pkg/finding"
)

// EvidenceName is the friendly name of the evidence every placeholder
// finding carries.
const EvidenceName = "Example Evidence"

// ReportEvidenceName is the friendly name of the report-level placeholder
// evidence.
const ReportEvidenceName = "Example Report Evidence"

var severities = []finding.Severity{
	finding.Critical, finding.High, finding.Medium, finding.Low, finding.Informational,
}

// Placeholder builds a report that exercises every part of a template: one
// finding per standard severity with every rich-text field filled, evidence
// images written under dir, and an example value for each extra field the
// registry knows. registry may be nil.
func Placeholder(ctx context.Context, registry *extrafields.Registry, dir string) (*finding.ReportData, error) {
	extra := func(model string) (map[string]any, error) {
		if registry == nil {
			return nil, nil
		}
		specs, err := registry.Specs(ctx, model)
		if err != nil {
			return nil, fmt.Errorf("lint: extra fields of %s: %w", model, err)
		}
		out := make(map[string]any, len(specs))
		for _, s := range specs {
			out[s.InternalName] = s.Example()
		}
		return out, nil
	}

	var fields [5]map[string]any
	for i, model := range []string{
		extrafields.ModelReport, extrafields.ModelProject, extrafields.ModelClient,
		extrafields.ModelFinding, extrafields.ModelLogEntry,
	} {
		m, err := extra(model)
		if err != nil {
			return nil, err
		}
		fields[i] = m
	}

	reportEvidence, err := placeholderEvidence(dir, ReportEvidenceName, 1)
	if err != nil {
		return nil, err
	}

	data := &finding.ReportData{
		Report: finding.ReportMeta{ID: 1, Title: "Example Report", Author: "Example Author"},
		Project: finding.Project{
			ID: 1, Name: "Example Project", Codename: "EXAMPLE", Type: "Penetration Test",
			StartDate: "2024-01-01", EndDate: "2024-01-31", Note: "<p>Example project note</p>",
			ExtraFields: fields[1],
		},
		Client: finding.Client{
			ID: 1, Name: "Example Client", ShortName: "EC", Codename: "CLIENT",
			Address: "1 Example Street", ExtraFields: fields[2],
		},
		Team: []finding.TeamMember{{Name: "Example Assessor", Email: "assessor@example.com", Role: "Lead"}},
		Targets: []finding.Target{
			{IPAddress: "192.0.2.10", Hostname: "app.example.com", Compromised: true},
			{IPAddress: "192.0.2.20", Hostname: "db.example.com"},
		},
		Logs: []finding.LogEntry{{
			ID: 1, StartDate: "2024-01-02T09:00:00Z", EndDate: "2024-01-02T09:05:00Z",
			SourceIP: "198.51.100.1", DestIP: "192.0.2.10", Tool: defaults.ToolName,
			Command: "example --scan", Description: "Example log entry", ExtraFields: fields[4],
		}},
		Evidence:    []finding.Evidence{reportEvidence},
		ExtraFields: fields[0],
	}

	for i, sev := range severities {
		ev, err := placeholderEvidence(dir, EvidenceName, 10+i)
		if err != nil {
			return nil, err
		}
		f := finding.Finding{
			ID:          i + 1,
			Title:       "Example " + sev.Label + " Finding",
			Severity:    sev,
			FindingType: "Network",
			CVSSScore:   float64(10 - 2*i),
			CVSSVector:  "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
			Tags:        []string{"example"},
			Position:    i + 1,
			Complete:    true,
			Evidence:    []finding.Evidence{ev},
			ExtraFields: copyFields(fields[3]),
		}
		for _, field := range finding.FindingRichTextFields {
			setRichText(&f, field, richPlaceholder(field.Label))
		}
		data.Findings = append(data.Findings, f)
	}
	return data, nil
}

func copyFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// richPlaceholder exercises paragraphs, inline styling, a list and an
// evidence marker.
func richPlaceholder(label string) string {
	return `<p>Example <b>` + label + `</b> with <i>inline</i> <code>formatting</code>.</p>` +
		`<ul><li><p>First point</p></li><li><p>Second point</p></li></ul>` +
		`<p>{{ evidence "` + EvidenceName + `" }}</p>`
}

func setRichText(f *finding.Finding, field finding.RichTextField, html string) {
	switch field.Key {
	case "description":
		f.Description = html
	case "impact":
		f.Impact = html
	case "mitigation":
		f.Mitigation = html
	case "replication_steps":
		f.ReplicationSteps = html
	case "host_detection_techniques":
		f.HostDetectionTechniques = html
	case "network_detection_techniques":
		f.NetworkDetectionTechniques = html
	case "references":
		f.References = html
	case "affected_entities":
		f.AffectedEntities = html
	}
}

// placeholderEvidence writes a small PNG under dir and returns evidence
// pointing at it.
func placeholderEvidence(dir, name string, id int) (finding.Evidence, error) {
	path := uuid.NewString() + ".png"
	if err := os.WriteFile(filepath.Join(dir, path), placeholderPNG(), defaults.OutputFileMode); err != nil {
		return finding.Evidence{}, fmt.Errorf("lint: writing placeholder evidence: %w", err)
	}
	return finding.Evidence{
		ID:           id,
		FriendlyName: name,
		Path:         path,
		Caption:      "Example caption",
		Description:  "Example evidence description",
	}, nil
}

func placeholderPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 32))
	for x := 0; x < 64; x++ {
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.RGBA{R: 0x2D, G: 0x2B, B: 0x6B, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
