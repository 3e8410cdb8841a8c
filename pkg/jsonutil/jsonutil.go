// Package jsonutil wraps github.com/go-json-experiment/json for the places
// the report pipeline touches JSON: decoding the serialized data tree,
// turning it into a generic template context, and writing the archival
// JSON export.
//
// Usage:
//
//	var data finding.ReportData
//	if err := jsonutil.DecodeFile("report.json", &data); err != nil { ... }
//	ctx, err := jsonutil.ToGeneric(data)
package jsonutil

import (
	"fmt"
	"os"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Marshal returns the JSON encoding of v with map keys sorted, so exports
// of the same tree are byte-identical.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

// MarshalIndent returns the indented, deterministic JSON encoding of v.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true), jsontext.WithIndent(indent))
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// DecodeFile reads path and unmarshals it into v.
func DecodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// ToGeneric converts v into the generic shape templates consume:
// map[string]any, []any, string, float64, bool and nil, keyed by the
// JSON field names.
func ToGeneric(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
