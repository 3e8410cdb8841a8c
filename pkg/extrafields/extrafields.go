// Package extrafields describes the custom fields administrators attach to
// report models and caches their specifications across exports.
package extrafields

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// ErrUnknownType is returned for a spec whose type is not one of the
// supported field types.
var ErrUnknownType = errors.New("extrafields: unknown field type")

// FieldType is the storage type of an extra field.
type FieldType string

const (
	TypeRichText FieldType = "rich_text"
	TypeString   FieldType = "single_line_text"
	TypeInteger  FieldType = "integer"
	TypeFloat    FieldType = "float"
	TypeBoolean  FieldType = "checkbox"
	TypeJSON     FieldType = "json"
)

// Models that can carry extra fields.
const (
	ModelReport   = "report"
	ModelProject  = "project"
	ModelClient   = "client"
	ModelFinding  = "finding"
	ModelLogEntry = "log_entry"
)

// Spec describes one extra field.
type Spec struct {
	InternalName string    `json:"internal_name" yaml:"internal_name"`
	DisplayName  string    `json:"display_name" yaml:"display_name"`
	Type         FieldType `json:"type" yaml:"type"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsRichText reports whether the field holds editor markup that must be
// rendered like the built-in rich-text fields.
func (s Spec) IsRichText() bool { return s.Type == TypeRichText }

// Validate checks the spec is usable.
func (s Spec) Validate() error {
	if s.InternalName == "" {
		return errors.New("extrafields: spec has no internal name")
	}
	switch s.Type {
	case TypeRichText, TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeJSON:
		return nil
	}
	return fmt.Errorf("%w: %q for field %q", ErrUnknownType, s.Type, s.InternalName)
}

// Example returns a placeholder value of the right shape, used when a
// template is linted without real data.
func (s Spec) Example() any {
	switch s.Type {
	case TypeRichText:
		return "<p>Example " + s.DisplayName + "</p>"
	case TypeInteger:
		return 1
	case TypeFloat:
		return 1.5
	case TypeBoolean:
		return true
	case TypeJSON:
		return map[string]any{"example": true}
	default:
		return "Example " + s.DisplayName
	}
}

// Loader fetches the specs of one model.
type Loader interface {
	Load(ctx context.Context, model string) ([]Spec, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, model string) ([]Spec, error)

func (f LoaderFunc) Load(ctx context.Context, model string) ([]Spec, error) { return f(ctx, model) }

// StaticLoader serves specs from a fixed map.
func StaticLoader(specs map[string][]Spec) Loader {
	return LoaderFunc(func(_ context.Context, model string) ([]Spec, error) {
		return specs[model], nil
	})
}

// FileLoader serves specs from a YAML (or JSON) document mapping model
// names to spec lists. The file is read on every Load; wrap it in a
// Registry to cache.
func FileLoader(path string) Loader {
	return LoaderFunc(func(_ context.Context, model string) ([]Spec, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("extrafields: reading %s: %w", path, err)
		}
		var all map[string][]Spec
		if err := yaml.Unmarshal(data, &all); err != nil {
			return nil, fmt.Errorf("extrafields: parsing %s: %w", path, err)
		}
		return all[model], nil
	})
}

// Registry caches specs per model. Reads hit an immutable snapshot; a miss
// loads the model once, however many callers ask concurrently, and
// publishes a new snapshot with the model added.
type Registry struct {
	loader Loader
	logger *slog.Logger
	snap   atomic.Pointer[map[string][]Spec]
	group  singleflight.Group
}

// NewRegistry returns an empty registry backed by loader.
func NewRegistry(loader Loader, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{loader: loader, logger: logger}
	empty := map[string][]Spec{}
	r.snap.Store(&empty)
	return r
}

// Specs returns the specs of model. The returned slice is shared and must
// not be modified.
func (r *Registry) Specs(ctx context.Context, model string) ([]Spec, error) {
	if specs, ok := (*r.snap.Load())[model]; ok {
		return specs, nil
	}
	v, err, _ := r.group.Do(model, func() (any, error) {
		if specs, ok := (*r.snap.Load())[model]; ok {
			return specs, nil
		}
		specs, err := r.loader.Load(ctx, model)
		if err != nil {
			return nil, err
		}
		for _, s := range specs {
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("extrafields: model %s: %w", model, err)
			}
		}
		r.publish(model, specs)
		r.logger.Debug("extra field specs loaded", slog.String("model", model), slog.Int("count", len(specs)))
		return specs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Spec), nil
}

func (r *Registry) publish(model string, specs []Spec) {
	for {
		old := r.snap.Load()
		next := make(map[string][]Spec, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[model] = specs
		if r.snap.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Invalidate drops every cached model.
func (r *Registry) Invalidate() {
	empty := map[string][]Spec{}
	r.snap.Store(&empty)
}

// RichTextNames returns the internal names of the rich-text fields of
// model.
func (r *Registry) RichTextNames(ctx context.Context, model string) ([]string, error) {
	specs, err := r.Specs(ctx, model)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range specs {
		if s.IsRichText() {
			out = append(out, s.InternalName)
		}
	}
	return out, nil
}
