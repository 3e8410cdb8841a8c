// Package config holds the report configuration: figure and table
// labelling, evidence borders, caption casing and per-format layout
// choices. Configuration is loaded from YAML over DefaultReportConfig so
// a file only needs the keys it changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every load and validation failure.
var ErrInvalidConfig = errors.New("config: invalid report configuration")

// EMUsPerPoint converts points to English Metric Units.
const EMUsPerPoint = 12700

// ReportConfig is the configuration passed to every export.
type ReportConfig struct {
	// FigureLabel precedes the figure number ("Figure 3").
	FigureLabel string `yaml:"figure_label" json:"figure_label"`

	// FigurePrefix separates the figure number from the caption text.
	FigurePrefix string `yaml:"figure_prefix" json:"figure_prefix"`

	// FigureCaptionLocation places evidence captions "before" or "after"
	// the picture.
	FigureCaptionLocation string `yaml:"figure_caption_location" json:"figure_caption_location"`

	// TableLabel precedes the table number ("Table 2").
	TableLabel string `yaml:"table_label" json:"table_label"`

	// TablePrefix separates the table number from the caption text.
	TablePrefix string `yaml:"table_prefix" json:"table_prefix"`

	// Border draws a solid border around embedded evidence images.
	Border BorderConfig `yaml:"border" json:"border"`

	// TitleCaseCaptions title-cases caption text.
	TitleCaseCaptions bool `yaml:"title_case_captions" json:"title_case_captions"`

	// TitleCaseExceptions are words left lower-case when title-casing
	// (except as the first word).
	TitleCaseExceptions []string `yaml:"title_case_exceptions" json:"title_case_exceptions"`

	// ImageMaxWidthInches bounds the width of embedded evidence images.
	ImageMaxWidthInches float64 `yaml:"image_max_width_inches" json:"image_max_width_inches"`

	// PPTX controls slide synthesis.
	PPTX PPTXConfig `yaml:"pptx" json:"pptx"`

	// XLSX controls the workbook layout.
	XLSX XLSXConfig `yaml:"xlsx" json:"xlsx"`

	// Lint controls linter strictness.
	Lint LintConfig `yaml:"lint" json:"lint"`
}

// BorderConfig describes the evidence image border.
type BorderConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Color   string `yaml:"color" json:"color"`
	// Weight is the line width in EMUs (12700 per point).
	Weight int `yaml:"weight" json:"weight"`
}

// PPTXConfig selects slide layouts from the template by index.
type PPTXConfig struct {
	TitleLayout   int `yaml:"title_layout" json:"title_layout"`
	ContentLayout int `yaml:"content_layout" json:"content_layout"`
}

// XLSXConfig controls the findings workbook.
type XLSXConfig struct {
	SheetName string `yaml:"sheet_name" json:"sheet_name"`
}

// LintConfig controls how the linter grades templates.
type LintConfig struct {
	// Strict turns undefined-variable warnings into errors.
	Strict bool `yaml:"strict" json:"strict"`
}

// DefaultReportConfig returns the default configuration.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		FigureLabel:           "Figure",
		FigurePrefix:          " – ",
		FigureCaptionLocation: "after",
		TableLabel:            "Table",
		TablePrefix:           " – ",
		Border: BorderConfig{
			Enabled: true,
			Color:   "2D2B6B",
			Weight:  EMUsPerPoint,
		},
		TitleCaseCaptions: true,
		TitleCaseExceptions: []string{
			"a", "an", "and", "as", "at", "but", "by", "for", "in", "nor",
			"of", "on", "or", "so", "the", "to", "up", "via", "with", "yet",
		},
		ImageMaxWidthInches: 6.5,
		PPTX: PPTXConfig{
			TitleLayout:   0,
			ContentLayout: 1,
		},
		XLSX: XLSXConfig{
			SheetName: "Findings",
		},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*ReportConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*ReportConfig, error) {
	cfg := DefaultReportConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(cfg *ReportConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks cfg and returns every problem found, wrapped in
// ErrInvalidConfig.
func (c *ReportConfig) Validate() error {
	var errs []string

	if strings.TrimSpace(c.FigureLabel) == "" {
		errs = append(errs, "figure_label must not be empty")
	}
	if strings.TrimSpace(c.TableLabel) == "" {
		errs = append(errs, "table_label must not be empty")
	}
	switch c.FigureCaptionLocation {
	case "before", "after":
	default:
		errs = append(errs, fmt.Sprintf("invalid figure_caption_location %q: must be before or after", c.FigureCaptionLocation))
	}
	if c.Border.Enabled {
		if _, err := colorful.Hex("#" + strings.TrimPrefix(c.Border.Color, "#")); err != nil {
			errs = append(errs, fmt.Sprintf("invalid border.color %q: must be a six digit hex color", c.Border.Color))
		}
		if c.Border.Weight <= 0 {
			errs = append(errs, fmt.Sprintf("invalid border.weight %d: must be positive", c.Border.Weight))
		}
	}
	if c.ImageMaxWidthInches <= 0 {
		errs = append(errs, fmt.Sprintf("invalid image_max_width_inches %v: must be positive", c.ImageMaxWidthInches))
	}
	if c.PPTX.TitleLayout < 0 || c.PPTX.ContentLayout < 0 {
		errs = append(errs, "pptx layout indexes must not be negative")
	}
	if strings.TrimSpace(c.XLSX.SheetName) == "" {
		errs = append(errs, "xlsx.sheet_name must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// BorderColor returns the border color as upper-case RRGGBB.
func (c *ReportConfig) BorderColor() string {
	return strings.ToUpper(strings.TrimPrefix(c.Border.Color, "#"))
}

// ImageMaxWidthEMU returns the maximum evidence image width in EMUs.
func (c *ReportConfig) ImageMaxWidthEMU() int64 {
	return int64(c.ImageMaxWidthInches * 914400)
}

// IsTitleCaseException reports whether word should stay lower-case in a
// title-cased caption.
func (c *ReportConfig) IsTitleCaseException(word string) bool {
	w := strings.ToLower(word)
	for _, e := range c.TitleCaseExceptions {
		if strings.ToLower(e) == w {
			return true
		}
	}
	return false
}
