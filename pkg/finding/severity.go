package finding

import (
	"fmt"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Severity is a finding severity with its display label, ordering weight
// and the RGB color used for conditional styling. Lower weights sort first
// (Critical is 1).
type Severity struct {
	Label  string `json:"label"`
	Weight int    `json:"weight"`
	Color  string `json:"color"`
}

// Standard severities. Projects may define others; these are the defaults
// used when the data tree only carries a label.
var (
	Critical      = Severity{Label: "Critical", Weight: 1, Color: "A60023"}
	High          = Severity{Label: "High", Weight: 2, Color: "FF7E79"}
	Medium        = Severity{Label: "Medium", Weight: 3, Color: "F4B083"}
	Low           = Severity{Label: "Low", Weight: 4, Color: "A8D08D"}
	Informational = Severity{Label: "Informational", Weight: 5, Color: "8EAADB"}
)

var standardSeverities = []Severity{Critical, High, Medium, Low, Informational}

// ParseSeverity returns the standard severity matching label
// case-insensitively. "info" is accepted for Informational.
func ParseSeverity(label string) (Severity, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "info" {
		l = "informational"
	}
	for _, s := range standardSeverities {
		if strings.ToLower(s.Label) == l {
			return s, true
		}
	}
	return Severity{}, false
}

// IsValid reports whether s has a label and a parseable color.
func (s Severity) IsValid() bool {
	return s.Validate() == nil
}

// Validate returns ErrInvalidSeverity describing what is wrong with s.
func (s Severity) Validate() error {
	if strings.TrimSpace(s.Label) == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidSeverity)
	}
	if _, err := s.RGB(); err != nil {
		return fmt.Errorf("%w: %q has color %q", ErrInvalidSeverity, s.Label, s.Color)
	}
	return nil
}

// HexColor returns the color as upper-case RRGGBB without a leading '#'.
func (s Severity) HexColor() string {
	return strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s.Color), "#"))
}

// RGB parses the severity color.
func (s Severity) RGB() (colorful.Color, error) {
	return colorful.Hex("#" + strings.ToLower(s.HexColor()))
}

// RGB255 returns the color channels, or black if the color is invalid.
func (s Severity) RGB255() (r, g, b uint8) {
	c, err := s.RGB()
	if err != nil {
		return 0, 0, 0
	}
	return c.RGB255()
}

// String returns the display label.
func (s Severity) String() string {
	return s.Label
}

// withDefaults fills weight and color from the standard severity with the
// same label when the data tree only provided the label.
func (s Severity) withDefaults() Severity {
	std, ok := ParseSeverity(s.Label)
	if !ok {
		return s
	}
	if s.Weight == 0 {
		s.Weight = std.Weight
	}
	if s.Color == "" {
		s.Color = std.Color
	}
	return s
}
