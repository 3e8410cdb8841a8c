package htmlconv

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/aymerick/douceur/parser"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Style is the inline formatting in effect for a text run. It is a small
// value type: handlers change a copy and pass it down, so formatting is
// scoped to the subtree that set it.
type Style struct {
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
	Sub       bool
	Sup       bool
	Code      bool
	Highlight bool

	FontFamily string
	FontSize   float64 // points; 0 inherits
	Color      string  // RRGGBB; "" inherits
	Background string  // RRGGBB; "" inherits
	Link       string  // hyperlink target; "" for none
}

// Merge returns s with every attribute child sets applied over it.
// Attributes child leaves unset keep their value from s.
func (s Style) Merge(child Style) Style {
	out := s
	out.Bold = s.Bold || child.Bold
	out.Italic = s.Italic || child.Italic
	out.Underline = s.Underline || child.Underline
	out.Strike = s.Strike || child.Strike
	out.Sub = s.Sub || child.Sub
	out.Sup = s.Sup || child.Sup
	out.Code = s.Code || child.Code
	out.Highlight = s.Highlight || child.Highlight
	if child.FontFamily != "" {
		out.FontFamily = child.FontFamily
	}
	if child.FontSize != 0 {
		out.FontSize = child.FontSize
	}
	if child.Color != "" {
		out.Color = child.Color
	}
	if child.Background != "" {
		out.Background = child.Background
	}
	if child.Link != "" {
		out.Link = child.Link
	}
	return out
}

// IsZero reports whether s carries no formatting.
func (s Style) IsZero() bool { return s == Style{} }

// spanClasses maps the class vocabulary of the editor to styles.
var spanClasses = map[string]Style{
	"italic":    {Italic: true},
	"bold":      {Bold: true},
	"underline": {Underline: true},
	"highlight": {Highlight: true},
}

// parseSpanStyle reads the style and class attributes of a span.
func parseSpanStyle(styleAttr, classAttr string, logger *slog.Logger) Style {
	var st Style
	for _, class := range strings.Fields(classAttr) {
		st = st.Merge(spanClasses[class])
	}
	if strings.TrimSpace(styleAttr) == "" {
		return st
	}
	// douceur drops a final declaration that is not terminated.
	src := strings.TrimSpace(styleAttr)
	if !strings.HasSuffix(src, ";") {
		src += ";"
	}
	decls, err := parser.ParseDeclarations(src)
	if err != nil {
		logger.Debug("ignoring unparseable span style", slog.String("style", styleAttr), slog.String("error", err.Error()))
		return st
	}
	for _, d := range decls {
		val := strings.TrimSpace(d.Value)
		switch strings.ToLower(d.Property) {
		case "font-size":
			if pt, ok := parseFontSize(val); ok {
				st.FontSize = pt
			}
		case "font-family":
			st.FontFamily = parseFontFamily(val)
		case "color":
			if c, ok := ParseColor(val); ok {
				st.Color = c
			}
		case "background-color", "background":
			if c, ok := ParseColor(val); ok {
				st.Background = c
				st.Highlight = true
			}
		}
	}
	return st
}

// parseFontSize accepts pt and px values.
func parseFontSize(v string) (float64, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "pt"):
		v = strings.TrimSuffix(v, "pt")
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
		scale = 0.75
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return math.Round(f*scale*2) / 2, true
}

// parseFontFamily returns the first family of a font stack.
func parseFontFamily(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.Trim(strings.TrimSpace(first), `"'`)
}

// ParseColor normalises a CSS color (#RGB, #RRGGBB, rgb(r, g, b) or a
// basic named color) to uppercase RRGGBB.
func ParseColor(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if named, ok := namedColors[v]; ok {
		v = named
	}
	switch {
	case strings.HasPrefix(v, "#"):
		if len(v) == 4 {
			v = "#" + strings.Repeat(v[1:2], 2) + strings.Repeat(v[2:3], 2) + strings.Repeat(v[3:4], 2)
		}
		c, err := colorful.Hex(v)
		if err != nil {
			return "", false
		}
		return hexOf(c), true
	case strings.HasPrefix(v, "rgb(") && strings.HasSuffix(v, ")"):
		var r, g, b int
		if _, err := fmt.Sscanf(v, "rgb(%d,%d,%d)", &r, &g, &b); err != nil {
			compact := strings.ReplaceAll(v, " ", "")
			if _, err := fmt.Sscanf(compact, "rgb(%d,%d,%d)", &r, &g, &b); err != nil {
				return "", false
			}
		}
		if r < 0 || r > 255 || g < 0 || g > 255 || b < 0 || b > 255 {
			return "", false
		}
		return hexOf(colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}), true
	}
	return "", false
}

func hexOf(c colorful.Color) string {
	return strings.ToUpper(strings.TrimPrefix(c.Hex(), "#"))
}

var namedColors = map[string]string{
	"black":  "#000000",
	"white":  "#ffffff",
	"red":    "#ff0000",
	"green":  "#008000",
	"blue":   "#0000ff",
	"yellow": "#ffff00",
	"orange": "#ffa500",
	"purple": "#800080",
	"gray":   "#808080",
	"grey":   "#808080",
}
