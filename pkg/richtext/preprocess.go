// Package richtext turns editor-authored markup into rendered HTML: legacy
// placeholders are rewritten, the result is rendered in the template
// environment and characters XML cannot carry are dropped.
package richtext

import (
	"strconv"
	"strings"

	"github.com/waftester/reportforge/pkg/regexcache"
	"github.com/waftester/reportforge/pkg/strutil"
	"github.com/waftester/reportforge/pkg/templating"
)

const (
	legacyPattern = `\{\{\.(.*?)\}\}`

	// PageBreakParagraph is how the editor stores a manual page break.
	PageBreakParagraph = "<p><!-- pagebreak --></p>"

	// templateName appears in template error messages, which must not
	// contain colons.
	templateName = "richtext"
)

// Prepare rewrites legacy placeholders and the page-break paragraph.
//
// {{.ref NAME}} and {{.caption NAME}} become marker calls. Any other
// {{.name}} is looked up whole in the legacy variable map, so "a.b" and
// "Screenshot 1" are keys there rather than field chains; a missing key
// renders empty and is reported as undefined. Expressions written with a
// space after the braces are not legacy and pass through.
func Prepare(src string) string {
	re := regexcache.MustGet(legacyPattern)
	out := re.ReplaceAllStringFunc(src, func(m string) string {
		inner := strings.TrimSpace(m[3 : len(m)-2])
		switch {
		case strings.HasPrefix(inner, "ref "):
			return "{{ ref " + strconv.Quote(strings.TrimSpace(inner[len("ref "):])) + " }}"
		case inner == "caption":
			return "{{ caption }}"
		case strings.HasPrefix(inner, "caption "):
			return "{{ caption " + strconv.Quote(strings.TrimSpace(inner[len("caption "):])) + " }}"
		}
		return "{{ get ." + templating.OldDotVarsKey + " " + strconv.Quote(inner) + " }}"
	})
	return strings.ReplaceAll(out, PageBreakParagraph, templating.PageBreakMarker)
}

// Preprocessor renders rich text in a template environment.
type Preprocessor struct {
	env *templating.Environment
}

// NewPreprocessor returns a Preprocessor rendering in env.
func NewPreprocessor(env *templating.Environment) *Preprocessor {
	return &Preprocessor{env: env}
}

// Environment returns the template environment.
func (p *Preprocessor) Environment() *templating.Environment { return p.env }

// Render prepares src, renders it against vars and strips characters that
// are not valid in XML.
func (p *Preprocessor) Render(src string, vars map[string]any) (string, error) {
	out, err := p.env.Render(templateName, Prepare(src), vars)
	if err != nil {
		return "", err
	}
	return strutil.XMLSafe(out), nil
}
