package docx

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"golang.org/x/net/html"

	"github.com/waftester/reportforge/pkg/ooxml"
	"github.com/waftester/reportforge/pkg/plaintext"
	"github.com/waftester/reportforge/pkg/reporterr"
	"github.com/waftester/reportforge/pkg/richtext"
	"github.com/waftester/reportforge/pkg/strutil"
	"github.com/waftester/reportforge/pkg/templating"
)

// Template functions added by Funcs. Skeleton rewriting pipes every
// inline output action through xmlFunc and every {{p …}} output action
// through paragraphsFunc.
const (
	xmlFunc        = "xml"
	paragraphsFunc = "paragraphs"
)

var (
	selfClosingParaRe = regexp.MustCompile(`<w:p(\s[^>]*)?/>`)
	emptyTextRe       = regexp.MustCompile(`<w:t(\s[^>]*)?/>`)
	paragraphRe       = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRe            = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	rowRe             = regexp.MustCompile(`(?s)<w:tr[ >].*?</w:tr>`)
	paraActionRe      = regexp.MustCompile(`(?s)^\s*\{\{(p|tr)\s+(.+?)\s*\}\}\s*$`)
	assignmentRe      = regexp.MustCompile(`^\$\w*\s*(:=|=)`)
	rowSentinelRe     = regexp.MustCompile("(?s)\x00tr(.*?)\x00")
)

var smartQuotes = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")

var controlKeywords = map[string]bool{
	"if": true, "else": true, "end": true, "range": true, "with": true,
	"define": true, "template": true, "block": true, "break": true, "continue": true,
}

// PrepareSkeleton rewrites WordprocessingML so the template actions typed
// into it can be executed. Word splits text into runs at arbitrary points,
// so the text of each paragraph holding an action is merged into its first
// text element. Inline output actions are escaped for XML. A paragraph
// whose whole text is {{p …}} is replaced by the action, which lets
// control structures span paragraphs and rich text insert whole blocks;
// {{tr …}} does the same for the enclosing table row.
func PrepareSkeleton(src string) string {
	src = selfClosingParaRe.ReplaceAllString(src, "<w:p$1></w:p>")
	src = emptyTextRe.ReplaceAllString(src, "")

	rows := false
	src = paragraphRe.ReplaceAllStringFunc(src, func(p string) string {
		texts := textRe.FindAllStringSubmatch(p, -1)
		var sb strings.Builder
		for _, t := range texts {
			sb.WriteString(html.UnescapeString(t[1]))
		}
		text := sb.String()
		if !strings.Contains(text, "{{") {
			return p
		}

		if m := paraActionRe.FindStringSubmatch(text); m != nil && !strings.Contains(m[2], "}}") {
			action := blockAction(smartQuotes.Replace(m[2]))
			if m[1] == "tr" {
				rows = true
				return "\x00tr" + action + "\x00"
			}
			return action
		}
		return mergeRuns(p, rewriteInline(text))
	})

	if rows {
		src = rowRe.ReplaceAllStringFunc(src, func(row string) string {
			actions := rowSentinelRe.FindAllStringSubmatch(row, -1)
			if actions == nil {
				return row
			}
			var sb strings.Builder
			for _, a := range actions {
				sb.WriteString(a[1])
			}
			return sb.String()
		})
		src = rowSentinelRe.ReplaceAllString(src, "$1")
	}
	return src
}

// blockAction is the action replacing a {{p …}} paragraph.
func blockAction(body string) string {
	if isOutput(body) {
		return "{{" + body + " | " + paragraphsFunc + "}}"
	}
	return "{{" + body + "}}"
}

// isOutput reports whether an action body prints a value.
func isOutput(body string) bool {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "/*") || assignmentRe.MatchString(body) {
		return false
	}
	word, _, _ := strings.Cut(body, " ")
	return !controlKeywords[word]
}

// rewriteInline escapes the literal text of a paragraph and pipes its
// output actions through the XML escaper. Unterminated actions are kept
// so parsing reports them.
func rewriteInline(text string) string {
	var sb strings.Builder
	for {
		open := strings.Index(text, "{{")
		if open < 0 {
			sb.WriteString(ooxml.Escape(text))
			break
		}
		end := strings.Index(text[open:], "}}")
		if end < 0 {
			sb.WriteString(ooxml.Escape(text[:open]))
			sb.WriteString(text[open:])
			break
		}
		end += open
		sb.WriteString(ooxml.Escape(text[:open]))
		sb.WriteString(inlineAction(smartQuotes.Replace(text[open+2 : end])))
		text = text[end+2:]
	}
	return sb.String()
}

func inlineAction(body string) string {
	trimLeft := strings.HasPrefix(body, "- ")
	trimRight := strings.HasSuffix(body, " -")
	inner := body
	if trimLeft {
		inner = inner[2:]
	}
	if trimRight {
		inner = inner[:len(inner)-2]
	}
	if !isOutput(inner) {
		return "{{" + body + "}}"
	}

	var sb strings.Builder
	sb.WriteString("{{")
	if trimLeft {
		sb.WriteString("- ")
	}
	sb.WriteString(strings.TrimSpace(inner))
	sb.WriteString(" | " + xmlFunc)
	if trimRight {
		sb.WriteString(" -")
	}
	sb.WriteString("}}")
	return sb.String()
}

// mergeRuns puts merged into the first text element of paragraph p and
// drops the others.
func mergeRuns(p, merged string) string {
	first := true
	return textRe.ReplaceAllStringFunc(p, func(string) string {
		if !first {
			return ""
		}
		first = false
		return `<w:t xml:space="preserve">` + merged + `</w:t>`
	})
}

// InlineXML is WordprocessingML run content printed into a skeleton as is.
// It closes the surrounding run, so it must consist of whole runs.
type InlineXML string

const (
	closeRun = `</w:t></w:r>`
	openRun  = `<w:r><w:t xml:space="preserve">`
)

// Funcs returns the template functions skeleton rendering needs. Add them
// to the environment skeletons are rendered with.
func Funcs() template.FuncMap {
	return template.FuncMap{
		xmlFunc:        xmlValue,
		paragraphsFunc: paragraphsValue,
	}
}

// xmlValue prints v inside a text element.
func xmlValue(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case InlineXML:
		return closeRun + string(v) + openRun, nil
	case *Rich:
		s, err := v.Plain()
		if err != nil {
			return "", err
		}
		return ooxml.Escape(s), nil
	case *richtext.Lazy:
		s, err := lazyPlain(v)
		if err != nil {
			return "", err
		}
		return ooxml.Escape(s), nil
	case string:
		return ooxml.Escape(strutil.XMLSafe(v)), nil
	default:
		return ooxml.Escape(strutil.XMLSafe(fmt.Sprint(v))), nil
	}
}

// paragraphsValue prints v as block content standing in for a paragraph.
// It always yields at least one paragraph.
func paragraphsValue(v any) (string, error) {
	switch v := v.(type) {
	case *Rich:
		return v.Blocks()
	case InlineXML:
		return "<w:p>" + string(v) + "</w:p>", nil
	case *richtext.Lazy:
		s, err := lazyPlain(v)
		if err != nil {
			return "", err
		}
		return plainParagraph(s), nil
	case nil:
		return "<w:p/>", nil
	case string:
		return plainParagraph(v), nil
	default:
		return plainParagraph(fmt.Sprint(v)), nil
	}
}

func plainParagraph(s string) string {
	s = strutil.XMLSafe(s)
	if s == "" {
		return "<w:p/>"
	}
	return ooxml.E("w:p", textRun(nil, s)).String()
}

func lazyPlain(l *richtext.Lazy) (string, error) {
	h, err := l.Render()
	if err != nil {
		return "", err
	}
	s, err := plaintext.Convert(h, plaintext.Options{})
	return s, reporterr.WithLocation(err, l.Location())
}

// skeletonParts returns the parts rendered as templates: the main part,
// then headers and footers.
func (d *Document) skeletonParts() []string {
	parts := []string{DocumentPart}
	parts = append(parts, d.pkg.Match("word/header*.xml")...)
	return append(parts, d.pkg.Match("word/footer*.xml")...)
}

// Render executes the template parts of the document against vars and
// returns the finished document. env must include Funcs. Errors recorded
// in sink while a part renders fail the render.
func (d *Document) Render(env *templating.Environment, vars map[string]any, sink *richtext.Sink) ([]byte, error) {
	var body []byte
	for _, name := range d.skeletonParts() {
		src, _ := d.pkg.Part(name)
		mark := sink.Len()
		out, err := env.Render(name, PrepareSkeleton(string(src)), vars)
		if err == nil {
			err = sink.Since(mark)
		}
		if err != nil {
			return nil, reporterr.WithLocationf(err, "the template part %s", name)
		}
		if name == DocumentPart {
			body = []byte(out)
			continue
		}
		d.pkg.SetPart(name, []byte(out))
	}
	return d.Finish(body)
}
