// Package templating is the sandboxed expression environment rich text and
// document skeletons are rendered in.
//
// It is text/template with the sprig function library minus the functions
// that reach outside the process, plus the report filters and the marker
// functions evidence, caption and ref. Undefined variables render empty;
// callers that need to know about them pass an UndefinedSet.
package templating

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/waftester/reportforge/pkg/bufpool"
	"github.com/waftester/reportforge/pkg/reporterr"
)

// OldDotVarsKey is the variable legacy {{.name}} placeholders are looked up
// in. Execute guarantees it is present.
const OldDotVarsKey = "_old_dot_vars"

// sandboxed lists sprig functions removed from the environment.
var sandboxed = []string{"env", "expandenv", "getHostByName"}

// Options configures an Environment.
type Options struct {
	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger

	// Undefined, if set, collects every undefined variable a render
	// references.
	Undefined *UndefinedSet

	// Funcs adds or overrides template functions.
	Funcs template.FuncMap
}

// Environment renders templates. It is safe for concurrent use once built.
type Environment struct {
	logger    *slog.Logger
	undefined *UndefinedSet
	funcs     template.FuncMap
}

// New builds an Environment.
func New(opts Options) *Environment {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	funcs := sprig.TxtFuncMap()
	for _, name := range sandboxed {
		delete(funcs, name)
	}
	for name, fn := range builtinFuncs() {
		funcs[name] = fn
	}
	for name, fn := range opts.Funcs {
		funcs[name] = fn
	}
	return &Environment{logger: logger, undefined: opts.Undefined, funcs: funcs}
}

func builtinFuncs() template.FuncMap {
	return template.FuncMap{
		"filter_severity": filterSeverity,
		"filter_type":     filterType,
		"filter_tags":     filterTags,
		"compromised":     filterCompromised,
		"strip_html":      stripHTML,
		"add_days":        addDays,
		"format_datetime": formatDatetime,
		"regex_search":    regexSearch,
		"get_item":        getItem,
		"replace_blanks":  replaceBlanks,
		"evidence":        markerEvidence,
		"caption":         markerCaption,
		"ref":             markerRef,
		fieldFunc:         fieldOrEmpty,
		itemsFunc:         itemsOrNil,
	}
}

// Undefined returns the collector the environment was built with, or nil.
func (e *Environment) Undefined() *UndefinedSet { return e.undefined }

// HasFunc reports whether name is callable from templates.
func (e *Environment) HasFunc(name string) bool {
	_, ok := e.funcs[name]
	return ok
}

// Template is a parsed template bound to its environment.
type Template struct {
	env  *Environment
	name string
	src  string
	tmpl *template.Template
}

// Parse compiles src. Syntax errors are returned as
// *reporterr.TemplateSyntaxError.
func (e *Environment) Parse(name, src string) (*Template, error) {
	tmpl, err := template.New(name).Funcs(e.funcs).Parse(src)
	if err != nil {
		return nil, syntaxError(src, err)
	}
	return &Template{env: e, name: name, src: src, tmpl: tmpl}, nil
}

// Render parses and executes src against vars in one step.
func (e *Environment) Render(name, src string, vars map[string]any) (string, error) {
	t, err := e.Parse(name, src)
	if err != nil {
		return "", err
	}
	return t.Execute(vars)
}

// Source returns the text the template was parsed from.
func (t *Template) Source() string { return t.src }

// Execute renders the template against vars.
func (t *Template) Execute(vars map[string]any) (string, error) {
	buf := bufpool.Get()
	defer bufpool.Put(buf)
	if err := t.ExecuteTo(buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExecuteTo renders the template against vars into w. The parse tree is
// copied and specialised for vars, so one Template can be executed
// concurrently against different data.
func (t *Template) ExecuteTo(w io.Writer, vars map[string]any) error {
	vars = withOldDotVars(vars)

	run := template.New(t.name).Funcs(t.env.funcs)
	for _, assoc := range t.tmpl.Templates() {
		if assoc.Tree == nil {
			continue
		}
		tree := assoc.Tree.Copy()
		if assoc.Name() == t.name {
			analyze(tree, vars, t.env.undefined)
		}
		if _, err := run.AddParseTree(assoc.Name(), tree); err != nil {
			return fmt.Errorf("templating: %w", err)
		}
	}
	run = run.Lookup(t.name)
	if run == nil {
		return nil
	}
	if err := run.Execute(w, vars); err != nil {
		t.env.logger.Debug("template execution failed", slog.String("template", t.name), slog.String("error", err.Error()))
		return classifyExecError(t.src, err)
	}
	return nil
}

func withOldDotVars(vars map[string]any) map[string]any {
	if _, ok := vars[OldDotVarsKey].(map[string]any); ok {
		return vars
	}
	out := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out[OldDotVarsKey] = map[string]any{}
	return out
}

// template: NAME:LINE: msg, and template: NAME:LINE:COL: executing ...
var errLinePattern = regexp.MustCompile(`^template: [^:]*:(\d+):`)

func errorLine(err error) int {
	m := errLinePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func syntaxError(src string, err error) error {
	line := errorLine(err)
	return &reporterr.TemplateSyntaxError{Line: line, Context: reporterr.SourceLine(src, line), Err: err}
}

// classifyExecError maps an execution failure onto the error taxonomy. A
// filter rejection surfaces as the filter's own error; errors already in
// the taxonomy pass through; anything else is a malformed expression.
func classifyExecError(src string, err error) error {
	var fv *reporterr.InvalidFilterValueError
	if errors.As(err, &fv) {
		return fv
	}
	if reporterr.Category(err) != "internal" {
		return err
	}
	return syntaxError(src, err)
}
