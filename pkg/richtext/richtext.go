package richtext

import (
	"github.com/waftester/reportforge/pkg/reporterr"
)

// RichText is a unit of markup that renders to HTML on demand.
type RichText interface {
	Render() (string, error)
}

// HTML is already-rendered markup.
type HTML string

func (h HTML) Render() (string, error) { return string(h), nil }

func (h HTML) String() string { return string(h) }

// Sink collects errors raised where they cannot be returned, such as from
// String methods called by the template engine. One Sink is shared by
// every Lazy of an export.
type Sink struct {
	errs []error
}

// Add records err. Nil errors and a nil Sink are ignored.
func (s *Sink) Add(err error) {
	if s == nil || err == nil {
		return
	}
	s.errs = append(s.errs, err)
}

// Len returns the number of errors recorded so far.
func (s *Sink) Len() int {
	if s == nil {
		return 0
	}
	return len(s.errs)
}

// Since returns the first error recorded after mark, or nil.
func (s *Sink) Since(mark int) error {
	if s == nil || mark >= len(s.errs) {
		return nil
	}
	return s.errs[mark]
}

type lazyState int

const (
	unrendered lazyState = iota
	rendering
	rendered
)

// Lazy is rich text rendered the first time it is needed and memoised.
// Its variables may refer back to other Lazy values, including itself; a
// render that re-enters itself fails with reporterr.ErrCircularReference.
//
// A Lazy is not safe for concurrent use.
type Lazy struct {
	pre      *Preprocessor
	src      string
	location string
	vars     map[string]any
	sink     *Sink

	state lazyState
	html  string
	err   error
}

// Lazy returns unrendered rich text. location names the field for error
// messages; sink receives errors raised while the value is printed from
// inside another template.
func (p *Preprocessor) Lazy(location, src string, sink *Sink) *Lazy {
	return &Lazy{pre: p, src: src, location: location, sink: sink}
}

// Bind sets the variables the text is rendered against.
func (l *Lazy) Bind(vars map[string]any) { l.vars = vars }

// Source returns the unrendered markup.
func (l *Lazy) Source() string { return l.src }

// Location returns the field description used in errors.
func (l *Lazy) Location() string { return l.location }

// Render renders the text once and returns the memoised result after.
func (l *Lazy) Render() (string, error) {
	switch l.state {
	case rendered:
		return l.html, l.err
	case rendering:
		return "", reporterr.WithLocation(reporterr.ErrCircularReference, l.location)
	}

	l.state = rendering
	mark := l.sink.Len()
	html, err := l.pre.Render(l.src, l.vars)
	if err == nil {
		err = l.sink.Since(mark)
	}
	if err != nil {
		html = ""
	}
	l.html, l.err = html, reporterr.WithLocation(err, l.location)
	l.state = rendered
	return l.html, l.err
}

// String renders the text for use inside another template. Errors go to
// the sink and render as empty.
func (l *Lazy) String() string {
	html, err := l.Render()
	if err != nil {
		l.sink.Add(err)
		return ""
	}
	return html
}
