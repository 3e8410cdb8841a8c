package htmlconv

import (
	"strings"
)

// isCollapsible reports whether r is whitespace that "white-space: normal"
// collapses. Non-breaking spaces are content.
func isCollapsible(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

type run struct {
	text  string
	style Style
}

// textTracker collapses whitespace across the text nodes of one block.
// Leading whitespace is dropped, interior runs become one space, and a
// trailing run is held back until more text arrives in the same block.
type textTracker struct {
	started      bool
	pending      bool
	pendingStyle Style
}

func (t *textTracker) reset() { *t = textTracker{} }

func (t *textTracker) hold(s Style) {
	if t.started && !t.pending {
		t.pending = true
		t.pendingStyle = s
	}
}

// feed returns the runs to emit for text in style s.
func (t *textTracker) feed(text string, s Style) []run {
	words := strings.FieldsFunc(text, isCollapsible)
	if len(words) == 0 {
		if text != "" {
			t.hold(s)
		}
		return nil
	}
	if isCollapsible(rune(text[0])) {
		t.hold(s)
	}

	var runs []run
	joined := strings.Join(words, " ")
	if t.pending {
		if t.pendingStyle == s {
			joined = " " + joined
		} else {
			runs = append(runs, run{text: " ", style: t.pendingStyle})
		}
		t.pending = false
	}
	runs = append(runs, run{text: joined, style: s})
	t.started = true

	if isCollapsible(rune(text[len(text)-1])) {
		t.hold(s)
	}
	return runs
}

// flush returns the deferred space, if any, before non-text inline content
// such as a marker, and marks the block as started.
func (t *textTracker) flush() (run, bool) {
	t.started = true
	if !t.pending {
		return run{}, false
	}
	t.pending = false
	return run{text: " ", style: t.pendingStyle}, true
}

// collapse applies whitespace collapsing to a standalone string.
func collapse(s string) string {
	return strings.Join(strings.FieldsFunc(s, isCollapsible), " ")
}
