package ui

import (
	"io"
	"os"
	"runtime"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/term"
)

// Capabilities is what the UI output can render.
type Capabilities struct {
	// Interactive is set for a terminal, where the activity spinner
	// redraws its line in place.
	Interactive bool

	// Unicode is set when status symbols and the braille spinner render.
	Unicode bool
}

// DetectCapabilities probes w. Only an *os.File attached to a terminal is
// interactive; legacy Windows consoles lack the glyph fonts, so Unicode
// there needs Windows Terminal (WT_SESSION).
func DetectCapabilities(w io.Writer, getenv func(string) string) Capabilities {
	f, ok := w.(*os.File)
	if !ok || getenv("TERM") == "dumb" || !term.IsTerminal(int(f.Fd())) {
		return Capabilities{}
	}
	return Capabilities{
		Interactive: true,
		Unicode:     runtime.GOOS != "windows" || getenv("WT_SESSION") != "",
	}
}

// Terminal returns the capabilities of the current UI output. They are
// probed once per SetOutput.
func Terminal() Capabilities {
	uiMu.Lock()
	defer uiMu.Unlock()
	if !capsKnown {
		caps = DetectCapabilities(out, os.Getenv)
		capsKnown = true
	}
	return caps
}

// DefaultSpinner returns the braille spinner where it renders and the
// ASCII line spinner otherwise.
func DefaultSpinner() Spinner {
	if Terminal().Unicode {
		return Spinners[SpinnerDots]
	}
	return Spinners[SpinnerLine]
}

// Symbol is a status glyph with an ASCII fallback.
type Symbol int

const (
	SymbolPass Symbol = iota
	SymbolFail
	SymbolWarn
)

var symbols = [...]struct{ glyph, ascii string }{
	SymbolPass: {"✔", "[+]"},
	SymbolFail: {"✘", "[X]"},
	SymbolWarn: {"⚠", "[!]"},
}

// Icon returns the form of s the output can render.
func Icon(s Symbol) string {
	if Terminal().Unicode {
		return symbols[s].glyph
	}
	return symbols[s].ascii
}

// Clean makes report-supplied text (titles, client names, paths, lint
// messages) safe to print on one line. Control characters are dropped,
// which keeps escape sequences in a data file from reaching the terminal,
// and line breaks become spaces.
func Clean(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

// fitGlyphs drops runes outside Latin scripts when the output cannot
// render them. Accented letters in report titles survive; symbols and
// variation selectors do not.
func fitGlyphs(s string) string {
	if Terminal().Unicode || isASCII(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r <= 0xFF || unicode.Is(unicode.Latin, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
