// Package strutil provides the string hygiene helpers shared by every
// output format.
package strutil

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns s cut to maxLen runes. If truncated, a "..." suffix
// is appended (included in maxLen). Returns s unchanged if
// utf8.RuneCountInString(s) <= maxLen.
// Safe for maxLen <= 0 (returns empty string).
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runeCount := utf8.RuneCountInString(s)
	if runeCount <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string([]rune(s)[:maxLen])
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}

// IsXMLChar reports whether r is allowed by the XML 1.0 Char production:
// TAB, LF, CR, U+0020-U+D7FF, U+E000-U+FFFD and U+10000-U+10FFFF.
func IsXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// XMLSafe drops every code point an XML document cannot carry, including
// invalid UTF-8 sequences. Strings that are already clean are returned
// without allocating.
func XMLSafe(s string) string {
	clean := true
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				clean = false
				break
			}
		}
		if !IsXMLChar(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		if IsXMLChar(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formulaTriggers are the leading characters a spreadsheet may interpret
// as the start of a formula or a DDE payload.
const formulaTriggers = "=+-@\t\r{"

// SanitizeFormula prefixes s with a single quote when its first character
// would make a spreadsheet evaluate it.
func SanitizeFormula(s string) string {
	if s == "" {
		return s
	}
	if strings.IndexByte(formulaTriggers, s[0]) >= 0 {
		return "'" + s
	}
	return s
}
