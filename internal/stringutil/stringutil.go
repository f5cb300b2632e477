// Package stringutil provides display helpers for shortened text.
package stringutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended by Ellipsize.
const Ellipsis = "…"

// Len returns the length of s in code points. Invalid UTF-8 bytes count
// one each.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Width returns the terminal cell width of s. Wide runes (CJK, most
// emoji) take two cells.
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// Ellipsize shortens s to at most width terminal cells, ending with an
// ellipsis when anything was cut. width < 2 returns s unchanged.
func Ellipsize(s string, width int) string {
	if width < 2 {
		return s
	}
	if Width(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, Ellipsis)
}

// Visible replaces control characters with visible stand-ins so a
// trailing newline or tab shows up in a one-line display.
func Visible(s string) string {
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString("⏎")
		case r == '\t':
			b.WriteString("⇥")
		case r == '\r':
			b.WriteString("␍")
		case unicode.IsControl(r):
			b.WriteString("�")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
