// Package shorten cuts strings down to a fixed code-point budget.
//
// Shortening is pure: no I/O, no shared mutable state, safe for concurrent
// use. The only failure is an out-of-range Mode.
package shorten

import (
	"unicode"
	"unicode/utf8"
)

// Default values for a Shortener.
const (
	DefaultBudget    = 10
	DefaultMinLength = 1
)

// Shortener holds the budget parameters. The zero value is not useful;
// use New or Default.
type Shortener struct {
	// Budget is the maximum output length in code points.
	Budget int
	// MinLength is the shortest result WithPunctuation may strip down to.
	MinLength int
}

// Default is the shortener used by the package-level Shorten.
var Default = Shortener{Budget: DefaultBudget, MinLength: DefaultMinLength}

// New returns a Shortener with out-of-range values normalized:
// budget < 1 falls back to DefaultBudget, minLength < 0 becomes 0.
func New(budget, minLength int) Shortener {
	if budget < 1 {
		budget = DefaultBudget
	}
	if minLength < 0 {
		minLength = 0
	}
	return Shortener{Budget: budget, MinLength: minLength}
}

// Shorten shortens input with the Default shortener.
func Shorten(input string, mode Mode) (string, error) {
	return Default.Shorten(input, mode)
}

// MustShorten is Shorten for callers that only pass constant modes.
// It panics on an invalid mode.
func MustShorten(input string, mode Mode) string {
	out, err := Shorten(input, mode)
	if err != nil {
		panic(err)
	}
	return out
}

// Shorten returns the longest prefix of input that fits the budget.
// In WithPunctuation mode a trailing run of non-alphanumeric runes is
// then removed, unless that would leave fewer than MinLength runes.
// The result is always a prefix of input.
func (s Shortener) Shorten(input string, mode Mode) (string, error) {
	if !mode.Valid() {
		return "", &InvalidModeError{Mode: mode}
	}

	budget := s.Budget
	if budget < 1 {
		budget = DefaultBudget
	}
	if utf8.RuneCountInString(input) <= budget {
		return input, nil
	}

	prefix := input[:byteOffset(input, budget)]
	if mode == Plain {
		return prefix, nil
	}

	stripped := trimTrailing(prefix, strippable)
	if utf8.RuneCountInString(stripped) < s.MinLength {
		return prefix, nil
	}
	return stripped, nil
}

// byteOffset returns the byte index just past the first n runes of s.
// Invalid UTF-8 bytes count as one rune each, matching RuneCountInString.
func byteOffset(s string, n int) int {
	i := 0
	for count := 0; count < n && i < len(s); count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

// trimTrailing removes the maximal trailing run of runes matching pred.
func trimTrailing(s string, pred func(rune) bool) string {
	end := len(s)
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:end])
		if !pred(r) {
			break
		}
		end -= size
	}
	return s[:end]
}

// strippable reports whether r may be dropped from the end of a cut.
// Letters and numbers in any script are kept; everything else goes.
func strippable(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
