package golf

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// banned runes never appear in a table. U+1F14D (SQUARED SA) decomposes
// to "SA" but renders as a pictograph on most systems.
var banned = map[rune]bool{
	'\U0001F14D': true,
}

// droppable is the punctuation the depunctuated table may ignore, in the
// order entries are derived: "c/o" loses to "co." when both collapse to "co".
var droppable = []rune{'.', ',', '/'}

// table maps a run of runes to the single rune that decomposes to it.
type table struct {
	entries  map[string]rune
	prefixes map[string]struct{}
	fold     bool
	maxLen   int
}

// buildEntries collects every rune whose compatibility decomposition is
// longer than one code point. folded has lower-cased keys, exact keeps
// the decomposition as is. When two runes share a key the lower rune wins.
func buildEntries() (folded, exact map[string]rune) {
	folded = make(map[string]rune, 4096)
	exact = make(map[string]rune, 4096)
	for r := rune(0x80); r <= unicode.MaxRune; r++ {
		if !utf8.ValidRune(r) || banned[r] {
			continue
		}
		s := string(r)
		if norm.NFKD.IsNormalString(s) {
			continue
		}
		long := norm.NFKD.String(s)
		addEntry(exact, long, r)
		addEntry(folded, strings.ToLower(long), r)
	}
	return folded, exact
}

func addEntry(entries map[string]rune, long string, r rune) {
	if utf8.RuneCountInString(long) == 1 {
		return
	}
	if _, ok := entries[long]; !ok {
		entries[long] = r
	}
}

// depunctuate adds keys with the droppable punctuation removed, so that
// "co" can use the rune for "c/o". Keys starting with a digit are left
// alone; "1.5" must not become "15".
func depunctuate(entries map[string]rune) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	maxKey := ""
	if len(keys) > 0 {
		maxKey = keys[len(keys)-1]
	}

	added := make(map[string]rune)
	for _, p := range droppable {
		for _, k := range keys {
			first, _ := utf8.DecodeRuneInString(k)
			if isASCIIDigit(first) || !strings.ContainsRune(k, p) {
				continue
			}
			stripped := strings.Map(func(r rune) rune {
				if isDroppable(r) {
					return -1
				}
				return r
			}, k)
			if len(stripped) < len(k) {
				if _, ok := added[stripped]; !ok {
					added[stripped] = entries[k]
				}
			}
		}
	}

	for k, r := range added {
		if k > maxKey {
			continue
		}
		if cur, ok := entries[k]; !ok || r < cur {
			entries[k] = r
		}
	}
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isDroppable(r rune) bool {
	for _, p := range droppable {
		if r == p {
			return true
		}
	}
	return false
}

func newTable(entries map[string]rune, fold bool) *table {
	t := &table{
		entries:  entries,
		prefixes: make(map[string]struct{}, len(entries)*2),
		fold:     fold,
	}
	for k := range entries {
		runes := []rune(k)
		if len(runes) > t.maxLen {
			t.maxLen = len(runes)
		}
		for i := 1; i <= len(runes); i++ {
			t.prefixes[string(runes[:i])] = struct{}{}
		}
	}
	return t
}

// shorten rewrites input with the fewest runes the table allows.
// Runs are matched case-insensitively when the table is folded.
// On ties the earlier, shorter choice wins, so unmatched text is kept
// verbatim whenever a composition would not save anything.
func (t *table) shorten(input string) string {
	src := []rune(input)
	n := len(src)
	if n == 0 {
		return input
	}

	key := src
	if t.fold {
		key = make([]rune, n)
		for i, r := range src {
			key[i] = unicode.ToLower(r)
		}
	}

	cost := make([]int, n+1)
	next := make([]int, n)
	emit := make([]rune, n)
	for i := n - 1; i >= 0; i-- {
		cost[i] = 1 + cost[i+1]
		next[i] = i + 1
		emit[i] = -1

		for j := i + 1; j <= n && j-i <= t.maxLen; j++ {
			run := string(key[i:j])
			if _, ok := t.prefixes[run]; !ok {
				break
			}
			if j-i < 2 {
				continue
			}
			if r, ok := t.entries[run]; ok && 1+cost[j] < cost[i] {
				cost[i] = 1 + cost[j]
				next[i] = j
				emit[i] = r
			}
		}
	}

	if cost[0] == n {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	for i := 0; i < n; i = next[i] {
		if emit[i] >= 0 {
			b.WriteRune(emit[i])
		} else {
			b.WriteRune(src[i])
		}
	}
	return b.String()
}
