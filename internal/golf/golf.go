// Package golf shortens text by replacing letter runs with the single
// Unicode compatibility character that decomposes to them, so "ffi"
// becomes "ﬃ" and "no" becomes "№".
//
// The lookup tables are derived from NFKD decompositions of the whole
// code space. They are built once, on first use or on Warm, and are
// read-only afterwards.
package golf

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/JoobyPM/char-golf/internal/shorten"
)

// Engine owns the composition tables.
type Engine struct {
	once      sync.Once
	ready     atomic.Bool
	buildTime time.Duration

	plain   *table // lower-cased keys, punctuation significant
	depunct *table // lower-cased keys, '.', ',' and '/' optional
	exact   *table // case-sensitive keys
}

var defaultEngine = &Engine{}

// Default returns the process-wide engine.
func Default() *Engine {
	return defaultEngine
}

// Warm builds the tables if they are not built yet. It blocks until they
// are ready.
func (e *Engine) Warm() {
	e.once.Do(func() {
		start := time.Now()

		folded, exact := buildEntries()
		depunct := make(map[string]rune, len(folded))
		for k, r := range folded {
			depunct[k] = r
		}
		depunctuate(depunct)

		e.plain = newTable(folded, true)
		e.depunct = newTable(depunct, true)
		e.exact = newTable(exact, false)

		e.buildTime = time.Since(start)
		e.ready.Store(true)
	})
}

// Ready reports whether Warm has completed.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// BuildTime is how long table construction took. Zero before Ready.
func (e *Engine) BuildTime() time.Duration {
	if !e.Ready() {
		return 0
	}
	return e.buildTime
}

// Size returns the number of entries in the table used for mode.
func (e *Engine) Size(mode shorten.Mode) int {
	t, err := e.table(mode)
	if err != nil {
		return 0
	}
	return len(t.entries)
}

// Shorten rewrites input using compositions. Plain only uses a
// composition when its whole text, punctuation included, is in the input.
// WithPunctuation also lets the '.', ',' and '/' inside a composition be
// left out, so "co" may become "㏇". Matching is case-insensitive.
func (e *Engine) Shorten(input string, mode shorten.Mode) (string, error) {
	t, err := e.table(mode)
	if err != nil {
		return "", err
	}
	return t.shorten(input), nil
}

// ShortenMatchCase only uses compositions whose case matches the input,
// so "No" may become "№" but "no" stays.
func (e *Engine) ShortenMatchCase(input string) string {
	e.Warm()
	return e.exact.shorten(input)
}

func (e *Engine) table(mode shorten.Mode) (*table, error) {
	switch mode {
	case shorten.Plain:
		e.Warm()
		return e.plain, nil
	case shorten.WithPunctuation:
		e.Warm()
		return e.depunct, nil
	default:
		return nil, &shorten.InvalidModeError{Mode: mode}
	}
}

// Warm builds the default engine's tables.
func Warm() {
	defaultEngine.Warm()
}

// Ready reports whether the default engine's tables are built.
func Ready() bool {
	return defaultEngine.Ready()
}

// Shorten shortens input with the default engine.
func Shorten(input string, mode shorten.Mode) (string, error) {
	return defaultEngine.Shorten(input, mode)
}

// ShortenMatchCase shortens input with the default engine, keeping case.
func ShortenMatchCase(input string) string {
	return defaultEngine.ShortenMatchCase(input)
}
