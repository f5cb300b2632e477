// Package local provides the in-process engines.
package local

import (
	"context"
	"fmt"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/config"
	"github.com/JoobyPM/char-golf/internal/golf"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

// Truncate cuts input to the shortener's budget.
type Truncate struct {
	Shortener shorten.Shortener
}

// Golf rewrites input with Unicode compositions.
type Golf struct {
	Engine    *golf.Engine
	MatchCase bool
}

// Ensure both implement Engine at compile time.
var (
	_ backend.Engine = Truncate{}
	_ backend.Engine = (*Golf)(nil)
)

// New creates the engine named by cfg.Engine.
func New(cfg config.ShortenConfig) (backend.Engine, error) {
	switch cfg.Engine {
	case backend.EngineTruncate, "":
		return Truncate{Shortener: shorten.New(cfg.Budget, cfg.MinLength)}, nil
	case backend.EngineGolf:
		return &Golf{Engine: golf.Default(), MatchCase: cfg.MatchCase}, nil
	default:
		return nil, fmt.Errorf("%w: %q", backend.ErrUnknownEngine, cfg.Engine)
	}
}

// Name returns the engine name.
func (Truncate) Name() string {
	return backend.EngineTruncate
}

// Shorten implements backend.Engine.
func (t Truncate) Shorten(_ context.Context, input string, mode shorten.Mode) (backend.Result, error) {
	out, err := t.Shortener.Shorten(input, mode)
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(backend.EngineTruncate, mode, input, out), nil
}

// Name returns the engine name.
func (*Golf) Name() string {
	return backend.EngineGolf
}

// Shorten implements backend.Engine. With MatchCase set the mode is still
// validated, but only the case-preserving table is used.
func (g *Golf) Shorten(_ context.Context, input string, mode shorten.Mode) (backend.Result, error) {
	e := g.Engine
	if e == nil {
		e = golf.Default()
	}
	if g.MatchCase {
		if !mode.Valid() {
			return backend.Result{}, &shorten.InvalidModeError{Mode: mode}
		}
		return backend.NewResult(backend.EngineGolf, mode, input, e.ShortenMatchCase(input)), nil
	}
	out, err := e.Shorten(input, mode)
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(backend.EngineGolf, mode, input, out), nil
}
