// Package mock provides a mock implementation of backend.Engine for testing.
package mock

import (
	"context"
	"sync"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

// Engine is a mock backend.Engine. By default it truncates with the
// default shortener; set ShortenFunc to inject results or errors.
type Engine struct {
	mu   sync.Mutex
	name string

	ShortenFunc func(ctx context.Context, input string, mode shorten.Mode) (backend.Result, error)

	// Calls records every Shorten call, for assertions in tests.
	Calls []Call
}

// Call records a Shorten call.
type Call struct {
	Input string
	Mode  shorten.Mode
}

var _ backend.Engine = (*Engine)(nil)

// New creates a mock engine reporting the given name.
func New(name string) *Engine {
	if name == "" {
		name = backend.EngineTruncate
	}
	return &Engine{name: name}
}

// Name returns the configured engine name.
func (e *Engine) Name() string {
	return e.name
}

// Shorten records the call and delegates to ShortenFunc if set.
func (e *Engine) Shorten(ctx context.Context, input string, mode shorten.Mode) (backend.Result, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, Call{Input: input, Mode: mode})
	fn := e.ShortenFunc
	e.mu.Unlock()

	if fn != nil {
		return fn(ctx, input, mode)
	}
	out, err := shorten.Shorten(input, mode)
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(e.name, mode, input, out), nil
}

// CallCount returns the number of Shorten calls so far.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

