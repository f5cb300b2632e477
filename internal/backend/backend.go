// Package backend defines the Engine interface shared by local and remote
// shortening. The CLI, TUI and HTTP API all shorten through an Engine, so
// they behave the same whether the work happens in-process or on a daemon.
package backend

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/JoobyPM/char-golf/internal/shorten"
)

// Engine names.
const (
	EngineTruncate = "truncate"
	EngineGolf     = "golf"
)

// Result is one shortening outcome with the code-point counts a display
// needs.
type Result struct {
	Input        string `json:"input" yaml:"input"`
	Output       string `json:"output" yaml:"output"`
	InputLength  int    `json:"input_length" yaml:"input_length"`
	OutputLength int    `json:"output_length" yaml:"output_length"`
	Mode         string `json:"mode" yaml:"mode"`
	Engine       string `json:"engine" yaml:"engine"`
	// Cached is set when the result came from a result cache.
	Cached bool `json:"cached" yaml:"cached,omitempty"`
}

// Saved is the number of code points removed.
func (r Result) Saved() int {
	return r.InputLength - r.OutputLength
}

// NewResult fills in the counts for an input/output pair.
func NewResult(engine string, mode shorten.Mode, input, output string) Result {
	return Result{
		Input:        input,
		Output:       output,
		InputLength:  utf8.RuneCountInString(input),
		OutputLength: utf8.RuneCountInString(output),
		Mode:         mode.String(),
		Engine:       engine,
	}
}

// Engine shortens strings. Local engines ignore ctx.
type Engine interface {
	Shorten(ctx context.Context, input string, mode shorten.Mode) (Result, error)
	// Name returns "truncate" or "golf".
	Name() string
}

// Errors shared by all engines.
var (
	// ErrUnknownEngine is returned for an engine name that is not known.
	ErrUnknownEngine = errors.New("unknown engine")

	// ErrBackendOffline is returned when a remote engine is unreachable.
	ErrBackendOffline = errors.New("backend not reachable")

	// ErrInvalidRequest is returned when the request is malformed.
	ErrInvalidRequest = errors.New("invalid request")
)

// Engines lists the known engine names.
func Engines() []string {
	return []string{EngineTruncate, EngineGolf}
}

// IsRetryable returns true if the error is potentially transient.
// An invalid mode is a contract error and never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackendOffline)
}
