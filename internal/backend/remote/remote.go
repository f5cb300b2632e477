// Package remote provides an Engine backed by a char-golfd server.
// It wraps apiclient.Client to implement backend.Engine.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/JoobyPM/char-golf/internal/apiclient"
	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

// Backend implements backend.Engine over HTTP.
type Backend struct {
	client *apiclient.Client
	engine string
}

var _ backend.Engine = (*Backend)(nil)

// New creates a remote engine for the given server URL and engine name.
func New(serverURL, engine string) *Backend {
	return NewFromClient(apiclient.New(serverURL), engine)
}

// NewFromClient creates a remote engine from an existing client.
func NewFromClient(client *apiclient.Client, engine string) *Backend {
	if engine == "" {
		engine = backend.EngineTruncate
	}
	return &Backend{client: client, engine: engine}
}

// Name returns the engine name the server is asked to use.
func (b *Backend) Name() string {
	return b.engine
}

// Shorten implements backend.Engine. Invalid modes fail locally before any
// request is made.
func (b *Backend) Shorten(ctx context.Context, input string, mode shorten.Mode) (backend.Result, error) {
	if !mode.Valid() {
		return backend.Result{}, &shorten.InvalidModeError{Mode: mode}
	}

	resp, err := b.client.Shorten(ctx, apiclient.ShortenRequest{
		Input:  input,
		Mode:   mode.String(),
		Engine: b.engine,
	})
	if err != nil {
		return backend.Result{}, mapError(err)
	}

	return backend.Result{
		Input:        resp.Input,
		Output:       resp.Output,
		InputLength:  resp.InputLength,
		OutputLength: resp.OutputLength,
		Mode:         resp.Mode,
		Engine:       resp.Engine,
		Cached:       resp.Cached,
	}, nil
}

// mapError translates client errors into backend errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, apiclient.ErrBadRequest) {
		return fmt.Errorf("%w: %w", backend.ErrInvalidRequest, err)
	}
	if errors.Is(err, apiclient.ErrUnavailable) {
		return fmt.Errorf("%w: %w", backend.ErrBackendOffline, err)
	}

	// *url.Error from a failed Do satisfies net.Error.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", backend.ErrBackendOffline, err)
	}

	return err
}
