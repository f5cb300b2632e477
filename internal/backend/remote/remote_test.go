package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoobyPM/char-golf/internal/apiclient"
	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

func TestBackend_Shorten(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiclient.ShortenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "golf", req.Engine)
		assert.Equal(t, "punctuation", req.Mode)

		_ = json.NewEncoder(w).Encode(apiclient.ShortenResponse{
			Input:        req.Input,
			Output:       "ﬃ",
			InputLength:  3,
			OutputLength: 1,
			Mode:         req.Mode,
			Engine:       req.Engine,
		})
	}))
	defer srv.Close()

	b := New(srv.URL, backend.EngineGolf)
	assert.Equal(t, backend.EngineGolf, b.Name())

	res, err := b.Shorten(context.Background(), "ffi", shorten.WithPunctuation)
	require.NoError(t, err)
	assert.Equal(t, "ﬃ", res.Output)
	assert.Equal(t, 2, res.Saved())
	assert.Equal(t, "golf", res.Engine)
}

func TestBackend_InvalidModeFailsLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").Shorten(context.Background(), "", shorten.Mode(9))
	require.ErrorIs(t, err, shorten.ErrInvalidMode)
	assert.False(t, called)
}

func TestBackend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantErr   error
		retryable bool
	}{
		{"400 is invalid request", http.StatusBadRequest, backend.ErrInvalidRequest, false},
		{"503 is offline", http.StatusServiceUnavailable, backend.ErrBackendOffline, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(srv.URL, "").Shorten(context.Background(), "x", shorten.Plain)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.retryable, backend.IsRetryable(err))
		})
	}
}

func TestBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, "").Shorten(context.Background(), "x", shorten.Plain)
	require.ErrorIs(t, err, backend.ErrBackendOffline)
	assert.True(t, backend.IsRetryable(err))
}

func TestMapError_Nil(t *testing.T) {
	assert.NoError(t, mapError(nil))
}
