package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/backend/local"
	"github.com/JoobyPM/char-golf/internal/backend/mock"
	"github.com/JoobyPM/char-golf/internal/cache"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return &Server{
		Engines: map[string]backend.Engine{
			backend.EngineTruncate: local.Truncate{Shortener: shorten.Default},
			backend.EngineGolf:     mock.New(backend.EngineGolf),
		},
		DefaultEngine: backend.EngineTruncate,
		DefaultMode:   shorten.Plain,
		Budget:        shorten.DefaultBudget,
		MinLength:     shorten.DefaultMinLength,
		MaxBodyBytes:  1 << 10,
		Logger:        zap.NewNop(),
		Metrics:       NewMetrics(),
	}
}

func decodeResult(t *testing.T, body io.Reader) backend.Result {
	t.Helper()
	var res backend.Result
	require.NoError(t, json.NewDecoder(body).Decode(&res))
	return res
}

func decodeError(t *testing.T, body io.Reader) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out.Error
}

func scrape(t *testing.T, s *Server) string {
	t.Helper()
	rec := httptest.NewRecorder()
	s.HealthRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestShorten_Post(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		output string
		mode   string
	}{
		{"default mode", `{"input":"hello, world!"}`, "hello, wor", "plain"},
		{"plain", `{"input":"greetings, friend","mode":"plain"}`, "greetings,", "plain"},
		{"punctuation", `{"input":"greetings, friend","mode":"punctuation"}`, "greetings", "punctuation"},
		{"fits budget", `{"input":"hi!","mode":"punctuation"}`, "hi!", "punctuation"},
		{"empty", `{"input":"","mode":"plain"}`, "", "plain"},
		{"all punctuation", `{"input":"!!!!!!!!!!!!!!!","mode":"punctuation"}`, "!!!!!!!!!!", "punctuation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", strings.NewReader(tt.body))

			s.Routes().ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			res := decodeResult(t, rec.Body)
			assert.Equal(t, tt.output, res.Output)
			assert.Equal(t, tt.mode, res.Mode)
			assert.Equal(t, backend.EngineTruncate, res.Engine)
		})
	}
}

func TestShorten_Get(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shorten?input=caf%C3%A9+au+lait+s%27il&mode=punctuation", nil)

	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeResult(t, rec.Body)
	assert.Equal(t, "café au la", res.Output)
	assert.Equal(t, 17, res.InputLength)
	assert.Equal(t, 10, res.OutputLength)
}

func TestShorten_SelectsEngine(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	golf, ok := s.Engines[backend.EngineGolf].(*mock.Engine)
	require.True(t, ok)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten",
		strings.NewReader(`{"input":"abc","engine":"GOLF","mode":"punct"}`))
	s.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, backend.EngineGolf, decodeResult(t, rec.Body).Engine)
	require.Equal(t, 1, golf.CallCount())
	assert.Equal(t, shorten.WithPunctuation, golf.Calls[0].Mode)
}

func TestShorten_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		errMsg string
	}{
		{"invalid mode", http.MethodPost, "/api/v1/shorten", `{"input":"x","mode":"shouting"}`, http.StatusBadRequest, "invalid shorten mode"},
		{"invalid mode empty input", http.MethodGet, "/api/v1/shorten?input=&mode=7", "", http.StatusBadRequest, "invalid shorten mode"},
		{"unknown engine", http.MethodPost, "/api/v1/shorten", `{"input":"x","engine":"zip"}`, http.StatusBadRequest, "unknown engine"},
		{"bad json", http.MethodPost, "/api/v1/shorten", `{"input":`, http.StatusBadRequest, "bad json"},
		{"body too large", http.MethodPost, "/api/v1/shorten", `{"input":"` + strings.Repeat("a", 2048) + `"}`, http.StatusRequestEntityTooLarge, "body exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t)
			rec := httptest.NewRecorder()
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			s.Routes().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, body))

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeError(t, rec.Body), tt.errMsg)
		})
	}
}

func TestShorten_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/shorten", "/api/v1/modes"} {
		rec := httptest.NewRecorder()
		s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}

func TestShorten_EngineFailure(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	failing := mock.New(backend.EngineGolf)
	failing.ShortenFunc = func(context.Context, string, shorten.Mode) (backend.Result, error) {
		return backend.Result{}, errors.New("tables exploded")
	}
	s.Engines[backend.EngineGolf] = failing

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", strings.NewReader(`{"input":"x","engine":"golf"}`))
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// Internal details stay in the log.
	assert.Equal(t, "shorten failed", decodeError(t, rec.Body))
}

func TestShorten_PanicRecovered(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	core, logs := observer.New(zap.ErrorLevel)
	s.Logger = zap.New(core)
	boom := mock.New(backend.EngineGolf)
	boom.ShortenFunc = func(context.Context, string, shorten.Mode) (backend.Result, error) {
		panic("boom")
	}
	s.Engines[backend.EngineGolf] = boom

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/shorten?input=x&engine=golf", nil)
	s.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("handler panic").Len())
}

func TestModes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/modes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Modes     []string `json:"modes"`
		Engines   []string `json:"engines"`
		Budget    int      `json:"budget"`
		MinLength int      `json:"min_length"`
		Default   struct {
			Mode   string `json:"mode"`
			Engine string `json:"engine"`
		} `json:"default"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, []string{"plain", "punctuation"}, out.Modes)
	assert.Equal(t, []string{"truncate", "golf"}, out.Engines)
	assert.Equal(t, 10, out.Budget)
	assert.Equal(t, 1, out.MinLength)
	assert.Equal(t, "plain", out.Default.Mode)
	assert.Equal(t, "truncate", out.Default.Engine)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ready := false
	s.Ready = func() bool { return ready }
	h := s.HealthRoutes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"golf_tables":true`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	c := cache.New(t.TempDir(), time.Hour)
	s.Engines[backend.EngineTruncate] = cache.Wrap(s.Engines[backend.EngineTruncate], c, "10/1")
	routes := s.Routes()

	for range 2 {
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shorten",
			strings.NewReader(`{"input":"hello, world!","mode":"plain"}`)))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/shorten",
		strings.NewReader(`{"input":"x","mode":"loud"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	out := scrape(t, s)
	assert.Contains(t, out, `golf_shorten_requests_total{engine="truncate",mode="plain",outcome="ok"} 2`)
	assert.Contains(t, out, `golf_shorten_requests_total{engine="truncate",mode="invalid",outcome="invalid_mode"} 1`)
	assert.Contains(t, out, `golf_cache_hits_total 1`)
	assert.Contains(t, out, `golf_runes_saved_sum{engine="truncate"} 6`)
	assert.Contains(t, out, `golf_http_requests_total{path="/api/v1/shorten",status="200"} 2`)
}

func TestMetrics_UnknownPathsShareOneSeries(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	routes := s.Routes()

	for i := range 50 {
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/junk/%d", i), nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/modes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	out := scrape(t, s)
	assert.NotContains(t, out, "/junk/")
	assert.Contains(t, out, `golf_http_requests_total{path="other",status="404"} 50`)
	assert.Contains(t, out, `golf_http_requests_total{path="/api/v1/modes",status="200"} 1`)
	assert.Equal(t, 1, strings.Count(out, `golf_http_response_time_seconds_count{path="other"}`))
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.InfoLevel)
	s := newTestServer(t)
	s.Logger = zap.New(core)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shorten?input=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/shorten", fields["path"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}
