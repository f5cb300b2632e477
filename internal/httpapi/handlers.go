package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

// Server holds the application state and provides HTTP handlers.
type Server struct {
	// Engines by name. Requests naming an engine not in the map get 400.
	Engines       map[string]backend.Engine
	DefaultEngine string
	DefaultMode   shorten.Mode

	// Budget and MinLength are reported by /api/v1/modes.
	Budget    int
	MinLength int

	MaxBodyBytes int64

	// Ready reports whether the golf tables are built. Nil means ready.
	Ready func() bool

	Logger  *zap.Logger
	Metrics *Metrics
}

// shortenRequest is the POST /api/v1/shorten body.
type shortenRequest struct {
	Input  string `json:"input"`
	Mode   string `json:"mode"`
	Engine string `json:"engine"`
}

// Routes returns the API handler with middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/shorten", s.handleShorten)
	mux.HandleFunc("/api/v1/modes", s.handleModes)

	var h http.Handler = mux
	h = LimitBody(s.MaxBodyBytes, h)
	h = s.Metrics.Instrument(h)
	h = RequestLogger(s.Logger, h)
	h = Recover(s.Logger, h)
	return h
}

// HealthRoutes returns the liveness, readiness and metrics routes.
func (s *Server) HealthRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	if s.Metrics != nil {
		mux.Handle("/metrics", s.Metrics.Handler())
	}
	return mux
}

// handleHealthz returns basic liveness status.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReadyz reports 503 until the golf tables are warm.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ready := s.Ready == nil || s.Ready()
	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":      "warming",
			"golf_tables": false,
			"error":       "golf tables not built yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"golf_tables": true,
	})
}

// handleModes lists modes and engines with the active defaults.
func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	modes := make([]string, 0, len(shorten.Modes()))
	for _, m := range shorten.Modes() {
		modes = append(modes, m.String())
	}
	engines := make([]string, 0, len(s.Engines))
	for _, name := range backend.Engines() {
		if _, ok := s.Engines[name]; ok {
			engines = append(engines, name)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"modes":      modes,
		"engines":    engines,
		"budget":     s.Budget,
		"min_length": s.MinLength,
		"default": map[string]string{
			"mode":   s.DefaultMode.String(),
			"engine": s.DefaultEngine,
		},
	})
}

// handleShorten accepts a JSON body on POST or query parameters on GET.
func (s *Server) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req = shortenRequest{Input: q.Get("input"), Mode: q.Get("mode"), Engine: q.Get("engine")}

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", maxErr.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, "bad body")
			return
		}
		if unmarshalErr := json.Unmarshal(body, &req); unmarshalErr != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	engineName := strings.ToLower(strings.TrimSpace(req.Engine))
	if engineName == "" {
		engineName = s.DefaultEngine
	}
	engine, ok := s.Engines[engineName]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %q", backend.ErrUnknownEngine, req.Engine))
		return
	}

	mode := s.DefaultMode
	if strings.TrimSpace(req.Mode) != "" {
		parsed, err := shorten.ParseMode(req.Mode)
		if err != nil {
			s.Metrics.observeShorten(engineName, "invalid", outcomeInvalidMode, 0, false)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = parsed
	}

	res, err := engine.Shorten(r.Context(), req.Input, mode)
	switch {
	case err == nil:
	case errors.Is(err, shorten.ErrInvalidMode):
		s.Metrics.observeShorten(engineName, "invalid", outcomeInvalidMode, 0, false)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		s.Metrics.observeShorten(engineName, mode.String(), outcomeError, 0, false)
		if s.Logger != nil {
			s.Logger.Error("shorten failed", zap.String("engine", engineName), zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "shorten failed")
		return
	}

	s.Metrics.observeShorten(engineName, mode.String(), outcomeOK, res.Saved(), res.Cached)
	writeJSON(w, http.StatusOK, res)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errchkjson // response writer errors handled by server
	json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
