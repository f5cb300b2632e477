// Package apiclient provides an HTTP client for the char-golf API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is an HTTP client for the char-golf API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// ShortenRequest is the request body for POST /api/v1/shorten.
type ShortenRequest struct {
	Input  string `json:"input"`
	Mode   string `json:"mode,omitempty"`
	Engine string `json:"engine,omitempty"`
}

// ShortenResponse is a shortening result as returned by the server.
type ShortenResponse struct {
	Input        string `json:"input"`
	Output       string `json:"output"`
	InputLength  int    `json:"input_length"`
	OutputLength int    `json:"output_length"`
	Mode         string `json:"mode"`
	Engine       string `json:"engine"`
	Cached       bool   `json:"cached"`
}

// ModesResponse describes what the server supports.
type ModesResponse struct {
	Modes     []string `json:"modes"`
	Engines   []string `json:"engines"`
	Budget    int      `json:"budget"`
	MinLength int      `json:"min_length"`
	Default   struct {
		Mode   string `json:"mode"`
		Engine string `json:"engine"`
	} `json:"default"`
}

// Errors.
var (
	// ErrBadRequest is returned when the server rejects the request (HTTP 400).
	ErrBadRequest = errors.New("bad request")
	// ErrUnavailable is returned when the server is not ready (HTTP 503).
	ErrUnavailable = errors.New("service unavailable")
)

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Shorten asks the server to shorten req.Input.
func (c *Client) Shorten(ctx context.Context, req ShortenRequest) (*ShortenResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/shorten", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.ContentLength = int64(len(body))

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("shorten", resp)
	}

	var out ShortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Modes returns the modes and engines the server supports.
func (c *Client) Modes(ctx context.Context) (*ModesResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/modes", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("modes", resp)
	}

	var out ModesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Health checks the server's readiness endpoint. healthURL may point at a
// separate health listener; empty means BaseURL.
func (c *Client) Health(ctx context.Context, healthURL string) error {
	base := c.BaseURL
	if healthURL != "" {
		base = strings.TrimRight(healthURL, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/readyz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError("health", resp)
	}
	return nil
}

// statusError builds an error from a non-200 response, keeping the
// server's {"error": "..."} message when present.
func statusError(op string, resp *http.Response) error {
	msg := resp.Status
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%s failed: %w: %s", op, ErrBadRequest, msg)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%s failed: %w: %s", op, ErrUnavailable, msg)
	default:
		return fmt.Errorf("%s failed: %s", op, msg)
	}
}
