// Package cache memoizes shortening results.
// This is NOT a source of truth - results are recomputable; the cache only
// saves repeated golf lookups on the daemon.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

// File names and defaults.
const (
	ResultsFile = "results.json"
	MetaFile    = "meta.json"
	DefaultTTL  = 1 * time.Hour
)

// Entry is one cached output in the results.json snapshot.
type Entry struct {
	Key     string    `json:"key"`
	Output  string    `json:"output"`
	Expires time.Time `json:"expires,omitempty"`
}

// Snapshot is the results.json structure.
type Snapshot struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// Meta is the meta.json structure.
type Meta struct {
	Version    string    `json:"version"`
	SavedAt    time.Time `json:"saved_at"`
	TTLSeconds int       `json:"ttl_seconds"`
	EntryCount int       `json:"entry_count"`
}

// Cache is a TTL cache of shortening outputs. A nil *Cache is valid and
// caches nothing.
type Cache struct {
	dir    string
	ttl    time.Duration
	store  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache that persists to dir. ttl <= 0 uses DefaultTTL.
// Does not load data yet.
func New(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		dir:   dir,
		ttl:   ttl,
		store: gocache.New(ttl, ttl*2),
	}
}

// Key derives a cache key. variant distinguishes engine settings that
// change the output for the same input, e.g. the budget.
func Key(engine, variant string, mode shorten.Mode, input string) string {
	h := sha256.New()
	for _, part := range []string{engine, variant, strconv.Itoa(int(mode)), input} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Dir returns the snapshot directory.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// Get returns a cached output.
func (c *Cache) Get(key string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.store.Get(key)
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return s, true
}

// Set stores an output with the default TTL.
func (c *Cache) Set(key, output string) {
	if c == nil {
		return
	}
	c.store.Set(key, output, gocache.DefaultExpiration)
}

// Len returns the number of entries, including expired ones not yet
// cleaned up.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.store.ItemCount()
}

// Flush removes all entries.
func (c *Cache) Flush() {
	if c == nil {
		return
	}
	c.store.Flush()
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Load restores a snapshot from disk, skipping expired entries.
// Returns nil if no snapshot exists (normal case).
// Returns error if the snapshot exists but is corrupt.
func (c *Cache) Load() error {
	if c == nil {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(c.dir, ResultsFile)) //nolint:gosec // Cache path from config
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read results cache: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("corrupt results cache: %w", err)
	}

	now := time.Now()
	for _, e := range snap.Entries {
		switch {
		case e.Expires.IsZero():
			c.store.Set(e.Key, e.Output, gocache.NoExpiration)
		case e.Expires.After(now):
			c.store.Set(e.Key, e.Output, e.Expires.Sub(now))
		}
	}
	return nil
}

// Save writes unexpired entries and metadata to disk.
func (c *Cache) Save() error {
	if c == nil {
		return nil
	}

	//nolint:gosec // Cache dir from config, 0755 allows other tools to read
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	items := c.store.Items()
	snap := Snapshot{Version: "1", Entries: make([]Entry, 0, len(items))}
	for k, item := range items {
		s, ok := item.Object.(string)
		if !ok {
			continue
		}
		e := Entry{Key: k, Output: s}
		if item.Expiration > 0 {
			e.Expires = time.Unix(0, item.Expiration)
		}
		snap.Entries = append(snap.Entries, e)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	//nolint:gosec // Cache file, not sensitive
	if err := os.WriteFile(filepath.Join(c.dir, ResultsFile), data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	meta := Meta{
		Version:    "1",
		SavedAt:    time.Now(),
		TTLSeconds: int(c.ttl.Seconds()),
		EntryCount: len(snap.Entries),
	}
	data, err = json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}
	//nolint:gosec // Cache file, not sensitive
	if err := os.WriteFile(filepath.Join(c.dir, MetaFile), data, 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}

	return nil
}

// Engine wraps an engine so repeated requests are served from the cache.
// Errors are never cached.
type Engine struct {
	next    backend.Engine
	cache   *Cache
	variant string
}

var _ backend.Engine = (*Engine)(nil)

// Wrap returns next with caching. A nil cache returns next unchanged.
func Wrap(next backend.Engine, c *Cache, variant string) backend.Engine {
	if c == nil {
		return next
	}
	return &Engine{next: next, cache: c, variant: variant}
}

// Name returns the wrapped engine's name.
func (e *Engine) Name() string {
	return e.next.Name()
}

// Shorten implements backend.Engine.
func (e *Engine) Shorten(ctx context.Context, input string, mode shorten.Mode) (backend.Result, error) {
	if !mode.Valid() {
		return backend.Result{}, &shorten.InvalidModeError{Mode: mode}
	}

	key := Key(e.next.Name(), e.variant, mode, input)
	if out, ok := e.cache.Get(key); ok {
		res := backend.NewResult(e.next.Name(), mode, input, out)
		res.Cached = true
		return res, nil
	}

	res, err := e.next.Shorten(ctx, input, mode)
	if err != nil {
		return backend.Result{}, err
	}
	e.cache.Set(key, res.Output)
	return res, nil
}
