package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoobyPM/char-golf/internal/backend"
	"github.com/JoobyPM/char-golf/internal/backend/mock"
	"github.com/JoobyPM/char-golf/internal/shorten"
)

func TestCache_Load_Empty(t *testing.T) {
	// Cache that doesn't exist should load without error
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache"), time.Hour)

	err := c.Load()
	assert.NoError(t, err, "loading non-existent cache should succeed")
	assert.Zero(t, c.Len())
}

func TestCache_GetSet(t *testing.T) {
	c := New(t.TempDir(), time.Hour)

	key := Key("truncate", "10/1", shorten.Plain, "hello, world!")
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, "hello, wor")
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "hello, wor", got)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	c.Flush()
	assert.Zero(t, c.Len())
}

func TestKey_Distinct(t *testing.T) {
	base := Key("truncate", "10/1", shorten.Plain, "abc")
	assert.Len(t, base, 64)
	assert.Equal(t, base, Key("truncate", "10/1", shorten.Plain, "abc"))
	assert.NotEqual(t, base, Key("golf", "10/1", shorten.Plain, "abc"))
	assert.NotEqual(t, base, Key("truncate", "12/1", shorten.Plain, "abc"))
	assert.NotEqual(t, base, Key("truncate", "10/1", shorten.WithPunctuation, "abc"))
	assert.NotEqual(t, base, Key("truncate", "10/1", shorten.Plain, "abd"))
	// Separators keep field boundaries apart.
	assert.NotEqual(t, Key("ab", "c", shorten.Plain, ""), Key("a", "bc", shorten.Plain, ""))
}

func TestCache_Save_Load(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := New(dir, time.Hour)

	c.Set("k1", "hello, wor")
	c.Set("k2", "greetings")
	require.NoError(t, c.Save())

	assert.FileExists(t, filepath.Join(dir, ResultsFile))
	assert.FileExists(t, filepath.Join(dir, MetaFile))

	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	require.NoError(t, err)
	var meta Meta
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, 2, meta.EntryCount)
	assert.Equal(t, 3600, meta.TTLSeconds)

	c2 := New(dir, time.Hour)
	require.NoError(t, c2.Load())
	assert.Equal(t, 2, c2.Len())
	got, ok := c2.Get("k2")
	require.True(t, ok)
	assert.Equal(t, "greetings", got)
}

func TestCache_Load_SkipsExpired(t *testing.T) {
	dir := t.TempDir()
	snap := Snapshot{Version: "1", Entries: []Entry{
		{Key: "old", Output: "x", Expires: time.Now().Add(-time.Minute)},
		{Key: "fresh", Output: "y", Expires: time.Now().Add(time.Hour)},
		{Key: "forever", Output: "z"},
	}}
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ResultsFile), data, 0o600))

	c := New(dir, time.Hour)
	require.NoError(t, c.Load())

	_, ok := c.Get("old")
	assert.False(t, ok)
	_, ok = c.Get("fresh")
	assert.True(t, ok)
	_, ok = c.Get("forever")
	assert.True(t, ok)
}

func TestCache_Load_CorruptJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ResultsFile), []byte("{invalid"), 0o600))

	c := New(dir, time.Hour)
	err := c.Load()
	require.Error(t, err, "loading corrupt cache should fail")
	assert.Contains(t, err.Error(), "corrupt results cache")
}

func TestCache_NilSafe(t *testing.T) {
	var c *Cache
	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Dir())
	assert.NoError(t, c.Load())
	assert.NoError(t, c.Save())
	c.Flush()
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New(t.TempDir(), time.Hour)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			c.Set(Key("truncate", "", shorten.Plain, string(rune('a'+n))), "v")
		}(i)
		go func(n int) {
			defer wg.Done()
			_, _ = c.Get(Key("truncate", "", shorten.Plain, string(rune('a'+n))))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, c.Len())
}

func TestWrap_ServesRepeatsFromCache(t *testing.T) {
	eng := mock.New(backend.EngineTruncate)
	c := New(t.TempDir(), time.Hour)
	wrapped := Wrap(eng, c, "10/1")
	ctx := context.Background()

	first, err := wrapped.Shorten(ctx, "greetings, friend", shorten.WithPunctuation)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "greetings", first.Output)

	second, err := wrapped.Shorten(ctx, "greetings, friend", shorten.WithPunctuation)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, first.InputLength, second.InputLength)
	assert.Equal(t, 9, second.OutputLength)

	assert.Equal(t, 1, eng.CallCount(), "second call must not reach the engine")
	assert.Equal(t, backend.EngineTruncate, wrapped.Name())
}

func TestWrap_DoesNotCacheErrors(t *testing.T) {
	eng := mock.New(backend.EngineGolf)
	eng.ShortenFunc = func(context.Context, string, shorten.Mode) (backend.Result, error) {
		return backend.Result{}, errors.New("boom")
	}
	c := New(t.TempDir(), time.Hour)
	wrapped := Wrap(eng, c, "")

	for range 2 {
		_, err := wrapped.Shorten(context.Background(), "x", shorten.Plain)
		require.Error(t, err)
	}
	assert.Equal(t, 2, eng.CallCount())
	assert.Zero(t, c.Len())
}

func TestWrap_InvalidMode(t *testing.T) {
	eng := mock.New("")
	wrapped := Wrap(eng, New(t.TempDir(), time.Hour), "")

	_, err := wrapped.Shorten(context.Background(), "", shorten.Mode(4))
	require.ErrorIs(t, err, shorten.ErrInvalidMode)
	assert.Zero(t, eng.CallCount())
}

func TestWrap_NilCache(t *testing.T) {
	eng := mock.New("")
	assert.Same(t, backend.Engine(eng), Wrap(eng, nil, ""))
}
