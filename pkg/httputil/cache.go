// Package httputil provides a file-backed response cache and a JSON fetch
// helper for the upstream IBGE APIs. Boundary meshes and population tables
// change at most yearly, so aggressive local caching keeps repeated
// pipeline runs off the network entirely.
package httputil

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/geobr-tools/munimerge/pkg/cache"
)

// ErrExpired is returned by [Cache.Get] when a cached entry exists but has
// exceeded its time-to-live (TTL). The data still exists on disk but is
// considered stale; fetch fresh data and update the cache with [Cache.Set].
//
// Use errors.Is to check for this error:
//
//	ok, err := cache.Get("key", &value)
//	if errors.Is(err, httputil.ErrExpired) {
//	    // Fetch fresh data and update cache
//	}
var ErrExpired = errors.New("cache entry expired")

// Cache provides file-based caching of arbitrary JSON-marshalable data.
//
// Each entry is stored as a JSON file named by a [cache.Keyer] HTTP key:
// a class prefix plus the SHA-256 hash of namespace and key, which keeps
// filesystem-unsafe characters out of paths and prevents collisions across
// namespaces. Entries expire based on file modification time; a TTL of 0
// means entries never expire.
//
// Cache operations are not goroutine-safe; callers sharing one instance
// must synchronize. Separate instances (even in different processes) can
// share a directory safely.
//
// Use [Cache.Namespace] to create scoped views that automatically prefix
// keys, keeping the different IBGE endpoints apart:
//
//	pop := cache.Namespace("population:")
//	mesh := cache.Namespace("mesh:")
type Cache struct {
	dir    string
	ttl    time.Duration
	prefix string
	keyer  cache.Keyer
}

// NewCache creates a Cache that stores entries in dir with the given TTL.
//
// If dir is empty, NewCache uses ~/.cache/munimerge/. The directory is
// created with mode 0755 if it doesn't exist; directory creation failure is
// the only error source.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".cache", "munimerge")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl, prefix: "", keyer: cache.NewDefaultKeyer()}, nil
}

// Dir returns the absolute path to the cache directory.
func (c *Cache) Dir() string { return c.dir }

// TTL returns the time-to-live duration for cache entries.
// A TTL of 0 means cache entries never expire.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves a cached value by key and unmarshals it into v.
//
// Return values indicate three distinct outcomes:
//   - (true, nil): cache hit; the value was found, fresh, and unmarshaled into v.
//   - (false, nil): cache miss; no entry exists for this key. v is unchanged.
//   - (false, ErrExpired): entry exists but exceeded its TTL. v is unchanged.
//   - (false, other error): I/O or unmarshal error; v may be partially modified.
//
// Get does not modify the cache or update modification times.
func (c *Cache) Get(key string, v any) (bool, error) {
	path := c.keyPath(key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return false, ErrExpired
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

// Set stores a value in the cache under the given key, overwriting any
// existing entry and refreshing its TTL.
func (c *Cache) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(c.keyPath(key), data, 0o644)
}

// Namespace returns a new Cache that automatically prefixes all keys with
// prefix. The returned Cache shares the underlying directory and TTL.
// Namespace calls can be chained to create hierarchical key spaces.
func (c *Cache) Namespace(prefix string) *Cache {
	return &Cache{
		dir:    c.dir,
		ttl:    c.ttl,
		prefix: c.prefix + prefix,
		keyer:  c.keyer,
	}
}

func (c *Cache) keyPath(key string) string {
	return filepath.Join(c.dir, c.keyer.HTTPKey(c.prefix, key))
}
