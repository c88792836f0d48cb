// Package cache provides the byte-oriented cache used to memoize pipeline
// results per parameter set.
//
// Backends share one small interface so deployments can pick what fits:
// file (single host, CLI), Redis or MongoDB (shared across instances), or
// null (caching disabled). Keys are built by a Keyer and hashed with
// SHA-256, so arbitrary parameter values are safe to embed.
package cache

import (
	"context"
	"time"
)

// TTL values for the cached artifact classes.
const (
	// TTLResult is how long a full pipeline result stays fresh. Population
	// estimates change yearly, so a day is generous.
	TTLResult = 24 * time.Hour
)

// Cache is the interface implemented by all backends.
type Cache interface {
	// Get retrieves a value. The bool reports whether the key was present
	// and fresh; a miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a time-to-live. A ttl of 0 means the entry
	// never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer builds cache keys for the artifact classes munimerge stores.
type Keyer interface {
	// ResultKey identifies a full pipeline result by its parameter set.
	ResultKey(threshold, populationYear int) string

	// HTTPKey identifies a cached upstream HTTP response.
	HTTPKey(namespace, key string) string
}

// DefaultKeyer hashes key components with SHA-256 under a class prefix.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ResultKey generates a key for a pipeline result.
func (k *DefaultKeyer) ResultKey(threshold, populationYear int) string {
	return hashKey("result", threshold, populationYear)
}

// HTTPKey generates a key for an upstream HTTP response.
func (k *DefaultKeyer) HTTPKey(namespace, key string) string {
	return hashKey("http", namespace, key)
}
