// Package cache stores data-source responses between runs.
//
// A [Cache] is a byte-oriented key/value store with per-entry TTL. Three
// backends are provided: [FileCache] for the CLI, [RedisCache] for shared
// deployments, and [NullCache] when caching is disabled. Keys are built by a
// [Keyer] so that every component agrees on the key for a given request.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with expiration.
type Cache interface {
	// Get returns the data for key and whether it was found.
	// Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs per key type.
const (
	TTLSector = 24 * time.Hour
	TTLWays   = 24 * time.Hour
	TTLNodes  = 24 * time.Hour
)

// Key types reported to observability hooks.
const (
	KeyTypeSector = "sector"
	KeyTypeWays   = "ways"
	KeyTypeNodes  = "nodes"
)
