package cache

import (
	"context"
	"time"
)

// NullCache drops every OSM API payload, so each sector, relation and node
// fetch goes to the server. The CLI selects it for --no-cache and when the
// configured Redis server cannot be reached.
type NullCache struct{}

// NewNullCache returns the no-op cache.
func NewNullCache() Cache { return NullCache{} }

// Get reports a miss for every key.
func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set discards the payload.
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
