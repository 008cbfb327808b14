// Package cache defines the Cache interface used to front repeated
// query-embedding lookups and hot working-memory reads. Two backends are
// provided: memcache (in-process, TTL map) and redis (go-redis/redis/v8),
// selectable the same way the teacher's storage layer selects a backend
// by provider string in config.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented TTL cache. Callers are responsible for
// serializing values (the engine uses JSON); keeping the interface
// byte-oriented lets both backends share one contract regardless of
// whether the backing store is process memory or a wire protocol.
type Cache interface {
	// Get returns the cached value and true, or nil and false if absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the given TTL. A zero TTL means
	// "no expiration".
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key, if present.
	Delete(ctx context.Context, key string) error

	// Close releases any held resources (connections, janitor goroutines).
	Close() error
}
