package cache

import (
	"context"
	"time"
)

// Cache is the contract for the read cache layer.
// Implementations: Redis (infrastructure/cache), in-memory fakes in tests.
type Cache interface {
	// Get loads the value stored under key into dest.
	// found=false on a cache miss, dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Incr atomically increments the integer counter at key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)

	// Counter reads the counter at key. A missing counter is 0.
	Counter(ctx context.Context, key string) (int64, error)

	// DeletePattern removes every key matching a glob pattern (e.g. "books:top:*").
	DeletePattern(ctx context.Context, pattern string) error

	Ping(ctx context.Context) error
}
