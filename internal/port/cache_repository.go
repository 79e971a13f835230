package port

import (
	"context"
	"time"
)

// CacheRepository is the lock/cache backend: a key-value store with atomic
// set-if-absent and atomic counters. Redis in production, but every call is
// parameterized by key so tests can run on an in-memory map.
type CacheRepository interface {
	// SetIfAbsent atomically creates key with a TTL, returns false if it exists
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key unconditionally
	Delete(ctx context.Context, key string) error

	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value with a TTL (0 = no expiry)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key is present
	Exists(ctx context.Context, key string) (bool, error)

	// DecrementBy atomically decrements a counter and returns the new value
	DecrementBy(ctx context.Context, key string, n int64) (int64, error)

	// IncrementBy atomically increments a counter and returns the new value
	IncrementBy(ctx context.Context, key string, n int64) (int64, error)
}
