package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemCache is a TTL-aware in-memory stand-in for the Redis lock/cache
// backend. Expired keys are treated as absent and pruned lazily.
type MemCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[string]cacheEntry)}
}

func (c *MemCache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.store(key, value, ttl)
	return true, nil
}

func (c *MemCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.live(key)
	return v, ok, nil
}

func (c *MemCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value, ttl)
	return nil
}

func (c *MemCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live(key)
	return ok, nil
}

func (c *MemCache) DecrementBy(ctx context.Context, key string, n int64) (int64, error) {
	return c.add(key, -n)
}

func (c *MemCache) IncrementBy(ctx context.Context, key string, n int64) (int64, error) {
	return c.add(key, n)
}

// add mirrors Redis counter semantics: a missing key counts from zero.
func (c *MemCache) add(key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	if v, ok := c.live(key); ok {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, err
		}
		current = parsed
	}

	current += delta
	c.store(key, strconv.FormatInt(current, 10), 0)
	return current, nil
}

// live must be called with mu held.
func (c *MemCache) live(key string) (string, bool) {
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

// store must be called with mu held.
func (c *MemCache) store(key, value string, ttl time.Duration) {
	e := cacheEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = e
}
