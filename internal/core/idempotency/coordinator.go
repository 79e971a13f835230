package idempotency

import (
	"context"
	"log"
	"time"

	"github.com/rl1809/checkout/internal/port"
)

const (
	lockPrefix   = "idempotency_lock:"
	resultPrefix = "idempotency_result:"

	// DefaultLockTTL is a liveness bound: if a holder crashes before
	// releasing, the lock self-expires and a later caller can acquire it.
	DefaultLockTTL      = 20 * time.Second
	DefaultResultTTL    = 24 * time.Hour
	DefaultPollInterval = 500 * time.Millisecond
	DefaultMaxPolls     = 10
)

// Coordinator serializes concurrent processing of one logical request behind
// a short-lived distributed lock, with a cached-result fast path. The lock
// and the result cache are two independent keys; callers must tolerate a
// transient empty read in the window between releasing one and writing the
// other.
type Coordinator struct {
	cache        port.CacheRepository
	lockTTL      time.Duration
	resultTTL    time.Duration
	pollInterval time.Duration
	maxPolls     int
}

func NewCoordinator(cache port.CacheRepository) *Coordinator {
	return &Coordinator{
		cache:        cache,
		lockTTL:      DefaultLockTTL,
		resultTTL:    DefaultResultTTL,
		pollInterval: DefaultPollInterval,
		maxPolls:     DefaultMaxPolls,
	}
}

// NewCoordinatorWithTimings is for tests and non-default deployments.
func NewCoordinatorWithTimings(cache port.CacheRepository, lockTTL, resultTTL, pollInterval time.Duration, maxPolls int) *Coordinator {
	return &Coordinator{
		cache:        cache,
		lockTTL:      lockTTL,
		resultTTL:    resultTTL,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
	}
}

// TryAcquireLock atomically creates the lock entry only if absent. Returns
// whether this caller became the holder; no side effect on false.
func (c *Coordinator) TryAcquireLock(ctx context.Context, key string) (bool, error) {
	ok, err := c.cache.SetIfAbsent(ctx, lockPrefix+key, "locked", c.lockTTL)
	if err != nil {
		return false, err
	}
	if ok {
		log.Printf("idempotency: lock acquired for key %s", key)
	}
	return ok, nil
}

// ReleaseLock removes the lock entry. Must run exactly once per successful
// acquisition, on every exit path.
func (c *Coordinator) ReleaseLock(ctx context.Context, key string) error {
	if err := c.cache.Delete(ctx, lockPrefix+key); err != nil {
		return err
	}
	log.Printf("idempotency: lock released for key %s", key)
	return nil
}

// GetCachedResult returns a previously stored result. A cached result, once
// written, is authoritative for the key until its TTL elapses.
func (c *Coordinator) GetCachedResult(ctx context.Context, key string) (string, bool, error) {
	return c.cache.Get(ctx, resultPrefix+key)
}

// CacheResult stores the result; idempotent for identical payloads.
func (c *Coordinator) CacheResult(ctx context.Context, key, result string) error {
	return c.cache.Set(ctx, resultPrefix+key, result, c.resultTTL)
}

// WaitForResult is the loser's path after a failed lock acquisition: poll for
// the holder's cached result at a fixed interval, up to maxPolls attempts.
// If the lock disappears with no cached result the prior holder failed, so
// return empty immediately (safe to retry now) instead of waiting out the
// budget.
func (c *Coordinator) WaitForResult(ctx context.Context, key string) (string, bool, error) {
	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		result, found, err := c.GetCachedResult(ctx, key)
		if err != nil {
			return "", false, err
		}
		if found {
			return result, true, nil
		}

		held, err := c.cache.Exists(ctx, lockPrefix+key)
		if err != nil {
			return "", false, err
		}
		if !held {
			log.Printf("idempotency: lock gone with no result for key %s", key)
			return "", false, nil
		}
	}

	log.Printf("idempotency: wait timed out for key %s", key)
	return "", false, nil
}
