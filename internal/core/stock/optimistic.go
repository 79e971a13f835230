package stock

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
)

const conflictBackoff = 50 * time.Millisecond

// OptimisticRetry wraps a version-conflict-prone strategy in a retry loop.
// Conflicts indicate contention, not failure, so they are retried without
// bound; any other error propagates immediately.
type OptimisticRetry struct {
	inner   Strategy
	backoff time.Duration
}

func NewOptimisticRetry(inner Strategy) *OptimisticRetry {
	return &OptimisticRetry{inner: inner, backoff: conflictBackoff}
}

func (s *OptimisticRetry) Decrease(ctx context.Context, productID string, qty int64) (bool, error) {
	for {
		ok, err := s.inner.Decrease(ctx, productID, qty)
		if err == nil || !errors.Is(err, domain.ErrVersionConflict) {
			return ok, err
		}

		log.Printf("[OptimisticRetry] version conflict for product %s, retrying", productID)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(s.backoff):
		}
	}
}

func (s *OptimisticRetry) Name() string { return s.inner.Name() }
