package stock

import (
	"context"
	"log"

	"github.com/rl1809/checkout/internal/port"
)

const counterPrefix = "stock:product:"

// AtomicCounterKey is the cache key holding the external counter for a
// product. Seeding and the benchmark status endpoint use it too.
func AtomicCounterKey(productID string) string {
	return counterPrefix + productID
}

// AtomicCounterSync decides accept/reject with a single atomic decrement on
// the external counter, then reconciles the durable counter under its own row
// lock. The external counter and the durable one can diverge if the
// reconciliation fails after the decrement succeeded, so every failure path
// increments the counter back.
type AtomicCounterSync struct {
	cache port.CacheRepository
	db    port.StockRepository
}

func NewAtomicCounterSync(cache port.CacheRepository, db port.StockRepository) *AtomicCounterSync {
	return &AtomicCounterSync{cache: cache, db: db}
}

func (s *AtomicCounterSync) Decrease(ctx context.Context, productID string, qty int64) (bool, error) {
	key := AtomicCounterKey(productID)

	remaining, err := s.cache.DecrementBy(ctx, key, qty)
	if err != nil {
		return false, err
	}
	if remaining < 0 {
		s.restore(ctx, key, qty, productID)
		return false, nil
	}

	ok, err := s.db.DecrementStockLocked(ctx, productID, qty)
	if err != nil {
		s.restore(ctx, key, qty, productID)
		return false, err
	}
	if !ok {
		s.restore(ctx, key, qty, productID)
		return false, nil
	}
	return true, nil
}

func (s *AtomicCounterSync) restore(ctx context.Context, key string, qty int64, productID string) {
	if _, err := s.cache.IncrementBy(ctx, key, qty); err != nil {
		// counter and durable stock have now drifted
		log.Printf("[AtomicCounter] CRITICAL restore failed for product %s: %v", productID, err)
	}
}

func (s *AtomicCounterSync) Name() string { return "ATOMIC_COUNTER_SYNC" }
