package stock

import (
	"context"
	"log"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/port"
)

const (
	mutexPrefix = "stock_lock:"

	// must exceed the read-check-subtract critical section
	mutexTTL = 5 * time.Second
)

// DistributedMutex takes a short-TTL external mutex keyed by product, then
// read-check-subtracts the counter with no DB-level locking. Fail-fast: a
// caller that cannot acquire the mutex refuses immediately instead of
// waiting.
type DistributedMutex struct {
	cache port.CacheRepository
	db    port.StockRepository
}

func NewDistributedMutex(cache port.CacheRepository, db port.StockRepository) *DistributedMutex {
	return &DistributedMutex{cache: cache, db: db}
}

func (s *DistributedMutex) Decrease(ctx context.Context, productID string, qty int64) (bool, error) {
	lockKey := mutexPrefix + productID

	acquired, err := s.cache.SetIfAbsent(ctx, lockKey, "locked", mutexTTL)
	if err != nil {
		return false, err
	}
	if !acquired {
		log.Printf("[DistributedMutex] lock contention for product %s", productID)
		return false, nil
	}
	defer func() {
		if err := s.cache.Delete(ctx, lockKey); err != nil {
			log.Printf("[DistributedMutex] failed to release lock for product %s: %v", productID, err)
		}
	}()

	product, err := s.db.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if product == nil {
		return false, domain.ErrProductNotFound
	}
	if !product.CanDecrease(qty) {
		return false, nil
	}

	product.Stock -= qty
	if err := s.db.UpdateProductStock(ctx, *product); err != nil {
		return false, err
	}
	return true, nil
}

func (s *DistributedMutex) Name() string { return "DISTRIBUTED_MUTEX" }
