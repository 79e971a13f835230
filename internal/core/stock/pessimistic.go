package stock

import (
	"context"

	"github.com/rl1809/checkout/internal/port"
)

// PessimisticLock takes an exclusive row lock on the counter before reading,
// then check-then-subtracts under the lock. Callers serialize; waiters queue
// on the row lock.
type PessimisticLock struct {
	db port.StockRepository
}

func NewPessimisticLock(db port.StockRepository) *PessimisticLock {
	return &PessimisticLock{db: db}
}

func (s *PessimisticLock) Decrease(ctx context.Context, productID string, qty int64) (bool, error) {
	return s.db.DecrementStockLocked(ctx, productID, qty)
}

func (s *PessimisticLock) Name() string { return "PESSIMISTIC_LOCK" }
