package stock

import (
	"context"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/port"
)

// Strategy is one way of safely decrementing a product's stock under
// contention. Decrease returns true for a committed decrement and false for a
// refusal (insufficient stock or lock contention) — never a partial result.
type Strategy interface {
	Decrease(ctx context.Context, productID string, qty int64) (bool, error)
	Name() string
}

const (
	NamePessimistic      = "pessimistic"
	NameDistributedMutex = "distributed-mutex"
	NameAtomicCounter    = "atomic-counter"
	NameSlotReservation  = "slot-reservation"
)

// Selector resolves a strategy by name from the closed set of four.
type Selector struct {
	strategies map[string]Strategy
}

func NewSelector(cache port.CacheRepository, db port.StockRepository) *Selector {
	// the mutex strategy writes through the version column, so it gets the
	// optimistic-retry facade; the other three never see version conflicts
	return &Selector{strategies: map[string]Strategy{
		NamePessimistic:      NewPessimisticLock(db),
		NameDistributedMutex: NewOptimisticRetry(NewDistributedMutex(cache, db)),
		NameAtomicCounter:    NewAtomicCounterSync(cache, db),
		NameSlotReservation:  NewSlotReservation(db),
	}}
}

func (s *Selector) Select(name string) (Strategy, error) {
	strategy, ok := s.strategies[name]
	if !ok {
		return nil, domain.ErrUnknownStrategy
	}
	return strategy, nil
}
