package stock

import (
	"context"

	"github.com/google/uuid"

	"github.com/rl1809/checkout/internal/port"
)

// SlotReservation represents each unit of stock as an independently lockable
// row and claims them with skip-locked selection. Concurrent callers never
// wait on each other: each either gets a distinct slot or sees none left.
type SlotReservation struct {
	db port.StockRepository
}

func NewSlotReservation(db port.StockRepository) *SlotReservation {
	return &SlotReservation{db: db}
}

func (s *SlotReservation) Decrease(ctx context.Context, productID string, qty int64) (bool, error) {
	return s.db.ReserveSlots(ctx, productID, qty, uuid.NewString())
}

func (s *SlotReservation) Name() string { return "SLOT_RESERVATION" }
