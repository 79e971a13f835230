package domain

import "time"

type SlotStatus string

const (
	SlotAvailable SlotStatus = "AVAILABLE"
	SlotReserved  SlotStatus = "RESERVED"
	SlotSold      SlotStatus = "SOLD"
)

// StockSlot is one unit of stock as an independently lockable row.
// The slot-reservation strategy claims AVAILABLE rows with SKIP LOCKED,
// so concurrent callers never wait on each other.
type StockSlot struct {
	ID         int64
	ProductID  string
	Status     SlotStatus
	ReservedAt *time.Time
	Holder     string
}
