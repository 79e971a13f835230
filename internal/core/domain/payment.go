package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusReady  PaymentStatus = "READY"
	PaymentStatusPaid   PaymentStatus = "PAID"
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// Payment is the durable record of one order's payment. Status moves
// READY->PAID or READY->FAILED exactly once; re-verifying an already
// PAID payment is a no-op.
type Payment struct {
	ID         string
	OrderID    string
	Price      int64
	Status     PaymentStatus
	GatewayRef string // gateway's own payment id (imp_uid)
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
