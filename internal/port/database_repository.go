package port

import (
	"context"

	"github.com/rl1809/checkout/internal/core/domain"
)

// StockRepository is the durable stock store: a versioned counter per product
// plus, for the slot strategy, one row per unit of stock.
type StockRepository interface {
	// GetProduct retrieves a product; nil if absent
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// UpdateProductStock writes the stock with a version check, returning
	// domain.ErrVersionConflict if the row changed since it was read
	UpdateProductStock(ctx context.Context, p domain.Product) error

	// SetProductStock overwrites the stock unconditionally (admin/reset path)
	SetProductStock(ctx context.Context, productID string, stock int64) error

	// DecrementStockLocked subtracts qty under an exclusive row lock,
	// returning false (with no mutation) when stock is insufficient
	DecrementStockLocked(ctx context.Context, productID string, qty int64) (bool, error)

	// ReserveSlots claims qty AVAILABLE slots with SKIP LOCKED and marks them
	// SOLD in one transaction; false rolls every claimed slot back
	ReserveSlots(ctx context.Context, productID string, qty int64, holder string) (bool, error)

	// InitSlots replaces all slots for a product with n AVAILABLE rows
	InitSlots(ctx context.Context, productID string, n int64) error

	// CountSlots returns the number of slots in the given status
	CountSlots(ctx context.Context, productID string, status domain.SlotStatus) (int64, error)
}

// OrderRepository persists orders and their payments.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrderByUID retrieves an order by its merchant reference; nil if absent
	GetOrderByUID(ctx context.Context, orderUID string) (*domain.Order, error)

	// GetPaymentByOrder retrieves the order's payment; nil if absent
	GetPaymentByOrder(ctx context.Context, orderID string) (*domain.Payment, error)

	CreatePayment(ctx context.Context, payment domain.Payment) error

	// MarkPaymentPaid records the gateway reference and flips READY to PAID
	MarkPaymentPaid(ctx context.Context, paymentID, gatewayRef string) error

	// MarkOrderPaid flips the order to paid
	MarkOrderPaid(ctx context.Context, orderID string) error
}
