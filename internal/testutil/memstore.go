package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
)

// MemStock is an in-memory stand-in for the durable stock store. A single
// mutex plays the role of the database's row locks, so check-then-subtract
// sections are atomic the way they are under FOR UPDATE.
type MemStock struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	slots    map[string][]*domain.StockSlot

	// FailDecrementLocked, when set, makes DecrementStockLocked return it
	// (for exercising reconciliation-failure paths).
	FailDecrementLocked error
}

func NewMemStock() *MemStock {
	return &MemStock{
		products: make(map[string]*domain.Product),
		slots:    make(map[string][]*domain.StockSlot),
	}
}

func (s *MemStock) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := p
	s.products[p.ID] = &copied
}

func (s *MemStock) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (s *MemStock) UpdateProductStock(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[p.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if current.Version != p.Version {
		return domain.ErrVersionConflict
	}
	current.Stock = p.Stock
	current.Version++
	return nil
}

func (s *MemStock) SetProductStock(ctx context.Context, productID string, stock int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock = stock
	return nil
}

func (s *MemStock) DecrementStockLocked(ctx context.Context, productID string, qty int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDecrementLocked != nil {
		return false, s.FailDecrementLocked
	}

	p, ok := s.products[productID]
	if !ok {
		return false, domain.ErrProductNotFound
	}
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.Version++
	return true, nil
}

func (s *MemStock) ReserveSlots(ctx context.Context, productID string, qty int64, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var available []*domain.StockSlot
	for _, slot := range s.slots[productID] {
		if slot.Status == domain.SlotAvailable {
			available = append(available, slot)
		}
	}
	if int64(len(available)) < qty {
		return false, nil
	}

	now := time.Now()
	for i := int64(0); i < qty; i++ {
		available[i].Status = domain.SlotSold
		available[i].ReservedAt = &now
		available[i].Holder = holder
	}
	return true, nil
}

func (s *MemStock) InitSlots(ctx context.Context, productID string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make([]*domain.StockSlot, 0, n)
	for i := int64(0); i < n; i++ {
		slots = append(slots, &domain.StockSlot{
			ID:        int64(i) + 1,
			ProductID: productID,
			Status:    domain.SlotAvailable,
		})
	}
	s.slots[productID] = slots
	return nil
}

func (s *MemStock) CountSlots(ctx context.Context, productID string, status domain.SlotStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, slot := range s.slots[productID] {
		if slot.Status == status {
			count++
		}
	}
	return count, nil
}

// MemOrders is an in-memory stand-in for the order/payment store.
type MemOrders struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order // by order uid
	payments map[string]*domain.Payment
}

func NewMemOrders() *MemOrders {
	return &MemOrders{
		orders:   make(map[string]*domain.Order),
		payments: make(map[string]*domain.Payment),
	}
}

func (s *MemOrders) CreateOrder(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := order
	s.orders[order.OrderUID] = &copied
	return nil
}

func (s *MemOrders) GetOrderByUID(ctx context.Context, orderUID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderUID]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (s *MemOrders) GetPaymentByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.OrderID == orderID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemOrders) CreatePayment(ctx context.Context, payment domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := payment
	s.payments[payment.ID] = &copied
	return nil
}

func (s *MemOrders) MarkPaymentPaid(ctx context.Context, paymentID, gatewayRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || p.Status != domain.PaymentStatusReady {
		return nil
	}
	p.Status = domain.PaymentStatusPaid
	p.GatewayRef = gatewayRef
	return nil
}

func (s *MemOrders) MarkOrderPaid(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == orderID {
			o.Status = domain.OrderStatusPaid
		}
	}
	return nil
}

// PaymentStatus reports the stored status for assertions.
func (s *MemOrders) PaymentStatus(orderID string) (domain.PaymentStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.OrderID == orderID {
			return p.Status, true
		}
	}
	return "", false
}
