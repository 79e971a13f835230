package domain

import "time"

type Product struct {
	ID        string
	Name      string
	Price     int64
	Stock     int64
	Version   int64 // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanDecrease reports whether qty units can be taken from the current stock.
func (p *Product) CanDecrease(qty int64) bool {
	return p.Stock >= qty
}
