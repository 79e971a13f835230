package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID        string
	OrderUID  string // merchant reference known to the payment gateway
	UserID    string
	ProductID string
	Quantity  int64
	Price     int64 // total price captured at order time
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
