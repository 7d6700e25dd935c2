package domain

import "time"

// OrderEventType classifies an audit trail entry.
type OrderEventType string

const (
	EventOrderPlaced   OrderEventType = "order_placed"
	EventStatusChanged OrderEventType = "status_changed"
)

// OrderEvent is an append-only audit record of something that happened to an order.
type OrderEvent struct {
	OrderID   string
	Type      OrderEventType
	Status    OrderStatus
	ActorID   string
	Timestamp time.Time
}
