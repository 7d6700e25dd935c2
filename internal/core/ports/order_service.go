package ports

import (
	"context"
	"time"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

// PlaceOrderInput carries all data needed to create a new order from a cart.
type PlaceOrderInput struct {
	BuyerID         string
	Cart            domain.Cart
	DeliveryAddress string
	ContactNumber   string
	IdempotencyKey  string // optional
}

// UpdateOrderStatusInput carries a status change requested by ActorID.
type UpdateOrderStatusInput struct {
	OrderID string
	ActorID string
	Status  string
}

// OrderLineDetail is an order line with product display fields resolved.
type OrderLineDetail struct {
	ProductID   string
	ProductName string
	Image       string
	Quantity    int
	Price       float64
}

// StatusHistoryItem is a single entry in the order's status history.
type StatusHistoryItem struct {
	Status    string
	Timestamp time.Time
	ActorID   string
}

// OrderDetail is the full order view returned to participants.
type OrderDetail struct {
	ID              string
	Buyer           PartySummary
	Seller          PartySummary
	Lines           []OrderLineDetail
	TotalAmount     float64
	Status          string
	DeliveryAddress string
	ContactNumber   string
	StatusHistory   []StatusHistoryItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PlaceOrderResult is returned by PlaceOrder.
type PlaceOrderResult struct {
	Order *OrderDetail
	// Replayed is true when the Idempotency-Key matched an order created earlier.
	Replayed bool
}

// OrderService defines use-case operations for orders.
type OrderService interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	UpdateStatus(ctx context.Context, input UpdateOrderStatusInput) (*OrderDetail, error)
	GetOrder(ctx context.Context, orderID, userID string) (*OrderDetail, error)
	ListBuyerOrders(ctx context.Context, buyerID string) ([]OrderDetail, error)
	ListSellerOrders(ctx context.Context, sellerID string) ([]OrderDetail, error)
}
