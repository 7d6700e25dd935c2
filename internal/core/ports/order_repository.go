package ports

import (
	"context"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	// Create inserts the order and sets its ID.
	Create(ctx context.Context, o *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// ListByBuyer and ListBySeller return orders newest first.
	ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*domain.Order, error)
	// UpdateStatus moves the order from status `from` to `to` and appends entry to its
	// history, only if the stored status is still `from`. It reports false when the
	// order was not in `from` anymore.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, entry domain.StatusHistoryEntry) (bool, error)
}

// Transactor runs fn inside a storage transaction. Repositories called with the ctx
// passed to fn take part in it. fn may be invoked more than once on transient errors.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IdempotencyStore tracks Idempotency-Key headers of order creation requests.
type IdempotencyStore interface {
	// Reserve claims key. When the key was already used it returns the order ID stored
	// by Complete, or domain.ErrIdempotencyInFlight if that request has not finished.
	Reserve(ctx context.Context, key string) (existingOrderID string, err error)
	// Complete binds key to the created order.
	Complete(ctx context.Context, key, orderID string) error
	// Release frees a reserved key after a failed request.
	Release(ctx context.Context, key string) error
}
