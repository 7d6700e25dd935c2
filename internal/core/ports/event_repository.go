package ports

import (
	"context"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
)

// EventRepository persists the order audit trail.
type EventRepository interface {
	// InsertEvent appends an event to the order_events audit collection.
	InsertEvent(ctx context.Context, event *domain.OrderEvent) error
}
