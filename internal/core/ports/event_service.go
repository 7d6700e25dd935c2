package ports

import (
	"context"
	"time"
)

// OrderEventInput is the DTO handed to the audit pipeline.
type OrderEventInput struct {
	OrderID   string
	Type      string
	Status    string
	ActorID   string
	Timestamp time.Time
}

// EventService records order audit events.
type EventService interface {
	Record(ctx context.Context, event OrderEventInput) error
}

// EventPublisher accepts audit events for asynchronous recording.
// Publish must not block the caller on storage.
type EventPublisher interface {
	Publish(event OrderEventInput)
}
