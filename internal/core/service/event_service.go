package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

type eventService struct {
	eventRepo ports.EventRepository
	log       zerolog.Logger
}

// NewEventService returns an EventService implementation.
func NewEventService(eventRepo ports.EventRepository, log zerolog.Logger) ports.EventService {
	return &eventService{eventRepo: eventRepo, log: log}
}

// Record validates and persists a single order audit event.
func (s *eventService) Record(ctx context.Context, in ports.OrderEventInput) error {
	if in.OrderID == "" {
		return domain.Invalidf("audit event without order reference")
	}

	typ := domain.OrderEventType(in.Type)
	if typ != domain.EventOrderPlaced && typ != domain.EventStatusChanged {
		return domain.Invalidf("unknown audit event type %q", in.Type)
	}

	status, err := domain.ParseOrderStatus(in.Status)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	event := &domain.OrderEvent{
		OrderID:   in.OrderID,
		Type:      typ,
		Status:    status,
		ActorID:   in.ActorID,
		Timestamp: ts,
	}
	if err := s.eventRepo.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	s.log.Debug().
		Str("order_id", in.OrderID).
		Str("type", in.Type).
		Str("status", in.Status).
		Msg("audit event recorded")
	return nil
}
