package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/farmconnect/marketplace-api/internal/core/domain"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

type OrderService struct {
	orders   ports.OrderRepository
	products ports.ProductRepository
	users    ports.UserRepository
	tx       ports.Transactor
	idem     ports.IdempotencyStore // optional
	events   ports.EventPublisher   // optional
	logger   zerolog.Logger
	now      func() time.Time
}

// NewOrderService wires the order workflow. idem and events may be nil, which
// disables Idempotency-Key handling and the audit trail respectively.
func NewOrderService(
	orders ports.OrderRepository,
	products ports.ProductRepository,
	users ports.UserRepository,
	tx ports.Transactor,
	idem ports.IdempotencyStore,
	events ports.EventPublisher,
	logger zerolog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		users:    users,
		tx:       tx,
		idem:     idem,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// PlaceOrder turns a cart into a pending order. Stock checks, decrements and the
// order insert run in one transaction; any failure leaves inventory untouched.
// If an idempotency key is provided and already completed, the previously
// created order is returned without side effects.
func (s *OrderService) PlaceOrder(ctx context.Context, in ports.PlaceOrderInput) (*ports.PlaceOrderResult, error) {
	lines := in.Cart.Lines()
	if err := validatePlaceOrder(in, lines); err != nil {
		return nil, err
	}

	var idemKey string
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" && s.idem != nil {
		idemKey = in.BuyerID + ":" + key
		existingID, err := s.idem.Reserve(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if existingID != "" {
			s.logger.Info().Str("idempotency_key", key).Str("order_id", existingID).Msg("idempotent replay")
			detail, err := s.GetOrder(ctx, existingID, in.BuyerID)
			if err != nil {
				return nil, err
			}
			return &ports.PlaceOrderResult{Order: detail, Replayed: true}, nil
		}
	}

	order, err := s.placeOrder(ctx, in, lines)
	if err != nil {
		if idemKey != "" {
			if rerr := s.idem.Release(context.WithoutCancel(ctx), idemKey); rerr != nil {
				s.logger.Warn().Err(rerr).Str("buyer_id", in.BuyerID).Msg("failed to release idempotency key")
			}
		}
		return nil, err
	}

	if idemKey != "" {
		s.completeKey(ctx, idemKey, order.ID)
	}

	s.publish(order, domain.EventOrderPlaced, in.BuyerID, order.CreatedAt)
	s.logger.Info().
		Str("order_id", order.ID).
		Str("buyer_id", order.BuyerID).
		Str("seller_id", order.SellerID).
		Float64("total_amount", order.TotalAmount).
		Msg("order placed")

	details, err := s.resolve(ctx, []*domain.Order{order})
	if err != nil {
		return nil, err
	}
	return &ports.PlaceOrderResult{Order: &details[0]}, nil
}

// completeKey binds the key to the committed order. A key left pending would
// answer every retry with ErrIdempotencyInFlight until it expires, so after a
// second failed attempt the key is released instead.
func (s *OrderService) completeKey(ctx context.Context, key, orderID string) {
	ctx = context.WithoutCancel(ctx)
	err := s.idem.Complete(ctx, key, orderID)
	if err == nil {
		return
	}
	s.logger.Warn().Err(err).Str("order_id", orderID).Msg("failed to complete idempotency key, retrying")
	if err = s.idem.Complete(ctx, key, orderID); err == nil {
		return
	}
	s.logger.Error().Err(err).Str("order_id", orderID).Msg("failed to complete idempotency key, releasing it")
	if rerr := s.idem.Release(ctx, key); rerr != nil {
		s.logger.Error().Err(rerr).Str("order_id", orderID).Msg("failed to release idempotency key")
	}
}

func validatePlaceOrder(in ports.PlaceOrderInput, lines []domain.CartLine) error {
	if in.BuyerID == "" {
		return domain.ErrUnauthenticated
	}
	if len(lines) == 0 {
		return domain.Invalidf("order must contain at least one product")
	}
	for _, l := range lines {
		if strings.TrimSpace(l.ProductID) == "" {
			return domain.Invalidf("product reference is required")
		}
		if l.Quantity < 1 {
			return domain.Invalidf("quantity for product %s must be at least 1", l.ProductID)
		}
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return domain.Invalidf("delivery address is required")
	}
	if strings.TrimSpace(in.ContactNumber) == "" {
		return domain.Invalidf("contact number is required")
	}
	return nil
}

// placeOrder runs the read-check-decrement-create sequence. The transaction
// body may be retried, so it builds the order from scratch on every attempt.
func (s *OrderService) placeOrder(ctx context.Context, in ports.PlaceOrderInput, lines []domain.CartLine) (*domain.Order, error) {
	var order *domain.Order

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := s.now().UTC()
		o := &domain.Order{
			BuyerID:         in.BuyerID,
			Lines:           make([]domain.OrderLine, 0, len(lines)),
			Status:          domain.StatusPending,
			DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
			ContactNumber:   strings.TrimSpace(in.ContactNumber),
			StatusHistory: []domain.StatusHistoryEntry{
				{Status: domain.StatusPending, Timestamp: now, ActorID: in.BuyerID},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		total := decimal.Zero

		for _, l := range lines {
			p, err := s.products.FindByID(ctx, l.ProductID)
			if errors.Is(err, domain.ErrProductNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrProductNotFound, l.ProductID)
			}
			if err != nil {
				return fmt.Errorf("load product %s: %w", l.ProductID, err)
			}

			if o.SellerID == "" {
				o.SellerID = p.FarmerID
			} else if p.FarmerID != o.SellerID {
				return domain.ErrMultipleSellers
			}

			if l.Quantity > p.Quantity {
				return &domain.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.Quantity,
					Requested:   l.Quantity,
				}
			}

			total = total.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
			o.Lines = append(o.Lines, domain.OrderLine{ProductID: p.ID, Quantity: l.Quantity, Price: p.Price})

			ok, err := s.products.DecrementStock(ctx, p.ID, l.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock %s: %w", p.ID, err)
			}
			if !ok {
				// Sold concurrently between the read and the conditional update.
				available := 0
				if fresh, ferr := s.products.FindByID(ctx, p.ID); ferr == nil {
					available = fresh.Quantity
				}
				return &domain.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   available,
					Requested:   l.Quantity,
				}
			}
		}

		o.TotalAmount = total.Round(2).InexactFloat64()
		if err := s.orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus applies a status transition requested by the order's seller.
// Cancelling restocks every line within the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, in ports.UpdateOrderStatusInput) (*ports.OrderDetail, error) {
	next, err := domain.ParseOrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if err != nil {
		return nil, err
	}

	var updated *domain.Order
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.FindByID(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.SellerID != in.ActorID {
			return domain.ErrForbidden
		}
		if o.Status.IsTerminal() {
			return fmt.Errorf("%w: order is already %s", domain.ErrInvalidTransition, o.Status)
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: from %s to %s", domain.ErrInvalidTransition, o.Status, next)
		}

		now := s.now().UTC()
		entry := domain.StatusHistoryEntry{Status: next, Timestamp: now, ActorID: in.ActorID}
		ok, err := s.orders.UpdateStatus(ctx, o.ID, o.Status, next, entry)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: order is no longer %s", domain.ErrInvalidTransition, o.Status)
		}

		if next == domain.StatusCancelled {
			for _, l := range o.Lines {
				if err := s.products.IncrementStock(ctx, l.ProductID, l.Quantity); err != nil {
					return fmt.Errorf("restock %s: %w", l.ProductID, err)
				}
			}
		}

		o.Status = next
		o.UpdatedAt = now
		o.StatusHistory = append(o.StatusHistory, entry)
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(updated, domain.EventStatusChanged, in.ActorID, updated.UpdatedAt)
	s.logger.Info().Str("order_id", updated.ID).Str("status", string(next)).Msg("order status updated")

	details, err := s.resolve(ctx, []*domain.Order{updated})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// GetOrder returns an order visible to its buyer or seller only.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*ports.OrderDetail, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsParticipant(userID) {
		return nil, domain.ErrForbidden
	}
	details, err := s.resolve(ctx, []*domain.Order{o})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

func (s *OrderService) ListBuyerOrders(ctx context.Context, buyerID string) ([]ports.OrderDetail, error) {
	orders, err := s.orders.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("list buyer orders: %w", err)
	}
	return s.resolve(ctx, orders)
}

func (s *OrderService) ListSellerOrders(ctx context.Context, sellerID string) ([]ports.OrderDetail, error) {
	orders, err := s.orders.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller orders: %w", err)
	}
	return s.resolve(ctx, orders)
}

func (s *OrderService) publish(o *domain.Order, typ domain.OrderEventType, actorID string, ts time.Time) {
	if s.events == nil {
		return
	}
	s.events.Publish(ports.OrderEventInput{
		OrderID:   o.ID,
		Type:      string(typ),
		Status:    string(o.Status),
		ActorID:   actorID,
		Timestamp: ts,
	})
}

// resolve attaches buyer, seller and product display fields using one batch
// lookup per collection.
func (s *OrderService) resolve(ctx context.Context, orders []*domain.Order) ([]ports.OrderDetail, error) {
	var userIDs, productIDs []string
	for _, o := range orders {
		userIDs = append(userIDs, o.BuyerID, o.SellerID)
		productIDs = append(productIDs, o.ProductIDs()...)
	}

	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve users: %w", err)
	}
	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}

	out := make([]ports.OrderDetail, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDetail(o, users, products))
	}
	return out, nil
}

func toOrderDetail(o *domain.Order, users map[string]*domain.User, products map[string]*domain.Product) ports.OrderDetail {
	lines := make([]ports.OrderLineDetail, 0, len(o.Lines))
	for _, l := range o.Lines {
		ld := ports.OrderLineDetail{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price}
		if p, ok := products[l.ProductID]; ok {
			ld.ProductName = p.Name
			ld.Image = p.Image
		}
		lines = append(lines, ld)
	}

	history := make([]ports.StatusHistoryItem, 0, len(o.StatusHistory))
	for _, h := range o.StatusHistory {
		history = append(history, ports.StatusHistoryItem{Status: string(h.Status), Timestamp: h.Timestamp, ActorID: h.ActorID})
	}

	return ports.OrderDetail{
		ID:              o.ID,
		Buyer:           partyOf(o.BuyerID, users[o.BuyerID]),
		Seller:          partyOf(o.SellerID, users[o.SellerID]),
		Lines:           lines,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		DeliveryAddress: o.DeliveryAddress,
		ContactNumber:   o.ContactNumber,
		StatusHistory:   history,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}
