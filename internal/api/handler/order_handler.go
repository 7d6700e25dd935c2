package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/farmconnect/marketplace-api/internal/api/metrics"
	"github.com/farmconnect/marketplace-api/internal/core/domain"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

// IdempotencyKeyHeader names the optional header that makes order placement safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// OrderHandler handles HTTP requests for order operations.
type OrderHandler struct {
	service ports.OrderService
}

func NewOrderHandler(service ports.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// Create handles POST /orders.
//
// @Summary      Place an order
// @Description  Checks stock, snapshots prices and decrements inventory atomically.
// @Description  Retrying with the same Idempotency-Key returns the original order.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string              false  "Idempotency key to prevent duplicate orders"
// @Param        body             body      createOrderRequest  true   "Cart and delivery details"
// @Success      201              {object}  orderEnvelope
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Failure      404              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Router       /orders [post]
func (h *OrderHandler) Create(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		metrics.OrderFailuresTotal.WithLabelValues("validation").Inc()
		return err
	}

	key := strings.TrimSpace(c.Request().Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		metrics.OrderFailuresTotal.WithLabelValues("validation").Inc()
		return domain.Invalidf("%s must be at most %d characters", IdempotencyKeyHeader, maxIdempotencyKeyLen)
	}

	res, err := h.service.PlaceOrder(c.Request().Context(), toPlaceOrderInput(req, user.ID, key))
	if err != nil {
		metrics.OrderFailuresTotal.WithLabelValues(orderFailureReason(err)).Inc()
		return err
	}

	if res.Replayed {
		metrics.OrdersPlacedTotal.WithLabelValues("true").Inc()
	} else {
		metrics.OrdersPlacedTotal.WithLabelValues("false").Inc()
		metrics.OrderAmount.Observe(res.Order.TotalAmount)
	}

	return c.JSON(http.StatusCreated, orderEnvelope{
		Message: "Order placed successfully",
		Order:   toOrderResponse(res.Order),
	})
}

// MyOrders handles GET /orders/consumer/my-orders.
//
// @Summary      List the caller's purchases
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  orderListResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /orders/consumer/my-orders [get]
func (h *OrderHandler) MyOrders(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	orders, err := h.service.ListBuyerOrders(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderListResponse{Orders: toOrderResponses(orders)})
}

// ReceivedOrders handles GET /orders/farmer/received-orders.
//
// @Summary      List orders received by the caller
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  orderListResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /orders/farmer/received-orders [get]
func (h *OrderHandler) ReceivedOrders(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	orders, err := h.service.ListSellerOrders(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderListResponse{Orders: toOrderResponses(orders)})
}

// Get handles GET /orders/:id.
//
// @Summary      Get an order
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  orderEnvelope
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /orders/{id} [get]
func (h *OrderHandler) Get(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	detail, err := h.service.GetOrder(c.Request().Context(), c.Param("id"), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orderEnvelope{Order: toOrderResponse(detail)})
}

// UpdateStatus handles PUT /orders/:id/status.
//
// @Summary      Advance or cancel an order
// @Description  pending → confirmed → shipped → delivered; any non-terminal order may be cancelled, which restocks its lines.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                    true  "Order ID"
// @Param        body  body      updateOrderStatusRequest  true  "Target status"
// @Success      200   {object}  orderEnvelope
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /orders/{id}/status [put]
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req updateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	detail, err := h.service.UpdateStatus(c.Request().Context(), ports.UpdateOrderStatusInput{
		OrderID: c.Param("id"),
		ActorID: user.ID,
		Status:  req.Status,
	})
	if err != nil {
		return err
	}
	metrics.OrderStatusTransitionsTotal.WithLabelValues(detail.Status).Inc()

	return c.JSON(http.StatusOK, orderEnvelope{
		Message: "Order status updated successfully",
		Order:   toOrderResponse(detail),
	})
}

func orderFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrIdempotencyInFlight):
		return "conflict"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrMultipleSellers):
		return "validation"
	default:
		return "internal"
	}
}
