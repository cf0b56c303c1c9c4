package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spokeworks/api/internal/platform/auth"
	"github.com/spokeworks/api/internal/platform/httpx"
	"github.com/spokeworks/api/internal/services"
)

const maxOrderBodySize = 16 * 1024

type createOrderRequest struct {
	BikeID     int64  `json:"bike_id"`
	CustomerID int64  `json:"customer_id"`
	TotalPrice *int64 `json:"total_price"`
}

type updateOrderStatusRequest struct {
	Status     string `json:"status"`
	TotalPrice *int64 `json:"total_price"`
}

type settleOrderRequest struct {
	Token    string `json:"token"`
	Currency string `json:"currency"`
	Provider string `json:"provider"`
}

type orderPayload struct {
	ID         int64  `json:"id"`
	BikeID     int64  `json:"bikeId"`
	CustomerID int64  `json:"customerId"`
	Status     string `json:"status"`
	TotalPrice int64  `json:"totalPrice"`
	CreatedBy  int64  `json:"createdBy,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

type orderListResponse struct {
	Items []orderPayload `json:"items"`
}

type settlementPayload struct {
	OrderID       int64  `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// OrderHandlers exposes the order lifecycle and settlement endpoints.
type OrderHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	payments services.PaymentService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, payments services.PaymentService) *OrderHandlers {
	return &OrderHandlers{
		authn:    authn,
		orders:   orders,
		payments: payments,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	staffOnly := func(next http.Handler) http.Handler { return next }
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
		staffOnly = h.authn.RequireAuth(auth.RoleStaff, auth.RoleAdmin)
	}

	r.With(staffOnly).Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.With(staffOnly).Post("/{orderID}:start", h.startRepair)
	r.With(staffOnly).Post("/{orderID}:complete", h.completeRepair)
	r.With(staffOnly).Post("/{orderID}:cancel", h.cancelOrder)
	r.With(staffOnly).Patch("/{orderID}/status", h.updateStatus)
	r.Post("/{orderID}/payments", h.settleOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if err := decodeJSONBody(w, r, &req, maxOrderBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		BikeID:     req.BikeID,
		CustomerID: req.CustomerID,
		TotalPrice: req.TotalPrice,
		ActorID:    identity.UserID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var filter services.OrderListFilter
	if isStaff(identity) {
		if raw := strings.TrimSpace(r.URL.Query().Get("customer_id")); raw != "" {
			customerID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "customer_id must be an integer", http.StatusBadRequest))
				return
			}
			filter.CustomerID = &customerID
		}
	} else {
		// Customers only ever see their own orders.
		customerID := identity.UserID
		filter.CustomerID = &customerID
	}

	orders, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: items})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := parseOrderID(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	if !isStaff(identity) && order.CustomerID != identity.UserID {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) startRepair(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	h.transition(w, r, h.orders.StartRepair)
}

func (h *OrderHandlers) completeRepair(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	h.transition(w, r, h.orders.CompleteRepair)
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	h.transition(w, r, h.orders.CancelOrder)
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, services.OrderActionCommand) (services.Order, error)) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID, ok := parseOrderID(ctx, w, r)
	if !ok {
		return
	}

	order, err := op(ctx, services.OrderActionCommand{OrderID: orderID, ActorID: identity.UserID})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := parseOrderID(ctx, w, r)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if err := decodeJSONBody(w, r, &req, maxOrderBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:    orderID,
		Status:     req.Status,
		TotalPrice: req.TotalPrice,
		ActorID:    identity.UserID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) settleOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID, ok := parseOrderID(ctx, w, r)
	if !ok {
		return
	}

	if !isStaff(identity) {
		if h.orders == nil {
			httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
			return
		}
		order, err := h.orders.GetOrder(ctx, orderID)
		if err != nil {
			writeOrderError(ctx, w, err)
			return
		}
		if order.CustomerID != identity.UserID {
			httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
			return
		}
	}

	var req settleOrderRequest
	if err := decodeJSONBody(w, r, &req, maxOrderBodySize); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	result, err := h.payments.SettleOrder(ctx, services.SettleOrderCommand{
		OrderID:  orderID,
		Token:    req.Token,
		Currency: req.Currency,
		Provider: req.Provider,
		ActorID:  identity.UserID,
	})
	if err != nil {
		writeSettlementError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, settlementPayload{
		OrderID:       result.OrderID,
		TransactionID: result.TransactionID,
		Status:        result.Status,
	})
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:         order.ID,
		BikeID:     order.BikeID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		CreatedBy:  order.CreatedBy,
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedAt = order.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = order.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.UserID == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func isStaff(identity *auth.Identity) bool {
	return identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin)
}

func parseOrderID(ctx context.Context, w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderID"))
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || orderID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id must be a positive integer", http.StatusBadRequest))
		return 0, false
	}
	return orderID, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPersistence):
		httpx.WriteError(ctx, w, httpx.NewError("persistence_error", "failed to persist order", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func writeSettlementError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCustomerNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("customer_not_found", "customer not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAlreadyPaid):
		httpx.WriteError(ctx, w, httpx.NewError("order_already_paid", "order already paid", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", err.Error(), http.StatusPaymentRequired))
	case errors.Is(err, services.ErrPaymentGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment gateway unavailable", http.StatusBadGateway))
	case errors.Is(err, services.ErrPersistence):
		httpx.WriteError(ctx, w, httpx.NewError("persistence_error", "failed to persist settlement", http.StatusInternalServerError))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment", http.StatusInternalServerError))
	}
}
