package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/service"
)

type FulfillmentService interface {
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	ListCustomerOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
	ListRestaurantOrders(ctx context.Context, actor domain.Actor, statuses []domain.OrderStatus) ([]*domain.Order, error)
	ApplyTrigger(ctx context.Context, actor domain.Actor, orderID string, trigger domain.Trigger, opts service.TransitionOptions) (*domain.Order, error)
}

type OrdersHandler struct {
	fulfillment FulfillmentService
	timeout     time.Duration
}

func NewOrdersHandler(fulfillment FulfillmentService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		fulfillment: fulfillment,
		timeout:     timeout,
	}
}

type StatusUpdateRequestDTO struct {
	Trigger string                `json:"trigger"`
	Reason  string                `json:"reason,omitempty"`
	Proof   *domain.DeliveryProof `json:"proof,omitempty"`
}

type OrdersResponseDTO struct {
	Orders []*domain.Order `json:"orders"`
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	order, err := h.fulfillment.GetOrder(ctx, actor, chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.fulfillment.ListCustomerOrders(ctx, actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, OrdersResponseDTO{Orders: orders})
}

// ListRestaurantOrders backs the seller dashboard; an optional status
// query parameter takes a comma-separated status list.
func (h *OrdersHandler) ListRestaurantOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var statuses []domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.OrderStatus(strings.TrimSpace(s)))
		}
	}

	orders, err := h.fulfillment.ListRestaurantOrders(ctx, actor, statuses)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, OrdersResponseDTO{Orders: orders})
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req StatusUpdateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Trigger == "" {
		respondError(w, http.StatusBadRequest, "invalid_trigger", "trigger is required")
		return
	}

	order, err := h.fulfillment.ApplyTrigger(ctx, actor, chi.URLParam(r, "order_id"),
		domain.Trigger(req.Trigger), service.TransitionOptions{
			Proof:  req.Proof,
			Reason: req.Reason,
		})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
