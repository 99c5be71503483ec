package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/trainbites/trainbites/internal/domain"
)

type DeliveryService interface {
	AvailableOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
	Accept(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	Decline(ctx context.Context, actor domain.Actor, orderID, reason string) error
	SetAvailability(ctx context.Context, actor domain.Actor, available bool) error
}

type DeliveryHandler struct {
	delivery DeliveryService
	timeout  time.Duration
}

func NewDeliveryHandler(delivery DeliveryService, timeout time.Duration) *DeliveryHandler {
	return &DeliveryHandler{
		delivery: delivery,
		timeout:  timeout,
	}
}

type DeclineRequestDTO struct {
	Reason string `json:"reason,omitempty"`
}

type AvailabilityRequestDTO struct {
	Available bool `json:"available"`
}

// Pool is polled by delivery clients on a fixed interval. Conflicts on
// accept mean the caller should simply re-poll.
func (h *DeliveryHandler) Pool(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.delivery.AvailableOrders(ctx, actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, OrdersResponseDTO{Orders: orders})
}

func (h *DeliveryHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	order, err := h.delivery.Accept(ctx, actor, chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *DeliveryHandler) Decline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req DeclineRequestDTO
	if r.Body != nil {
		// The body is optional; a bare decline carries no reason
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.delivery.Decline(ctx, actor, chi.URLParam(r, "order_id"), req.Reason); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "order declined"})
}

func (h *DeliveryHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AvailabilityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.delivery.SetAvailability(ctx, actor, req.Available); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"available": req.Available})
}
