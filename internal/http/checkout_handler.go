package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/service"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req *service.CheckoutRequest) (*service.CheckoutResult, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(checkout CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type CheckoutItemDTO struct {
	ProductID string                  `json:"product_id"`
	Quantity  int                     `json:"quantity"`
	Note      string                  `json:"note,omitempty"`
	Options   []domain.SelectedOption `json:"options,omitempty"`
}

type CheckoutRequestDTO struct {
	Items          []CheckoutItemDTO   `json:"items"`
	Delivery       domain.DeliveryInfo `json:"delivery"`
	PaymentMethod  string              `json:"payment_method"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	IdempotencyKey string              `json:"idempotency_key"`
}

type CheckoutResponseDTO struct {
	Order         *domain.Order `json:"order"`
	PaymentHandle string        `json:"payment_handle,omitempty"`
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := actorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Note:      item.Note,
			Options:   item.Options,
		})
	}

	result, err := h.checkout.Checkout(ctx, &service.CheckoutRequest{
		CustomerID:     actor.ID,
		Items:          items,
		Delivery:       req.Delivery,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		CouponCode:     req.CouponCode,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		Order:         result.Order,
		PaymentHandle: result.PaymentHandle,
	})
}
