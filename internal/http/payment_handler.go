package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/trainbites/trainbites/internal/payment"
	"github.com/trainbites/trainbites/internal/repository"
)

type PaymentCallbackService interface {
	HandlePaymentEvent(ctx context.Context, event *payment.CallbackEvent) error
}

// PaymentWebhookHandler receives asynchronous payment-provider
// callbacks. The provider retries on non-2xx, so everything that cannot
// be fixed by redelivery is acknowledged with 200.
type PaymentWebhookHandler struct {
	fulfillment   PaymentCallbackService
	webhookSecret string
	timeout       time.Duration
}

func NewPaymentWebhookHandler(fulfillment PaymentCallbackService, webhookSecret string, timeout time.Duration) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		fulfillment:   fulfillment,
		webhookSecret: webhookSecret,
		timeout:       timeout,
	}
}

func (h *PaymentWebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// Signature verification needs the raw body
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	event, err := payment.ParseWebhookEvent(body, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_webhook", err.Error())
		return
	}
	if event == nil {
		// Event type the order core does not react to
		respondJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.fulfillment.HandlePaymentEvent(ctx, event); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			// No order carries this payment reference; redelivery will not
			// change that, so acknowledge and log
			logger.Warn().Str("payment_ref", event.PaymentRef).Msg("payment callback for unknown reference")
			respondJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to process payment event")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
