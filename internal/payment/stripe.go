package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider creates PaymentIntents for orders. Calls go through a
// circuit breaker so a struggling Stripe API fails fast instead of
// stalling every checkout.
type StripeProvider struct {
	breaker *gobreaker.CircuitBreaker[*Intent]
}

func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey

	breaker := gobreaker.NewCircuitBreaker[*Intent](gobreaker.Settings{
		Name: "stripe",
	})

	return &StripeProvider{breaker: breaker}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, orderID string, amount int64, currency string) (*Intent, error) {
	intent, err := p.breaker.Execute(func() (*Intent, error) {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(amount),
			Currency: stripe.String(currency),
		}
		params.Context = ctx
		params.AddMetadata("order_id", orderID)

		pi, err := paymentintent.New(params)
		if err != nil {
			return nil, fmt.Errorf("create payment intent: %w", err)
		}

		return &Intent{
			Reference:    pi.ID,
			ClientSecret: pi.ClientSecret,
		}, nil
	})
	if err != nil {
		if p.breaker.State() == gobreaker.StateOpen {
			return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, err)
		}
		return nil, err
	}
	return intent, nil
}

// ParseWebhookEvent verifies and normalizes a Stripe webhook delivery.
// A nil event with nil error means the event type is not one the order
// core reacts to.
func ParseWebhookEvent(payload []byte, sigHeader, secret string) (*CallbackEvent, error) {
	var event stripe.Event
	if secret != "" {
		verified, err := webhook.ConstructEvent(payload, sigHeader, secret)
		if err != nil {
			return nil, fmt.Errorf("webhook signature verification failed: %w", err)
		}
		event = verified
	} else {
		// Unverified fallback for local development only
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
		}
	}

	var pi struct {
		ID               string `json:"id"`
		LastPaymentError *struct {
			Message string `json:"message"`
		} `json:"last_payment_error"`
	}

	switch event.Type {
	case "payment_intent.succeeded":
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to parse payment intent: %w", err)
		}
		return &CallbackEvent{PaymentRef: pi.ID, Succeeded: true}, nil
	case "payment_intent.payment_failed":
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to parse payment intent: %w", err)
		}
		reason := "payment_failed"
		if pi.LastPaymentError != nil && pi.LastPaymentError.Message != "" {
			reason = pi.LastPaymentError.Message
		}
		return &CallbackEvent{PaymentRef: pi.ID, Succeeded: false, FailureReason: reason}, nil
	default:
		return nil, nil
	}
}
