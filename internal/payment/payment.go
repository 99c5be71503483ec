package payment

import (
	"context"
	"errors"
)

var ErrProviderUnavailable = errors.New("payment provider unavailable")

// Intent is the client-side payment handle for one order: the provider's
// transaction reference (matched back on webhook delivery) and the secret
// the frontend needs to collect the payment.
type Intent struct {
	Reference    string
	ClientSecret string
}

// CallbackEvent is the normalized form of an asynchronous provider
// callback. Events the core does not care about are dropped before this
// point.
type CallbackEvent struct {
	PaymentRef    string
	Succeeded     bool
	FailureReason string
}

type Provider interface {
	CreateIntent(ctx context.Context, orderID string, amount int64, currency string) (*Intent, error)
}
