package poller

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/trainbites/trainbites/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const cancellationReason = "payment not completed in time"

// Reaper cancels PENDING_PAYMENT orders that never received a payment
// callback. It only runs when a TTL is configured; with a zero TTL stale
// orders are left alone, matching the default platform policy.
type Reaper struct {
	orders   repository.OrderRepository
	ttl      time.Duration
	interval time.Duration
}

func NewReaper(orders repository.OrderRepository, ttl, interval time.Duration) *Reaper {
	return &Reaper{
		orders:   orders,
		ttl:      ttl,
		interval: interval,
	}
}

func (r *Reaper) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapOnce(ctx)
		}
	}
}

func (r *Reaper) reapOnce(ctx context.Context) {
	cutoff := time.Now().Add(-r.ttl)
	cancelled, err := r.orders.CancelStalePendingPayments(ctx, cutoff, cancellationReason)
	if err != nil {
		logger.Error().Err(err).Msg("failed to cancel stale pending-payment orders")
		return
	}
	if cancelled > 0 {
		logger.Info().Int64("cancelled", cancelled).Msg("cancelled stale pending-payment orders")
	}
}
