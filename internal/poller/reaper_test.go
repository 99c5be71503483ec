package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/repository"
)

// stubOrderRepo only records the reaper's cancellation sweeps; the rest
// of the interface is unused here.
type stubOrderRepo struct {
	m       sync.Mutex
	sweeps  int
	cutoffs []time.Time
}

func (s *stubOrderRepo) CancelStalePendingPayments(_ context.Context, before time.Time, reason string) (int64, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.sweeps++
	s.cutoffs = append(s.cutoffs, before)
	return 1, nil
}

func (s *stubOrderRepo) sweepCount() int {
	s.m.Lock()
	defer s.m.Unlock()
	return s.sweeps
}

func (s *stubOrderRepo) CreateOrder(context.Context, *domain.Order) error { return nil }
func (s *stubOrderRepo) GetOrderByID(context.Context, string) (*domain.Order, error) {
	return nil, repository.ErrOrderNotFound
}
func (s *stubOrderRepo) GetOrderByIdempotencyKey(context.Context, string, string) (*domain.Order, error) {
	return nil, repository.ErrOrderNotFound
}
func (s *stubOrderRepo) GetOrderByPaymentRef(context.Context, string) (*domain.Order, error) {
	return nil, repository.ErrOrderNotFound
}
func (s *stubOrderRepo) ListOrdersByCustomer(context.Context, string) ([]*domain.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) ListOrdersByRestaurant(context.Context, string, []domain.OrderStatus) ([]*domain.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) ListAvailableOrders(context.Context, []string) ([]*domain.Order, error) {
	return nil, nil
}
func (s *stubOrderRepo) SetPaymentHandle(context.Context, string, string, string) error { return nil }
func (s *stubOrderRepo) UpdateOrderStatus(context.Context, string, repository.StatusUpdate) (*domain.Order, error) {
	return nil, repository.ErrOrderNotFound
}

func TestReaper_SweepsOnInterval(t *testing.T) {
	repo := &stubOrderRepo{}
	reaper := NewReaper(repo, 30*time.Minute, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reaper.Run(ctx)

	require.Eventually(t, func() bool {
		return repo.sweepCount() >= 2
	}, time.Second, 5*time.Millisecond, "reaper did not sweep")

	repo.m.Lock()
	cutoff := repo.cutoffs[0]
	repo.m.Unlock()
	assert.WithinDuration(t, time.Now().Add(-30*time.Minute), cutoff, time.Minute)
}

func TestReaper_DisabledWithZeroTTL(t *testing.T) {
	repo := &stubOrderRepo{}
	reaper := NewReaper(repo, 0, time.Millisecond)

	done := make(chan struct{})
	go func() {
		reaper.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Run returned immediately, as it should
	case <-time.After(time.Second):
		t.Fatal("reaper must not run with a zero TTL")
	}
	assert.Equal(t, 0, repo.sweepCount())
}

func TestReaper_StopsOnContextCancel(t *testing.T) {
	repo := &stubOrderRepo{}
	reaper := NewReaper(repo, time.Hour, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return repo.sweepCount() >= 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop on context cancellation")
	}
}
