package cache

import (
	"context"
	"errors"

	"github.com/trainbites/trainbites/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, customerID string) (*domain.Cart, error)
	Set(ctx context.Context, customerID string, cart *domain.Cart) error
	Delete(ctx context.Context, customerID string) error
}

var ErrCacheMiss = errors.New("cache miss")
