package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/trainbites/trainbites/internal/cache"
	"github.com/trainbites/trainbites/internal/catalog"
	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/repository"
	"golang.org/x/sync/singleflight"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog catalog.Catalog
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, cat catalog.Catalog) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: cat,
	}
}

// GetCart returns the customer's cart, pruning any item whose product no
// longer exists in the catalog. The prune runs on cached reads as well
// as repo reads, and a pruned cart is persisted before it is returned so
// the dead items do not come back later.
func (s *CartService) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(customerID, func() (interface{}, error) {

		cart, err := s.cache.Get(ctx, customerID)
		if err == nil {
			// Cached carts get the same prune as repo reads: a product
			// deleted inside the cache TTL must not linger on the cart
			pruned, changed, errPrune := s.pruneDeadItems(ctx, cart)
			if errPrune != nil {
				return nil, errPrune
			}
			if changed {
				s.invalidateCache(customerID)
			}
			return pruned, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("cart cache get error") // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, customerID)
		if errGet != nil && errors.Is(errGet, repository.ErrCartNotFound) { // not found cart return empty cart
			return &domain.Cart{
				CustomerID: customerID,
				Items:      nil,
				CreatedAt:  time.Now(),
				UpdatedAt:  time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		cart, _, errPrune := s.pruneDeadItems(ctx, cart)
		if errPrune != nil {
			return nil, errPrune
		}

		// set cache
		go func() {
			errSet := s.cache.Set(context.Background(), customerID, cart)
			if errSet != nil {
				logger.Warn().Err(errSet).Msg("cart cache set error")
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// pruneDeadItems reports whether any item was dropped so callers can
// invalidate stale cache entries.
func (s *CartService) pruneDeadItems(ctx context.Context, cart *domain.Cart) (*domain.Cart, bool, error) {
	if len(cart.Items) == 0 {
		return cart, false, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, false, err
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if _, ok := products[item.ProductID]; ok {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(cart.Items) {
		return cart, false, nil
	}

	cart.Items = kept
	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		return nil, false, err
	}
	return cart, true, nil
}

// AddItem snapshots the product's current catalog price onto the cart
// item. Re-adding an existing product increments its quantity and
// refreshes the snapshot to the current price.
func (s *CartService) AddItem(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	item := domain.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: product.Price,
	}
	if errAdd := s.repo.AddItem(ctx, customerID, item); errAdd != nil {
		logger.Error().Err(errAdd).Str("customer_id", customerID).Msg("repo add item error")
		return nil, errAdd
	}

	s.invalidateCache(customerID)
	return s.GetCart(ctx, customerID)
}

// SetQuantity overwrites an item's quantity; zero or less removes the
// item. Updating an absent item is an error, never a silent insert.
func (s *CartService) SetQuantity(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, customerID, productID)
	}

	if err := s.repo.SetItemQuantity(ctx, customerID, productID, quantity); err != nil {
		return nil, err
	}

	s.invalidateCache(customerID)
	return s.GetCart(ctx, customerID)
}

func (s *CartService) RemoveItem(ctx context.Context, customerID, productID string) (*domain.Cart, error) {
	if err := s.repo.RemoveItem(ctx, customerID, productID); err != nil {
		logger.Error().Err(err).Str("customer_id", customerID).Msg("repo remove item error")
		return nil, err
	}

	s.invalidateCache(customerID)
	return s.GetCart(ctx, customerID)
}

func (s *CartService) Clear(ctx context.Context, customerID string) error {
	if err := s.repo.ClearCart(ctx, customerID); err != nil {
		logger.Error().Err(err).Str("customer_id", customerID).Msg("repo clear cart error")
		return err
	}

	s.invalidateCache(customerID)
	return nil
}

// RemovePurchased drops only the checked-out products from the live
// cart; anything the customer did not submit stays for later.
func (s *CartService) RemovePurchased(ctx context.Context, customerID string, productIDs []string) error {
	if err := s.repo.RemoveItems(ctx, customerID, productIDs); err != nil {
		return err
	}

	s.invalidateCache(customerID)
	return nil
}

func (s *CartService) invalidateCache(customerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, customerID); err != nil {
		logger.Warn().Err(err).Str("customer_id", customerID).Msg("cart cache invalidate error")
	}
}
