package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/trainbites/trainbites/internal/catalog"
	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/events"
	"github.com/trainbites/trainbites/internal/payment"
	"github.com/trainbites/trainbites/internal/repository"
)

type CheckoutItem struct {
	ProductID string
	Quantity  int
	Note      string
	Options   []domain.SelectedOption
}

// CheckoutRequest carries an explicit line-item list: the client may
// submit a curated subset of the live cart, and only those products are
// cleared from it afterwards.
type CheckoutRequest struct {
	CustomerID     string
	Items          []CheckoutItem
	Delivery       domain.DeliveryInfo
	PaymentMethod  domain.PaymentMethod
	CouponCode     string
	IdempotencyKey string
}

type CheckoutResult struct {
	Order *domain.Order
	// PaymentHandle is empty for COD orders.
	PaymentHandle string
}

type CheckoutService struct {
	orders    repository.OrderRepository
	carts     *CartService
	catalog   catalog.Catalog
	payments  payment.Provider
	publisher events.Publisher
	discounts *DiscountRegistry
	currency  string
}

func NewCheckoutService(
	orders repository.OrderRepository,
	carts *CartService,
	cat catalog.Catalog,
	payments payment.Provider,
	publisher events.Publisher,
	discounts *DiscountRegistry,
	currency string,
) *CheckoutService {
	return &CheckoutService{
		orders:    orders,
		carts:     carts,
		catalog:   cat,
		payments:  payments,
		publisher: publisher,
		discounts: discounts,
		currency:  currency,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	if req.IdempotencyKey == "" {
		return nil, &ValidationError{Message: "idempotency_key is required"}
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
	}

	// Idempotent retry: same (customer, key) resolves to the same order
	existing, err := s.orders.GetOrderByIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey)
	if err == nil {
		logger.Info().
			Str("order_id", existing.ID).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("duplicate checkout request, replaying existing order")
		return s.replayOrder(ctx, existing)
	}
	if !errors.Is(err, repository.ErrOrderNotFound) {
		return nil, err
	}

	if missing := req.Delivery.MissingFields(); len(missing) > 0 {
		return nil, missingFieldsError(missing)
	}

	lineItems, restaurantID, err := s.resolveLineItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	for _, li := range lineItems {
		subtotal += li.LineTotal()
	}
	breakdown := computeTotals(subtotal, s.discounts.Lookup(req.CouponCode), req.Delivery.Mode)

	now := time.Now()
	status := domain.StatusPendingPayment
	if req.PaymentMethod == domain.PaymentMethodCOD {
		// COD skips the payment wait state entirely
		status = domain.StatusConfirmed
	}

	order := &domain.Order{
		ID:               uuid.NewString(),
		CustomerID:       req.CustomerID,
		RestaurantID:     restaurantID,
		LineItems:        lineItems,
		Delivery:         req.Delivery,
		PaymentMethod:    req.PaymentMethod,
		CouponCode:       req.CouponCode,
		Subtotal:         breakdown.Subtotal,
		Discount:         breakdown.Discount,
		Tax:              breakdown.Tax,
		DeliveryFee:      breakdown.DeliveryFee,
		Total:            breakdown.Total,
		Status:           status,
		IdempotencyKey:   req.IdempotencyKey,
		StatusTimestamps: map[domain.OrderStatus]time.Time{status: now},
		CreatedAt:        now,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			// Lost the insert race to a concurrent retry with the same key
			winner, getErr := s.orders.GetOrderByIdempotencyKey(ctx, req.CustomerID, req.IdempotencyKey)
			if getErr != nil {
				return nil, getErr
			}
			return s.replayOrder(ctx, winner)
		}
		return nil, err
	}

	handle := ""
	if req.PaymentMethod.Online() {
		intent, intentErr := s.payments.CreateIntent(ctx, order.ID, order.Total, s.currency)
		if intentErr != nil {
			// The order stays PENDING_PAYMENT without a payment reference;
			// a retry with the same idempotency key re-attempts the intent
			// in replayOrder, and the reaper (if enabled) eventually
			// collects abandoned ones.
			logger.Error().Err(intentErr).Str("order_id", order.ID).Msg("payment intent creation failed")
			return nil, intentErr
		}
		if setErr := s.orders.SetPaymentHandle(ctx, order.ID, intent.Reference, intent.ClientSecret); setErr != nil {
			return nil, setErr
		}
		order.PaymentRef = intent.Reference
		order.PaymentHandle = intent.ClientSecret
		handle = intent.ClientSecret
	}

	purchased := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		purchased = append(purchased, item.ProductID)
	}
	if clearErr := s.carts.RemovePurchased(ctx, req.CustomerID, purchased); clearErr != nil {
		// The order exists; a stale cart is recoverable, failing the
		// checkout now is not
		logger.Warn().Err(clearErr).Str("order_id", order.ID).Msg("failed to clear purchased items from cart")
	}

	if pubErr := s.publisher.PublishOrderEvent(ctx, events.NewOrderEvent(events.TypeOrderCreated, order)); pubErr != nil {
		logger.Warn().Err(pubErr).Str("order_id", order.ID).Msg("failed to publish order created event")
	}

	logger.Info().
		Str("order_id", order.ID).
		Str("customer_id", order.CustomerID).
		Str("status", order.Status.String()).
		Int64("total", order.Total).
		Msg("order created")

	return &CheckoutResult{Order: order, PaymentHandle: handle}, nil
}

// replayOrder resolves a duplicate checkout to the order the key already
// created. An online order left without a payment reference (the
// provider was down when it was created) gets its intent created now;
// otherwise no retry could ever return a payable handle.
func (s *CheckoutService) replayOrder(ctx context.Context, order *domain.Order) (*CheckoutResult, error) {
	if order.Status == domain.StatusPendingPayment && order.PaymentMethod.Online() && order.PaymentRef == "" {
		intent, err := s.payments.CreateIntent(ctx, order.ID, order.Total, s.currency)
		if err != nil {
			return nil, err
		}
		if err := s.orders.SetPaymentHandle(ctx, order.ID, intent.Reference, intent.ClientSecret); err != nil {
			return nil, err
		}
		order.PaymentRef = intent.Reference
		order.PaymentHandle = intent.ClientSecret
		logger.Info().Str("order_id", order.ID).Msg("payment intent created on checkout retry")
	}
	return &CheckoutResult{Order: order, PaymentHandle: order.PaymentHandle}, nil
}

// resolveLineItems re-reads price and availability from the catalog for
// every requested item. Cart snapshot prices are not trusted here:
// prices may have moved since the items were added.
func (s *CheckoutService) resolveLineItems(ctx context.Context, items []CheckoutItem) ([]domain.OrderLineItem, string, error) {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, "", err
	}

	restaurantID := ""
	lineItems := make([]domain.OrderLineItem, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok || !product.Available {
			return nil, "", ErrProductUnavailable
		}

		if restaurantID == "" {
			restaurantID = product.RestaurantID
		} else if product.RestaurantID != restaurantID {
			return nil, "", &ValidationError{Message: "all items must belong to the same restaurant"}
		}

		lineItems = append(lineItems, domain.OrderLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			Note:      item.Note,
			Options:   item.Options,
		})
	}

	return lineItems, restaurantID, nil
}
