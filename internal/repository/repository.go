package repository

import (
	"context"
	"errors"
	"time"

	"github.com/trainbites/trainbites/internal/domain"
)

var (
	ErrCartNotFound            = errors.New("cart not found")
	ErrItemNotFound            = errors.New("item not found in cart")
	ErrOrderNotFound           = errors.New("order not found")
	ErrAgentNotFound           = errors.New("delivery agent not found")
	ErrDuplicateIdempotencyKey = errors.New("order with this idempotency key already exists")
	ErrStatusConflict          = errors.New("order was updated concurrently")
	ErrAgentBusy               = errors.New("agent already has an active order")
)

// CartRepository defines the interface for cart data operations.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, customerID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	// AddItem merges by product: an existing item gets its quantity
	// incremented and its snapshot price refreshed to item.UnitPrice.
	AddItem(ctx context.Context, customerID string, item domain.CartItem) error
	SetItemQuantity(ctx context.Context, customerID, productID string, quantity int) error
	// RemoveItem is idempotent: removing an absent item succeeds silently.
	RemoveItem(ctx context.Context, customerID, productID string) error
	// RemoveItems drops only the listed products, leaving the rest of the
	// cart for a later purchase.
	RemoveItems(ctx context.Context, customerID string, productIDs []string) error
	ClearCart(ctx context.Context, customerID string) error
}

// StatusUpdate describes one atomic compare-and-set transition of an
// order. The update matches only when the order's current status is in
// From (and, for acceptance, the order is still unassigned); a miss
// surfaces as ErrStatusConflict so the caller can distinguish a lost
// race from a missing order.
type StatusUpdate struct {
	From               []domain.OrderStatus
	To                 domain.OrderStatus
	AssignAgentID      string // when non-empty, also requires the order to be unassigned
	Proof              *domain.DeliveryProof
	CancellationReason string
	At                 time.Time
}

type OrderRepository interface {
	// CreateOrder returns ErrDuplicateIdempotencyKey when an order with the
	// same (customer, idempotency key) pair already exists.
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*domain.Order, error)
	GetOrderByPaymentRef(ctx context.Context, ref string) (*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
	ListOrdersByRestaurant(ctx context.Context, restaurantID string, statuses []domain.OrderStatus) ([]*domain.Order, error)
	// ListAvailableOrders returns READY_FOR_PICKUP, unassigned orders,
	// excluding the given ids (an agent's declined orders).
	ListAvailableOrders(ctx context.Context, excludeIDs []string) ([]*domain.Order, error)
	SetPaymentHandle(ctx context.Context, orderID, paymentRef, handle string) error
	UpdateOrderStatus(ctx context.Context, orderID string, update StatusUpdate) (*domain.Order, error)
	// CancelStalePendingPayments cancels PENDING_PAYMENT orders created
	// before the cutoff and returns how many were cancelled.
	CancelStalePendingPayments(ctx context.Context, before time.Time, reason string) (int64, error)
}

type AgentRepository interface {
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	UpsertAgent(ctx context.Context, agent *domain.Agent) error
	SetAvailability(ctx context.Context, id string, available bool) error
	// ClaimActiveOrder atomically marks the agent as carrying orderID.
	// Fails with ErrAgentBusy unless the agent is available and idle.
	ClaimActiveOrder(ctx context.Context, agentID, orderID string) error
	// ReleaseActiveOrder clears the claim; releasing a claim the agent does
	// not hold is a no-op.
	ReleaseActiveOrder(ctx context.Context, agentID, orderID string) error
	RecordDecline(ctx context.Context, agentID string, decline domain.Decline) error
}
