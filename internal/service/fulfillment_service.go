package service

import (
	"context"
	"errors"

	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/events"
	"github.com/trainbites/trainbites/internal/payment"
	"github.com/trainbites/trainbites/internal/repository"
)

// TransitionOptions carries the trigger-specific extras: delivery proof
// for DELIVERED, a reason for CANCEL.
type TransitionOptions struct {
	Proof  *domain.DeliveryProof
	Reason string
}

type FulfillmentService struct {
	orders    repository.OrderRepository
	agents    repository.AgentRepository
	publisher events.Publisher
}

func NewFulfillmentService(orders repository.OrderRepository, agents repository.AgentRepository, publisher events.Publisher) *FulfillmentService {
	return &FulfillmentService{
		orders:    orders,
		agents:    agents,
		publisher: publisher,
	}
}

func (s *FulfillmentService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, ErrUnauthorized
	}
	return order, nil
}

func (s *FulfillmentService) ListCustomerOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	return s.orders.ListOrdersByCustomer(ctx, actor.ID)
}

func (s *FulfillmentService) ListRestaurantOrders(ctx context.Context, actor domain.Actor, statuses []domain.OrderStatus) ([]*domain.Order, error) {
	if actor.Role != domain.RoleSeller && actor.Role != domain.RoleAdmin {
		return nil, ErrUnauthorized
	}
	return s.orders.ListOrdersByRestaurant(ctx, actor.ID, statuses)
}

// ApplyTrigger drives one state-machine transition on behalf of a seller,
// customer, agent or admin. Payment callbacks go through
// HandlePaymentEvent instead, and agent acceptance goes through the
// delivery workflow, since both carry extra bookkeeping.
func (s *FulfillmentService) ApplyTrigger(ctx context.Context, actor domain.Actor, orderID string, trigger domain.Trigger, opts TransitionOptions) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := authorizeTrigger(actor, order, trigger); err != nil {
		return nil, err
	}

	to, ok := domain.NextStatus(order.Status, trigger)
	if !ok {
		return nil, ErrInvalidStateTransition
	}

	update := repository.StatusUpdate{
		From: domain.AllowedFrom(trigger),
		To:   to,
	}
	if trigger == domain.TriggerDelivered {
		update.Proof = opts.Proof
	}
	if trigger == domain.TriggerCancel {
		update.CancellationReason = opts.Reason
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, orderID, update)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, s.classifyConflict(ctx, orderID, trigger)
		}
		return nil, err
	}

	if trigger == domain.TriggerDelivered && updated.AgentID != "" {
		// Free the agent for the next order
		if relErr := s.agents.ReleaseActiveOrder(ctx, updated.AgentID, updated.ID); relErr != nil {
			logger.Warn().Err(relErr).Str("order_id", updated.ID).Msg("failed to release agent claim")
		}
	}

	s.publishStatusChange(ctx, updated)
	return updated, nil
}

// HandlePaymentEvent applies an asynchronous payment-provider callback.
// Callbacks may be redelivered or arrive out of order: a failure (or
// success) for an order already past PENDING_PAYMENT is acknowledged
// silently, never treated as an error.
func (s *FulfillmentService) HandlePaymentEvent(ctx context.Context, event *payment.CallbackEvent) error {
	order, err := s.orders.GetOrderByPaymentRef(ctx, event.PaymentRef)
	if err != nil {
		return err
	}

	if order.Status != domain.StatusPendingPayment {
		logger.Info().
			Str("order_id", order.ID).
			Str("status", order.Status.String()).
			Msg("payment callback for already resolved order, ignoring")
		return nil
	}

	trigger := domain.TriggerPaymentFailed
	update := repository.StatusUpdate{
		From:               domain.AllowedFrom(trigger),
		To:                 domain.StatusCancelled,
		CancellationReason: event.FailureReason,
	}
	if event.Succeeded {
		trigger = domain.TriggerPaymentSucceeded
		update = repository.StatusUpdate{
			From: domain.AllowedFrom(trigger),
			To:   domain.StatusConfirmed,
		}
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, order.ID, update)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Another delivery of the same callback won the race
			return nil
		}
		return err
	}

	s.publishStatusChange(ctx, updated)
	return nil
}

// classifyConflict decides what a CAS miss means: if the trigger is no
// longer legal from the order's current status it is an illegal
// transition, otherwise a transient race the caller may retry.
func (s *FulfillmentService) classifyConflict(ctx context.Context, orderID string, trigger domain.Trigger) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if _, ok := domain.NextStatus(order.Status, trigger); !ok {
		return ErrInvalidStateTransition
	}
	return ErrConflict
}

func (s *FulfillmentService) publishStatusChange(ctx context.Context, order *domain.Order) {
	if err := s.publisher.PublishOrderEvent(ctx, events.NewOrderEvent(events.TypeStatusChanged, order)); err != nil {
		logger.Warn().Err(err).Str("order_id", order.ID).Msg("failed to publish status change event")
	}
	logger.Info().
		Str("order_id", order.ID).
		Str("status", order.Status.String()).
		Msg("order status changed")
}

func canView(actor domain.Actor, order *domain.Order) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return order.CustomerID == actor.ID
	case domain.RoleSeller:
		return order.RestaurantID == actor.ID
	case domain.RoleAgent:
		return order.AgentID == actor.ID
	}
	return false
}

func authorizeTrigger(actor domain.Actor, order *domain.Order, trigger domain.Trigger) error {
	if actor.Role == domain.RoleAdmin {
		return nil
	}

	switch trigger {
	case domain.TriggerStartPreparing, domain.TriggerMarkReady:
		if actor.Role == domain.RoleSeller && order.RestaurantID == actor.ID {
			return nil
		}
	case domain.TriggerDelivered:
		if actor.Role == domain.RoleAgent && order.AgentID == actor.ID {
			return nil
		}
	case domain.TriggerCancel:
		if actor.Role == domain.RoleCustomer && order.CustomerID == actor.ID {
			return nil
		}
		if actor.Role == domain.RoleSeller && order.RestaurantID == actor.ID {
			return nil
		}
	}
	return ErrUnauthorized
}
