package service

import (
	"context"
	"errors"

	"github.com/trainbites/trainbites/internal/domain"
	"github.com/trainbites/trainbites/internal/events"
	"github.com/trainbites/trainbites/internal/repository"
)

type DeliveryService struct {
	orders    repository.OrderRepository
	agents    repository.AgentRepository
	publisher events.Publisher
}

func NewDeliveryService(orders repository.OrderRepository, agents repository.AgentRepository, publisher events.Publisher) *DeliveryService {
	return &DeliveryService{
		orders:    orders,
		agents:    agents,
		publisher: publisher,
	}
}

// AvailableOrders is the pool an eligible agent polls: READY_FOR_PICKUP,
// unassigned, minus the orders this agent has declined. The query itself
// is stateless, so a push transport could replace polling without
// touching this logic.
func (s *DeliveryService) AvailableOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	agent, err := s.eligibleAgent(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.orders.ListAvailableOrders(ctx, agent.DeclinedOrderIDs())
}

// Accept is first-acceptance-wins. The agent claim and the order
// transition are each atomic; if the order was taken between the two,
// the claim is rolled back and the caller gets ErrConflict to re-poll.
func (s *DeliveryService) Accept(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	if _, err := s.eligibleAgent(ctx, actor); err != nil {
		return nil, err
	}

	if err := s.agents.ClaimActiveOrder(ctx, actor.ID, orderID); err != nil {
		if errors.Is(err, repository.ErrAgentBusy) {
			return nil, ErrConflict
		}
		return nil, err
	}

	update := repository.StatusUpdate{
		From:          domain.AllowedFrom(domain.TriggerAgentAccepted),
		To:            domain.StatusOutForDelivery,
		AssignAgentID: actor.ID,
	}
	order, err := s.orders.UpdateOrderStatus(ctx, orderID, update)
	if err != nil {
		if relErr := s.agents.ReleaseActiveOrder(ctx, actor.ID, orderID); relErr != nil {
			logger.Warn().Err(relErr).Str("agent_id", actor.ID).Msg("failed to roll back agent claim")
		}
		if errors.Is(err, repository.ErrStatusConflict) {
			// Already taken by another agent, or no longer ready for pickup
			return nil, ErrConflict
		}
		return nil, err
	}

	if pubErr := s.publisher.PublishOrderEvent(ctx, events.NewOrderEvent(events.TypeStatusChanged, order)); pubErr != nil {
		logger.Warn().Err(pubErr).Str("order_id", order.ID).Msg("failed to publish status change event")
	}

	logger.Info().
		Str("order_id", order.ID).
		Str("agent_id", actor.ID).
		Msg("order accepted for delivery")

	return order, nil
}

// Decline hides the order from this agent's pool view only. The order's
// state and its visibility to other agents are untouched.
func (s *DeliveryService) Decline(ctx context.Context, actor domain.Actor, orderID, reason string) error {
	if actor.Role != domain.RoleAgent {
		return ErrUnauthorized
	}
	return s.agents.RecordDecline(ctx, actor.ID, domain.Decline{
		OrderID: orderID,
		Reason:  reason,
	})
}

func (s *DeliveryService) SetAvailability(ctx context.Context, actor domain.Actor, available bool) error {
	if actor.Role != domain.RoleAgent {
		return ErrUnauthorized
	}
	return s.agents.SetAvailability(ctx, actor.ID, available)
}

// eligibleAgent checks the pool-entry preconditions: agent role, the
// availability flag, and no active order in flight.
func (s *DeliveryService) eligibleAgent(ctx context.Context, actor domain.Actor) (*domain.Agent, error) {
	if actor.Role != domain.RoleAgent {
		return nil, ErrUnauthorized
	}

	agent, err := s.agents.GetAgent(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !agent.IsAvailable || agent.ActiveOrderID != "" {
		return nil, ErrUnauthorized
	}
	return agent, nil
}
