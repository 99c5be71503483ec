package events

import (
	"context"
	"time"

	"github.com/trainbites/trainbites/internal/domain"
)

const (
	TypeOrderCreated  = "order.created"
	TypeStatusChanged = "order.status_changed"
)

// OrderEvent is what downstream consumers (notification fan-out, seller
// dashboards) see for every order lifecycle change.
type OrderEvent struct {
	Type         string             `json:"type"`
	OrderID      string             `json:"order_id"`
	CustomerID   string             `json:"customer_id"`
	RestaurantID string             `json:"restaurant_id"`
	AgentID      string             `json:"agent_id,omitempty"`
	Status       domain.OrderStatus `json:"status"`
	Total        int64              `json:"total"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

type Publisher interface {
	PublishOrderEvent(ctx context.Context, event *OrderEvent) error
}

// NoopPublisher is used in tests and when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(context.Context, *OrderEvent) error {
	return nil
}

func NewOrderEvent(eventType string, order *domain.Order) *OrderEvent {
	return &OrderEvent{
		Type:         eventType,
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		AgentID:      order.AgentID,
		Status:       order.Status,
		Total:        order.Total,
		OccurredAt:   time.Now(),
	}
}
