package domain

import "time"

// Agent is a delivery agent. ActiveOrderID is the exclusivity guard:
// an agent carries at most one order at a time.
type Agent struct {
	ID            string    `bson:"_id" json:"id"`
	Name          string    `bson:"name" json:"name"`
	IsAvailable   bool      `bson:"is_available" json:"is_available"`
	ActiveOrderID string    `bson:"active_order_id,omitempty" json:"active_order_id,omitempty"`
	Declines      []Decline `bson:"declines,omitempty" json:"-"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

// Decline hides an order from this agent's pool view only; the order
// stays available to everyone else.
type Decline struct {
	OrderID    string    `bson:"order_id" json:"order_id"`
	Reason     string    `bson:"reason,omitempty" json:"reason,omitempty"`
	DeclinedAt time.Time `bson:"declined_at" json:"declined_at"`
}

func (a *Agent) HasDeclined(orderID string) bool {
	for _, d := range a.Declines {
		if d.OrderID == orderID {
			return true
		}
	}
	return false
}

func (a *Agent) DeclinedOrderIDs() []string {
	ids := make([]string, 0, len(a.Declines))
	for _, d := range a.Declines {
		ids = append(ids, d.OrderID)
	}
	return ids
}
