package domain

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// Trigger names the external event that drives an order transition.
type Trigger string

const (
	TriggerPaymentSucceeded Trigger = "PAYMENT_SUCCEEDED"
	TriggerPaymentFailed    Trigger = "PAYMENT_FAILED"
	TriggerStartPreparing   Trigger = "START_PREPARING"
	TriggerMarkReady        Trigger = "MARK_READY"
	TriggerAgentAccepted    Trigger = "AGENT_ACCEPTED"
	TriggerDelivered        Trigger = "DELIVERED"
	TriggerCancel           Trigger = "CANCEL"
)

type transitionRule struct {
	from []OrderStatus
	to   OrderStatus
}

var transitions = map[Trigger]transitionRule{
	TriggerPaymentSucceeded: {from: []OrderStatus{StatusPendingPayment}, to: StatusConfirmed},
	TriggerPaymentFailed:    {from: []OrderStatus{StatusPendingPayment}, to: StatusCancelled},
	TriggerStartPreparing:   {from: []OrderStatus{StatusConfirmed}, to: StatusPreparing},
	TriggerMarkReady:        {from: []OrderStatus{StatusPreparing}, to: StatusReadyForPickup},
	TriggerAgentAccepted:    {from: []OrderStatus{StatusReadyForPickup}, to: StatusOutForDelivery},
	TriggerDelivered:        {from: []OrderStatus{StatusOutForDelivery}, to: StatusDelivered},
	TriggerCancel:           {from: []OrderStatus{StatusPendingPayment, StatusConfirmed, StatusPreparing}, to: StatusCancelled},
}

// NextStatus resolves the target status for a trigger fired from the
// current status. ok is false when the trigger is not legal from there.
func NextStatus(current OrderStatus, trigger Trigger) (OrderStatus, bool) {
	rule, known := transitions[trigger]
	if !known {
		return "", false
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, true
		}
	}
	return "", false
}

// AllowedFrom returns the statuses a trigger may fire from. The slice is
// shared; callers must not mutate it.
func AllowedFrom(trigger Trigger) []OrderStatus {
	return transitions[trigger].from
}
