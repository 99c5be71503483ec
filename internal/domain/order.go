package domain

import "time"

type DeliveryMode string

const (
	DeliveryModeTrain   DeliveryMode = "train"
	DeliveryModeStation DeliveryMode = "station"
	DeliveryModeHome    DeliveryMode = "home"
)

// DeliveryInfo carries the delivery mode plus its mode-specific fields.
// Only the fields required by the declared mode are validated.
type DeliveryInfo struct {
	Mode        DeliveryMode `bson:"mode" json:"mode"`
	TrainNumber string       `bson:"train_number,omitempty" json:"train_number,omitempty"`
	Coach       string       `bson:"coach,omitempty" json:"coach,omitempty"`
	Seat        string       `bson:"seat,omitempty" json:"seat,omitempty"`
	StationName string       `bson:"station_name,omitempty" json:"station_name,omitempty"`
	Address     string       `bson:"address,omitempty" json:"address,omitempty"`
}

// MissingFields returns the required fields absent for the declared mode.
// An unknown mode reports "mode" itself as missing.
func (d DeliveryInfo) MissingFields() []string {
	var missing []string
	switch d.Mode {
	case DeliveryModeTrain:
		if d.TrainNumber == "" {
			missing = append(missing, "train_number")
		}
		if d.Coach == "" {
			missing = append(missing, "coach")
		}
		if d.Seat == "" {
			missing = append(missing, "seat")
		}
	case DeliveryModeStation:
		if d.StationName == "" {
			missing = append(missing, "station_name")
		}
	case DeliveryModeHome:
		if d.Address == "" {
			missing = append(missing, "address")
		}
	default:
		missing = append(missing, "mode")
	}
	return missing
}

type PaymentMethod string

const (
	PaymentMethodUPI    PaymentMethod = "UPI"
	PaymentMethodCard   PaymentMethod = "CARD"
	PaymentMethodWallet PaymentMethod = "WALLET"
	PaymentMethodCOD    PaymentMethod = "COD"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentMethodUPI, PaymentMethodCard, PaymentMethodWallet, PaymentMethodCOD:
		return true
	}
	return false
}

// Online reports whether the method settles through the payment provider.
// COD orders skip the payment wait state entirely.
func (p PaymentMethod) Online() bool {
	return p.Valid() && p != PaymentMethodCOD
}

type SelectedOption struct {
	Name  string `bson:"name" json:"name"`
	Price int64  `bson:"price" json:"price"`
}

// OrderLineItem is frozen at checkout time. Later catalog price changes
// must never affect it.
type OrderLineItem struct {
	ProductID string           `bson:"product_id" json:"product_id"`
	Name      string           `bson:"name" json:"name"`
	Quantity  int              `bson:"quantity" json:"quantity"`
	UnitPrice int64            `bson:"unit_price" json:"unit_price"`
	Note      string           `bson:"note,omitempty" json:"note,omitempty"`
	Options   []SelectedOption `bson:"options,omitempty" json:"options,omitempty"`
}

func (li OrderLineItem) LineTotal() int64 {
	total := li.UnitPrice * int64(li.Quantity)
	for _, opt := range li.Options {
		total += opt.Price
	}
	return total
}

type DeliveryProof struct {
	PhotoURL string `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	Note     string `bson:"note,omitempty" json:"note,omitempty"`
}

type Order struct {
	ID                 string                    `bson:"_id" json:"id"`
	CustomerID         string                    `bson:"customer_id" json:"customer_id"`
	RestaurantID       string                    `bson:"restaurant_id" json:"restaurant_id"`
	LineItems          []OrderLineItem           `bson:"line_items" json:"line_items"`
	Delivery           DeliveryInfo              `bson:"delivery" json:"delivery"`
	PaymentMethod      PaymentMethod             `bson:"payment_method" json:"payment_method"`
	CouponCode         string                    `bson:"coupon_code,omitempty" json:"coupon_code,omitempty"`
	Subtotal           int64                     `bson:"subtotal" json:"subtotal"`
	Discount           int64                     `bson:"discount" json:"discount"`
	Tax                int64                     `bson:"tax" json:"tax"`
	DeliveryFee        int64                     `bson:"delivery_fee" json:"delivery_fee"`
	Total              int64                     `bson:"total" json:"total"`
	Status             OrderStatus               `bson:"status" json:"status"`
	IdempotencyKey     string                    `bson:"idempotency_key" json:"-"`
	AgentID            string                    `bson:"agent_id,omitempty" json:"agent_id,omitempty"`
	StatusTimestamps   map[OrderStatus]time.Time `bson:"status_timestamps" json:"status_timestamps"`
	PaymentRef         string                    `bson:"payment_ref,omitempty" json:"payment_ref,omitempty"`
	PaymentHandle      string                    `bson:"payment_handle,omitempty" json:"-"`
	CancellationReason string                    `bson:"cancellation_reason,omitempty" json:"cancellation_reason,omitempty"`
	Proof              *DeliveryProof            `bson:"proof,omitempty" json:"proof,omitempty"`
	CreatedAt          time.Time                 `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time                 `bson:"updated_at" json:"updated_at"`
}
