package service

import "github.com/trainbites/trainbites/internal/domain"

// Tax is a fixed percentage of (subtotal - discount), rounded half up.
const taxRateBasisPoints = 500

// Delivery fee lookup keyed by delivery mode, in minor units.
var deliveryFees = map[domain.DeliveryMode]int64{
	domain.DeliveryModeStation: 20,
	domain.DeliveryModeHome:    40,
	domain.DeliveryModeTrain:   50,
}

// DiscountPolicy evaluates a promotion against the order subtotal.
// New promotions register a policy under their code; the checkout and
// fulfillment flows never change.
type DiscountPolicy interface {
	Discount(subtotal int64) int64
}

type percentageWithCap struct {
	basisPoints int64
	cap         int64
}

func (p percentageWithCap) Discount(subtotal int64) int64 {
	discount := subtotal * p.basisPoints / 10000
	if discount > p.cap {
		return p.cap
	}
	return discount
}

type DiscountRegistry struct {
	policies map[string]DiscountPolicy
}

// NewDiscountRegistry seeds the promotions currently running:
// FIRST10 grants 10% of the subtotal capped at 5000 minor units.
func NewDiscountRegistry() *DiscountRegistry {
	return &DiscountRegistry{
		policies: map[string]DiscountPolicy{
			"FIRST10": percentageWithCap{basisPoints: 1000, cap: 5000},
		},
	}
}

func (r *DiscountRegistry) Register(code string, policy DiscountPolicy) {
	r.policies[code] = policy
}

// Lookup returns nil for unknown codes; an unknown coupon simply grants
// no discount rather than failing the checkout.
func (r *DiscountRegistry) Lookup(code string) DiscountPolicy {
	if code == "" {
		return nil
	}
	return r.policies[code]
}

type PriceBreakdown struct {
	Subtotal    int64
	Discount    int64
	Tax         int64
	DeliveryFee int64
	Total       int64
}

func computeTotals(subtotal int64, policy DiscountPolicy, mode domain.DeliveryMode) PriceBreakdown {
	var discount int64
	if policy != nil {
		discount = policy.Discount(subtotal)
	}
	if discount > subtotal {
		discount = subtotal
	}

	tax := roundedTax(subtotal - discount)
	fee := deliveryFees[mode]

	return PriceBreakdown{
		Subtotal:    subtotal,
		Discount:    discount,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       subtotal - discount + tax + fee,
	}
}

func roundedTax(amount int64) int64 {
	return (amount*taxRateBasisPoints + 5000) / 10000
}
