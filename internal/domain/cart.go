package domain

import "time"

type Cart struct {
	ID         string     `bson:"_id,omitempty" json:"-"`
	CustomerID string     `bson:"customer_id" json:"customer_id"`
	Items      []CartItem `bson:"items" json:"items"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ProductID string    `bson:"product_id" json:"product_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	UnitPrice int64     `bson:"unit_price" json:"unit_price"` // minor units, snapshotted at add time
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

// Total is always derived from the stored snapshot prices, never persisted.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

func (c *Cart) Item(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}
