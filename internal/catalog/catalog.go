package catalog

import (
	"context"
	"errors"
)

var ErrProductNotFound = errors.New("product not found")

// Product is the read-join projection the cart and checkout flows need
// from the catalog: price, availability and owning restaurant. Nothing
// else from the product document leaks into the order core.
type Product struct {
	ID           string `bson:"_id"`
	Name         string `bson:"name"`
	RestaurantID string `bson:"restaurant_id"`
	Price        int64  `bson:"price"` // minor units
	Available    bool   `bson:"available"`
}

// Catalog is read-only from the order core's perspective.
// Consumers define this interface, not the MongoDB implementation.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	// GetProducts returns the products found keyed by id; missing ids are
	// simply absent from the map, not an error.
	GetProducts(ctx context.Context, ids []string) (map[string]*Product, error)
}
