package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trainbites/trainbites/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoCartRepository) GetCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"customer_id": customerID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *mongoCartRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()

	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"customer_id": cart.CustomerID}
	update := bson.M{"$set": bson.M{
		"customer_id": cart.CustomerID,
		"items":       cart.Items,
		"created_at":  cart.CreatedAt,
		"updated_at":  cart.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m *mongoCartRepository) AddItem(ctx context.Context, customerID string, item domain.CartItem) error {
	now := time.Now()
	item.AddedAt = now

	filter := bson.M{"customer_id": customerID}

	// First, check if cart exists
	var existingCart domain.Cart
	err := m.collection.FindOne(ctx, filter).Decode(&existingCart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Cart doesn't exist, create it lazily with the item
			cart := &domain.Cart{
				CustomerID: customerID,
				Items:      []domain.CartItem{item},
				CreatedAt:  now,
				UpdatedAt:  now,
			}

			_, err = m.collection.InsertOne(ctx, cart)
			if err != nil {
				return fmt.Errorf("failed to create cart with item: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	if existingCart.Item(item.ProductID) != nil {
		// Re-adding increments quantity and refreshes the snapshot price
		update := bson.M{
			"$inc": bson.M{
				"items.$[elem].quantity": item.Quantity,
			},
			"$set": bson.M{
				"items.$[elem].unit_price": item.UnitPrice,
				"items.$[elem].added_at":   now,
				"updated_at":               now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": item.ProductID},
			},
		})

		_, err = m.collection.UpdateOne(ctx, filter, update, arrayFilters)
		if err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
	} else {
		update := bson.M{
			"$push": bson.M{"items": item},
			"$set":  bson.M{"updated_at": now},
		}

		_, err = m.collection.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to add new item: %w", err)
		}
	}

	return nil
}

func (m *mongoCartRepository) SetItemQuantity(ctx context.Context, customerID, productID string, quantity int) error {
	filter := bson.M{
		"customer_id":      customerID,
		"items.product_id": productID,
	}

	update := bson.M{
		"$set": bson.M{
			"items.$[elem].quantity": quantity,
			"updated_at":             time.Now(),
		},
	}

	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"elem.product_id": productID},
		},
	})

	result, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *mongoCartRepository) RemoveItem(ctx context.Context, customerID, productID string) error {
	return m.RemoveItems(ctx, customerID, []string{productID})
}

func (m *mongoCartRepository) RemoveItems(ctx context.Context, customerID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	filter := bson.M{"customer_id": customerID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": bson.M{"$in": productIDs}},
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	// Removal is idempotent: a missing cart or absent item is not an error
	_, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove items: %w", err)
	}

	return nil
}

func (m *mongoCartRepository) ClearCart(ctx context.Context, customerID string) error {
	filter := bson.M{"customer_id": customerID}
	update := bson.M{
		"$set": bson.M{
			"items":      []domain.CartItem{},
			"updated_at": time.Now(),
		},
	}

	// The cart document is kept and reused, never deleted
	_, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return nil
}

func (m *mongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "customer_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}

	return nil
}
