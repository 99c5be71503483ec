package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoCatalog struct {
	collection *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) Catalog {
	return &mongoCatalog{
		collection: db.Collection("products"),
	}
}

func (c *mongoCatalog) GetProduct(ctx context.Context, id string) (*Product, error) {
	var product Product

	filter := bson.M{"_id": id}
	err := c.collection.FindOne(ctx, filter).Decode(&product)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

func (c *mongoCatalog) GetProducts(ctx context.Context, ids []string) (map[string]*Product, error) {
	if len(ids) == 0 {
		return map[string]*Product{}, nil
	}

	filter := bson.M{"_id": bson.M{"$in": ids}}
	cursor, err := c.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	products := make(map[string]*Product, len(ids))
	for cursor.Next(ctx) {
		var product Product
		if err := cursor.Decode(&product); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products[product.ID] = &product
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration error: %w", err)
	}

	return products, nil
}
