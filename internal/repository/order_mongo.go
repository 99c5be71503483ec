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

type mongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) OrderRepository {
	return &mongoOrderRepository{
		collection: db.Collection("orders"),
	}
}

func (m *mongoOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	_, err := m.collection.InsertOne(ctx, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (m *mongoOrderRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *mongoOrderRepository) GetOrderByIdempotencyKey(ctx context.Context, customerID, key string) (*domain.Order, error) {
	return m.findOne(ctx, bson.M{"customer_id": customerID, "idempotency_key": key})
}

func (m *mongoOrderRepository) GetOrderByPaymentRef(ctx context.Context, ref string) (*domain.Order, error) {
	return m.findOne(ctx, bson.M{"payment_ref": ref})
}

func (m *mongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var order domain.Order
	err := m.collection.FindOne(ctx, filter).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (m *mongoOrderRepository) ListOrdersByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	filter := bson.M{"customer_id": customerID}
	return m.findMany(ctx, filter)
}

func (m *mongoOrderRepository) ListOrdersByRestaurant(ctx context.Context, restaurantID string, statuses []domain.OrderStatus) ([]*domain.Order, error) {
	filter := bson.M{"restaurant_id": restaurantID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	return m.findMany(ctx, filter)
}

func (m *mongoOrderRepository) ListAvailableOrders(ctx context.Context, excludeIDs []string) ([]*domain.Order, error) {
	filter := bson.M{
		"status":   domain.StatusReadyForPickup,
		"agent_id": bson.M{"$in": []interface{}{nil, ""}},
	}
	if len(excludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": excludeIDs}
	}
	return m.findMany(ctx, filter)
}

func (m *mongoOrderRepository) findMany(ctx context.Context, filter bson.M) ([]*domain.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.Order
	for cursor.Next(ctx) {
		var order domain.Order
		if err := cursor.Decode(&order); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, &order)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration error: %w", err)
	}
	return orders, nil
}

func (m *mongoOrderRepository) SetPaymentHandle(ctx context.Context, orderID, paymentRef, handle string) error {
	filter := bson.M{"_id": orderID}
	update := bson.M{"$set": bson.M{
		"payment_ref":    paymentRef,
		"payment_handle": handle,
		"updated_at":     time.Now(),
	}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set payment handle: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// UpdateOrderStatus performs the compare-and-set transition. The filter
// pins the current status (and, for acceptance, unassignment), so two
// racing writers cannot both match; the loser gets ErrStatusConflict.
func (m *mongoOrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, update StatusUpdate) (*domain.Order, error) {
	at := update.At
	if at.IsZero() {
		at = time.Now()
	}

	filter := bson.M{
		"_id":    orderID,
		"status": bson.M{"$in": update.From},
	}
	if update.AssignAgentID != "" {
		filter["agent_id"] = bson.M{"$in": []interface{}{nil, ""}}
	}

	set := bson.M{
		"status":     update.To,
		"updated_at": at,
		fmt.Sprintf("status_timestamps.%s", update.To): at,
	}
	if update.AssignAgentID != "" {
		set["agent_id"] = update.AssignAgentID
	}
	if update.Proof != nil {
		set["proof"] = update.Proof
	}
	if update.CancellationReason != "" {
		set["cancellation_reason"] = update.CancellationReason
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var order domain.Order
	err := m.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&order)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	// No match: either the order is gone or its state moved under us
	count, countErr := m.collection.CountDocuments(ctx, bson.M{"_id": orderID})
	if countErr != nil {
		return nil, fmt.Errorf("failed to check order existence: %w", countErr)
	}
	if count == 0 {
		return nil, ErrOrderNotFound
	}
	return nil, ErrStatusConflict
}

func (m *mongoOrderRepository) CancelStalePendingPayments(ctx context.Context, before time.Time, reason string) (int64, error) {
	now := time.Now()
	filter := bson.M{
		"status":     domain.StatusPendingPayment,
		"created_at": bson.M{"$lt": before},
	}
	update := bson.M{"$set": bson.M{
		"status":              domain.StatusCancelled,
		"cancellation_reason": reason,
		"updated_at":          now,
		fmt.Sprintf("status_timestamps.%s", domain.StatusCancelled): now,
	}}

	result, err := m.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel stale orders: %w", err)
	}
	return result.ModifiedCount, nil
}

func (m *mongoOrderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// Idempotent checkout: one order per (customer, key)
			Keys:    bson.D{{Key: "customer_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "payment_ref", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "agent_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "restaurant_id", Value: 1}, {Key: "status", Value: 1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	return nil
}
