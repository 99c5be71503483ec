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

type mongoAgentRepository struct {
	collection *mongo.Collection
}

func NewMongoAgentRepository(db *mongo.Database) AgentRepository {
	return &mongoAgentRepository{
		collection: db.Collection("agents"),
	}
}

func (m *mongoAgentRepository) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	var agent domain.Agent

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&agent)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return &agent, nil
}

func (m *mongoAgentRepository) UpsertAgent(ctx context.Context, agent *domain.Agent) error {
	now := time.Now()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	filter := bson.M{"_id": agent.ID}
	update := bson.M{"$set": agent}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert agent: %w", err)
	}
	return nil
}

func (m *mongoAgentRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{
		"is_available": available,
		"updated_at":   time.Now(),
	}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set availability: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// ClaimActiveOrder only matches an available agent with no active order,
// which makes the exclusivity check and the claim a single write.
func (m *mongoAgentRepository) ClaimActiveOrder(ctx context.Context, agentID, orderID string) error {
	filter := bson.M{
		"_id":             agentID,
		"is_available":    true,
		"active_order_id": bson.M{"$in": []interface{}{nil, ""}},
	}
	update := bson.M{"$set": bson.M{
		"active_order_id": orderID,
		"updated_at":      time.Now(),
	}}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to claim active order: %w", err)
	}
	if result.MatchedCount == 0 {
		count, countErr := m.collection.CountDocuments(ctx, bson.M{"_id": agentID})
		if countErr != nil {
			return fmt.Errorf("failed to check agent existence: %w", countErr)
		}
		if count == 0 {
			return ErrAgentNotFound
		}
		return ErrAgentBusy
	}
	return nil
}

func (m *mongoAgentRepository) ReleaseActiveOrder(ctx context.Context, agentID, orderID string) error {
	filter := bson.M{
		"_id":             agentID,
		"active_order_id": orderID,
	}
	update := bson.M{"$set": bson.M{
		"active_order_id": "",
		"updated_at":      time.Now(),
	}}

	// Releasing a claim the agent no longer holds is fine
	_, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to release active order: %w", err)
	}
	return nil
}

func (m *mongoAgentRepository) RecordDecline(ctx context.Context, agentID string, decline domain.Decline) error {
	if decline.DeclinedAt.IsZero() {
		decline.DeclinedAt = time.Now()
	}

	filter := bson.M{"_id": agentID}
	update := bson.M{
		"$push": bson.M{"declines": decline},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to record decline: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrAgentNotFound
	}
	return nil
}
