package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jordanlanch/salesbot/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoAgentStore implements AgentStore over a mongo collection.
type MongoAgentStore struct {
	coll *mongo.Collection
}

// NewMongoAgentStore creates an agent store over the given collection.
func NewMongoAgentStore(coll *mongo.Collection) *MongoAgentStore {
	return &MongoAgentStore{coll: coll}
}

func (s *MongoAgentStore) Insert(ctx context.Context, agent *models.Agent) error {
	res, err := s.coll.InsertOne(ctx, agent)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert agent: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		agent.ID = id
	}
	return nil
}

func (s *MongoAgentStore) ByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoAgentStore) ByLogin(ctx context.Context, login string) (*models.Agent, error) {
	return s.findOne(ctx, bson.D{{Key: "usuario_login", Value: login}})
}

func (s *MongoAgentStore) All(ctx context.Context) ([]models.Agent, error) {
	return s.findAll(ctx, bson.D{})
}

func (s *MongoAgentStore) ByRole(ctx context.Context, role models.Role) ([]models.Agent, error) {
	return s.findAll(ctx, bson.D{{Key: "role", Value: role}})
}

func (s *MongoAgentStore) Team(ctx context.Context, supervisorID primitive.ObjectID) ([]models.Agent, error) {
	return s.findAll(ctx, bson.D{{Key: "supervisor_id", Value: supervisorID}})
}

func (s *MongoAgentStore) Independent(ctx context.Context) ([]models.Agent, error) {
	return s.findAll(ctx, bson.D{
		{Key: "role", Value: models.RoleAgent},
		{Key: "supervisor_id", Value: nil},
	})
}

func (s *MongoAgentStore) SetTelegramID(ctx context.Context, id primitive.ObjectID, telegramID int64) error {
	return s.setField(ctx, id, bson.D{{Key: "usuario_telegram", Value: telegramID}})
}

func (s *MongoAgentStore) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	return s.setField(ctx, id, bson.D{{Key: "role", Value: role}})
}

func (s *MongoAgentStore) SetSupervisor(ctx context.Context, id primitive.ObjectID, supervisorID *primitive.ObjectID) error {
	return s.setField(ctx, id, bson.D{{Key: "supervisor_id", Value: supervisorID}})
}

func (s *MongoAgentStore) setField(ctx context.Context, id primitive.ObjectID, set bson.D) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoAgentStore) findOne(ctx context.Context, filter bson.D) (*models.Agent, error) {
	var agent models.Agent
	err := s.coll.FindOne(ctx, filter).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent: %w", err)
	}
	return &agent, nil
}

func (s *MongoAgentStore) findAll(ctx context.Context, filter bson.D) ([]models.Agent, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Agent
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}
	return out, nil
}
