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

// MongoTemplateStore implements TemplateStore over a mongo collection.
type MongoTemplateStore struct {
	coll *mongo.Collection
}

// NewMongoTemplateStore creates a template store over the given collection.
func NewMongoTemplateStore(coll *mongo.Collection) *MongoTemplateStore {
	return &MongoTemplateStore{coll: coll}
}

func (s *MongoTemplateStore) Insert(ctx context.Context, tpl *models.MessageTemplate) error {
	res, err := s.coll.InsertOne(ctx, tpl)
	if err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		tpl.ID = id
	}
	return nil
}

func (s *MongoTemplateStore) ByID(ctx context.Context, id primitive.ObjectID) (*models.MessageTemplate, error) {
	var tpl models.MessageTemplate
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&tpl)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch template: %w", err)
	}
	return &tpl, nil
}

func (s *MongoTemplateStore) All(ctx context.Context) ([]models.MessageTemplate, error) {
	return s.findAll(ctx, bson.D{})
}

func (s *MongoTemplateStore) Active(ctx context.Context) ([]models.MessageTemplate, error) {
	return s.findAll(ctx, bson.D{{Key: "ativo", Value: true}})
}

func (s *MongoTemplateStore) Update(ctx context.Context, tpl *models.MessageTemplate) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: tpl.ID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "nome_template", Value: tpl.Name},
			{Key: "texto", Value: tpl.Body},
			{Key: "ativo", Value: tpl.Active},
		}}},
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoTemplateStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoTemplateStore) findAll(ctx context.Context, filter bson.D) ([]models.MessageTemplate, error) {
	cur, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.MessageTemplate
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode templates: %w", err)
	}
	return out, nil
}
