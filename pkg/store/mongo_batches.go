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

// MongoBatchStore implements BatchStore over a mongo collection.
type MongoBatchStore struct {
	coll *mongo.Collection
}

// NewMongoBatchStore creates a batch store over the given collection.
func NewMongoBatchStore(coll *mongo.Collection) *MongoBatchStore {
	return &MongoBatchStore{coll: coll}
}

func (s *MongoBatchStore) Insert(ctx context.Context, batch *models.ImportBatch) error {
	res, err := s.coll.InsertOne(ctx, batch)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		batch.ID = id
	}
	return nil
}

func (s *MongoBatchStore) ByName(ctx context.Context, name string) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	err := s.coll.FindOne(ctx, bson.D{{Key: "nome_base", Value: name}}).Decode(&batch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch: %w", err)
	}
	return &batch, nil
}

func (s *MongoBatchStore) All(ctx context.Context) ([]models.ImportBatch, error) {
	cur, err := s.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.ImportBatch
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode batches: %w", err)
	}
	return out, nil
}

func (s *MongoBatchStore) ActiveNames(ctx context.Context) ([]string, error) {
	cur, err := s.coll.Find(ctx, bson.D{{Key: "ativa", Value: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to query active batches: %w", err)
	}
	defer cur.Close(ctx)

	var batches []models.ImportBatch
	if err := cur.All(ctx, &batches); err != nil {
		return nil, fmt.Errorf("failed to decode active batches: %w", err)
	}
	names := make([]string, len(batches))
	for i, b := range batches {
		names[i] = b.Name
	}
	return names, nil
}

func (s *MongoBatchStore) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "ativa", Value: active}}}},
	)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
