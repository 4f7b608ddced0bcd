package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/salesbot/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLeadStore implements LeadStore over a mongo collection.
type MongoLeadStore struct {
	coll *mongo.Collection
}

// NewMongoLeadStore creates a lead store over the given collection.
func NewMongoLeadStore(coll *mongo.Collection) *MongoLeadStore {
	return &MongoLeadStore{coll: coll}
}

func (s *MongoLeadStore) Insert(ctx context.Context, leads []models.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	docs := make([]interface{}, len(leads))
	for i := range leads {
		docs[i] = leads[i]
	}
	res, err := s.coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert leads: %w", err)
	}
	return len(res.InsertedIDs), nil
}

func (s *MongoLeadStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to delete leads: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoLeadStore) ByID(ctx context.Context, id primitive.ObjectID) (*models.Lead, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoLeadStore) ActiveByAgent(ctx context.Context, agentID primitive.ObjectID) (*models.Lead, error) {
	return s.findOne(ctx, bson.D{
		{Key: "vendedor_atribuido", Value: agentID},
		{Key: "status", Value: models.LeadStatusInProgress},
	})
}

func (s *MongoLeadStore) ByPhoneDigits(ctx context.Context, digits string) (*models.Lead, error) {
	lead, err := s.findOne(ctx, bson.D{{Key: "telefone", Value: digits}})
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	// Legacy imports store phones with separators; fall back to a
	// digit-subsequence match the way the original search did.
	pattern := strings.Join(strings.Split(digits, ""), ".*")
	return s.findOne(ctx, bson.D{{Key: "telefone", Value: primitive.Regex{Pattern: pattern}}})
}

// pendingAvailable matches Pending leads that are allocatable: either the
// lead carries no batch label, or its batch is currently active.
func pendingAvailable(activeBatches []string) bson.D {
	if activeBatches == nil {
		activeBatches = []string{}
	}
	return bson.D{
		{Key: "status", Value: models.LeadStatusPending},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "nome_base", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "nome_base", Value: nil}},
			bson.D{{Key: "nome_base", Value: ""}},
			bson.D{{Key: "nome_base", Value: bson.D{{Key: "$in", Value: activeBatches}}}},
		}},
	}
}

func (s *MongoLeadStore) SamplePending(ctx context.Context, activeBatches []string) (*models.Lead, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: pendingAvailable(activeBatches)}},
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to sample pending leads: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Lead
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode sampled lead: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return &out[0], nil
}

func (s *MongoLeadStore) ClaimPending(ctx context.Context, leadID, agentID primitive.ObjectID, at time.Time) (*models.Lead, error) {
	// The filter re-checks Pending so a concurrent claim makes this a
	// no-op instead of a double assignment.
	filter := bson.D{
		{Key: "_id", Value: leadID},
		{Key: "status", Value: models.LeadStatusPending},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: models.LeadStatusInProgress},
		{Key: "vendedor_atribuido", Value: agentID},
		{Key: "data_atribuicao", Value: at},
	}}}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *MongoLeadStore) Finalize(ctx context.Context, leadID, agentID primitive.ObjectID, upd FinalizeUpdate) (*models.Lead, error) {
	filter := bson.D{
		{Key: "_id", Value: leadID},
		{Key: "status", Value: models.LeadStatusInProgress},
		{Key: "vendedor_atribuido", Value: agentID},
	}
	set := bson.D{
		{Key: "status", Value: models.LeadStatusDone},
		{Key: "status_final", Value: upd.FinalStatus},
		{Key: "data_finalizacao", Value: upd.FinalizedAt},
	}
	if upd.Bank != "" {
		set = append(set, bson.E{Key: "banco_consulta", Value: upd.Bank})
	}
	if upd.Result != "" {
		set = append(set, bson.E{Key: "resultado_consulta", Value: upd.Result})
	}
	if upd.Balance != nil {
		set = append(set, bson.E{Key: "saldo_consulta", Value: *upd.Balance})
	}
	update := bson.D{{Key: "$set", Value: set}}
	if upd.Note != nil {
		update = append(update, bson.E{Key: "$push", Value: bson.D{{Key: "observacoes", Value: *upd.Note}}})
	}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *MongoLeadStore) Reopen(ctx context.Context, leadID, agentID primitive.ObjectID, at time.Time) (*models.Lead, error) {
	// Same CAS discipline as ClaimPending: only a lead still in Done can
	// be reopened, so two agents rediscovering the same phone number
	// cannot both claim it.
	filter := bson.D{
		{Key: "_id", Value: leadID},
		{Key: "status", Value: models.LeadStatusDone},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: models.LeadStatusInProgress},
			{Key: "vendedor_atribuido", Value: agentID},
			{Key: "data_atribuicao", Value: at},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "status_final", Value: ""},
			{Key: "data_finalizacao", Value: ""},
		}},
	}
	return s.findOneAndUpdate(ctx, filter, update)
}

func (s *MongoLeadStore) AddNote(ctx context.Context, leadID primitive.ObjectID, note models.Note) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: leadID}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "observacoes", Value: note}}}},
	)
	if err != nil {
		return fmt.Errorf("failed to append note: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoLeadStore) CountPending(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "status", Value: models.LeadStatusPending}})
	if err != nil {
		return 0, fmt.Errorf("failed to count pending leads: %w", err)
	}
	return n, nil
}

func (s *MongoLeadStore) CountByBatch(ctx context.Context, batchName string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "nome_base", Value: batchName}})
	if err != nil {
		return 0, fmt.Errorf("failed to count batch leads: %w", err)
	}
	return n, nil
}

func (s *MongoLeadStore) FinalizedByAgent(ctx context.Context, window TimeRange, agentIDs []primitive.ObjectID) ([]AgentOutcomeCounts, error) {
	match := bson.D{
		{Key: "data_finalizacao", Value: bson.D{
			{Key: "$gte", Value: window.Start},
			{Key: "$lte", Value: window.End},
		}},
	}
	if agentIDs != nil {
		match = append(match, bson.E{Key: "vendedor_atribuido", Value: bson.D{{Key: "$in", Value: agentIDs}}})
	}
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$vendedor_atribuido"},
			{Key: "total_finalizados", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "status_counts", Value: bson.D{{Key: "$push", Value: "$status_final"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "total_finalizados", Value: -1}}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by agent: %w", err)
	}
	defer cur.Close(ctx)

	var out []AgentOutcomeCounts
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode agent aggregation: %w", err)
	}
	return out, nil
}

func (s *MongoLeadStore) TotalsByOutcome(ctx context.Context, window TimeRange) ([]OutcomeCount, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "data_finalizacao", Value: bson.D{
				{Key: "$gte", Value: window.Start},
				{Key: "$lte", Value: window.End},
			}},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status_final"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by outcome: %w", err)
	}
	defer cur.Close(ctx)

	var out []OutcomeCount
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode outcome aggregation: %w", err)
	}
	return out, nil
}

func (s *MongoLeadStore) ListFinalizedByAgent(ctx context.Context, agentID primitive.ObjectID, window TimeRange) ([]models.Lead, error) {
	filter := bson.D{
		{Key: "vendedor_atribuido", Value: agentID},
		{Key: "data_finalizacao", Value: bson.D{
			{Key: "$gte", Value: window.Start},
			{Key: "$lte", Value: window.End},
		}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "data_finalizacao", Value: -1}})
	return s.findAll(ctx, filter, opts)
}

func (s *MongoLeadStore) ListByInquiryResult(ctx context.Context, agentID primitive.ObjectID, result string, withBalance bool) ([]models.Lead, error) {
	filter := bson.D{{Key: "vendedor_atribuido", Value: agentID}}
	if withBalance {
		filter = append(filter, bson.E{Key: "saldo_consulta", Value: bson.D{{Key: "$gt", Value: 0}}})
	} else {
		filter = append(filter, bson.E{Key: "resultado_consulta", Value: result})
	}
	return s.findAll(ctx, filter, options.Find())
}

func (s *MongoLeadStore) ListDone(ctx context.Context) ([]models.Lead, error) {
	filter := bson.D{{Key: "status", Value: models.LeadStatusDone}}
	opts := options.Find().SetSort(bson.D{{Key: "data_finalizacao", Value: -1}})
	return s.findAll(ctx, filter, opts)
}

func (s *MongoLeadStore) AdoptOrphans(ctx context.Context, batchName string) (int64, error) {
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "nome_base", Value: bson.D{{Key: "$exists", Value: false}}}},
		bson.D{{Key: "nome_base", Value: nil}},
		bson.D{{Key: "nome_base", Value: ""}},
	}}}
	res, err := s.coll.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "nome_base", Value: batchName}}}})
	if err != nil {
		return 0, fmt.Errorf("failed to adopt orphan leads: %w", err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoLeadStore) findOne(ctx context.Context, filter bson.D) (*models.Lead, error) {
	var lead models.Lead
	err := s.coll.FindOne(ctx, filter).Decode(&lead)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lead: %w", err)
	}
	return &lead, nil
}

func (s *MongoLeadStore) findOneAndUpdate(ctx context.Context, filter, update bson.D) (*models.Lead, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var lead models.Lead
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&lead)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}
	return &lead, nil
}

func (s *MongoLeadStore) findAll(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]models.Lead, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer cur.Close(ctx)

	var out []models.Lead
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode leads: %w", err)
	}
	return out, nil
}
