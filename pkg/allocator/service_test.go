package allocator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedPending(t *testing.T, leads store.LeadStore, n int) []models.Lead {
	t.Helper()
	batch := make([]models.Lead, n)
	for i := range batch {
		batch[i] = models.Lead{
			ID:     primitive.NewObjectID(),
			Name:   "Cliente Teste",
			Phone:  "11999990000",
			Status: models.LeadStatusPending,
		}
	}
	_, err := leads.Insert(context.Background(), batch)
	require.NoError(t, err)
	return batch
}

func TestNextAssignsPendingLead(t *testing.T) {
	leads := store.NewMemoryLeadStore()
	batches := store.NewMemoryBatchStore()
	seedPending(t, leads, 1)

	svc := NewService(leads, batches)
	agentID := primitive.NewObjectID()

	got, err := svc.Next(context.Background(), agentID)
	require.NoError(t, err)
	assert.False(t, got.Resumed)
	assert.Equal(t, models.LeadStatusInProgress, got.Lead.Status)
	require.NotNil(t, got.Lead.AssignedTo)
	assert.Equal(t, agentID, *got.Lead.AssignedTo)
	assert.NotNil(t, got.Lead.AssignedAt)
}

func TestNextResumesInProgressLead(t *testing.T) {
	leads := store.NewMemoryLeadStore()
	batches := store.NewMemoryBatchStore()
	seedPending(t, leads, 2)

	svc := NewService(leads, batches)
	agentID := primitive.NewObjectID()

	first, err := svc.Next(context.Background(), agentID)
	require.NoError(t, err)

	second, err := svc.Next(context.Background(), agentID)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.Lead.ID, second.Lead.ID)
	assert.Equal(t, first.Lead.AssignedAt.UnixNano(), second.Lead.AssignedAt.UnixNano(),
		"resume must not mutate the assignment")

	pending, err := svc.PendingCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending, "resume must not consume another lead")
}

func TestNextQueueEmpty(t *testing.T) {
	svc := NewService(store.NewMemoryLeadStore(), store.NewMemoryBatchStore())

	_, err := svc.Next(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestNextSkipsInactiveBatches(t *testing.T) {
	ctx := context.Background()
	leads := store.NewMemoryLeadStore()
	batches := store.NewMemoryBatchStore()

	inactive := &models.ImportBatch{Name: "base_antiga", ImportedAt: time.Now(), Active: false}
	require.NoError(t, batches.Insert(ctx, inactive))
	_, err := leads.Insert(ctx, []models.Lead{{
		ID:        primitive.NewObjectID(),
		Name:      "Cliente Antigo",
		Status:    models.LeadStatusPending,
		BatchName: "base_antiga",
	}})
	require.NoError(t, err)

	svc := NewService(leads, batches)
	_, err = svc.Next(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrQueueEmpty, "leads from an inactive batch are not allocatable")

	// Leads without a batch label predate the batch tracking and stay
	// allocatable regardless.
	_, err = leads.Insert(ctx, []models.Lead{{
		ID:     primitive.NewObjectID(),
		Name:   "Cliente Sem Base",
		Status: models.LeadStatusPending,
	}})
	require.NoError(t, err)

	got, err := svc.Next(ctx, primitive.NewObjectID())
	require.NoError(t, err)
	assert.Equal(t, "Cliente Sem Base", got.Lead.Name)
}

func TestNextMutualExclusion(t *testing.T) {
	const agents = 20
	const available = 5

	ctx := context.Background()
	leads := store.NewMemoryLeadStore()
	svc := NewService(leads, store.NewMemoryBatchStore())
	seedPending(t, leads, available)

	type result struct {
		leadID primitive.ObjectID
		err    error
	}
	results := make([]result, agents)

	var wg sync.WaitGroup
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := svc.Next(ctx, primitive.NewObjectID())
			if err != nil {
				results[i] = result{err: err}
				return
			}
			results[i] = result{leadID: got.Lead.ID}
		}(i)
	}
	wg.Wait()

	seen := make(map[primitive.ObjectID]int)
	wins := 0
	for _, r := range results {
		if r.err != nil {
			require.True(t, errors.Is(r.err, ErrQueueEmpty) || errors.Is(r.err, ErrContention),
				"unexpected error: %v", r.err)
			continue
		}
		wins++
		seen[r.leadID]++
	}

	for id, n := range seen {
		assert.Equal(t, 1, n, "lead %s assigned to more than one agent", id.Hex())
	}
	assert.LessOrEqual(t, wins, available)
	assert.Greater(t, wins, 0)

	pending, err := svc.PendingCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, available-wins, pending)
}

// claimNeverWins simulates permanent contention: every sample finds a lead
// but the claim always arrives too late.
type claimNeverWins struct {
	*store.MemoryLeadStore
	samples int
}

func (c *claimNeverWins) SamplePending(ctx context.Context, activeBatches []string) (*models.Lead, error) {
	c.samples++
	return c.MemoryLeadStore.SamplePending(ctx, activeBatches)
}

func (c *claimNeverWins) ClaimPending(context.Context, primitive.ObjectID, primitive.ObjectID, time.Time) (*models.Lead, error) {
	return nil, store.ErrNotFound
}

func TestNextContentionIsBounded(t *testing.T) {
	inner := store.NewMemoryLeadStore()
	seedPending(t, inner, 3)
	leads := &claimNeverWins{MemoryLeadStore: inner}

	svc := NewService(leads, store.NewMemoryBatchStore())
	_, err := svc.Next(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrContention)
	assert.Equal(t, 3, leads.samples, "retry loop must stop after the attempt bound")
}
