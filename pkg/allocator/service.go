// Package allocator hands out pending leads to agents. Assignment is a
// compare-and-swap against the lead's status, so concurrent agents can
// never be given the same lead.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrQueueEmpty means no pending lead is currently available to the agent.
var ErrQueueEmpty = errors.New("allocator: no pending leads available")

// ErrContention means every claim attempt lost the race to another agent
// while pending leads still existed. The caller should just try again.
var ErrContention = errors.New("allocator: assignment contention, try again")

// maxClaimAttempts bounds the sample-and-claim loop under contention.
const maxClaimAttempts = 3

// Service allocates leads from the shared pending queue.
type Service struct {
	leads   store.LeadStore
	batches store.BatchStore
	now     func() time.Time
}

// NewService creates a new allocation service.
func NewService(leads store.LeadStore, batches store.BatchStore) *Service {
	return &Service{leads: leads, batches: batches, now: time.Now}
}

// Assignment is the outcome of a Next call. Resumed is true when the agent
// already held an in-progress lead and got it back unchanged.
type Assignment struct {
	Lead    *models.Lead
	Resumed bool
}

// Next returns the lead the agent should work on. An agent with an
// in-progress lead always gets that lead back without any mutation.
// Otherwise a random available pending lead is claimed atomically:
// the claim succeeds only if the lead is still pending, and a lost race
// triggers a fresh sample, up to maxClaimAttempts times.
func (s *Service) Next(ctx context.Context, agentID primitive.ObjectID) (*Assignment, error) {
	current, err := s.leads.ActiveByAgent(ctx, agentID)
	if err == nil {
		return &Assignment{Lead: current, Resumed: true}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check active lead: %w", err)
	}

	activeBatches, err := s.batches.ActiveNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active batches: %w", err)
	}

	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		candidate, err := s.leads.SamplePending(ctx, activeBatches)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrQueueEmpty
			}
			return nil, fmt.Errorf("failed to sample pending leads: %w", err)
		}

		claimed, err := s.leads.ClaimPending(ctx, candidate.ID, agentID, s.now())
		if err == nil {
			return &Assignment{Lead: claimed}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to claim lead: %w", err)
		}
		// Someone else took it between sample and claim; sample again.
	}

	return nil, ErrContention
}

// Current returns the agent's in-progress lead, or store.ErrNotFound.
func (s *Service) Current(ctx context.Context, agentID primitive.ObjectID) (*models.Lead, error) {
	return s.leads.ActiveByAgent(ctx, agentID)
}

// PendingCount reports the size of the pending queue across all batches.
func (s *Service) PendingCount(ctx context.Context) (int64, error) {
	return s.leads.CountPending(ctx)
}
