// Package lifecycle drives a lead through its working states: an agent
// finalizes the lead it holds with an outcome, can reopen a finished lead
// to work it again, and appends notes along the way.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrLeadNotHeld means the lead is not in progress under the calling agent,
// so it cannot be finalized or annotated as the current lead.
var ErrLeadNotHeld = errors.New("lifecycle: lead is not in progress under this agent")

// ErrLeadNotDone means a reopen was attempted on a lead that is no longer
// finished, typically because another agent reopened it first.
var ErrLeadNotDone = errors.New("lifecycle: lead is not finished")

// ErrAgentBusy means the agent already holds an in-progress lead and must
// finalize it before taking another one.
var ErrAgentBusy = errors.New("lifecycle: agent already has a lead in progress")

// Service handles lead state transitions and notes.
type Service struct {
	leads store.LeadStore
	now   func() time.Time
}

// NewService creates a new lifecycle service.
func NewService(leads store.LeadStore) *Service {
	return &Service{leads: leads, now: time.Now}
}

// Finalize moves the agent's lead to the finished state with the given
// outcome label. The write is conditional on the lead still being in
// progress under the agent.
func (s *Service) Finalize(ctx context.Context, leadID, agentID primitive.ObjectID, outcome string) (*models.Lead, error) {
	lead, err := s.leads.Finalize(ctx, leadID, agentID, store.FinalizeUpdate{
		FinalStatus: outcome,
		FinalizedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLeadNotHeld
		}
		return nil, fmt.Errorf("failed to finalize lead: %w", err)
	}
	return lead, nil
}

// FinalizeInquiry finishes the agent's lead as an inquiry, recording which
// bank was consulted, the result category and, when the result carries one,
// the available balance.
func (s *Service) FinalizeInquiry(ctx context.Context, leadID, agentID primitive.ObjectID, bank, result string, balance *float64) (*models.Lead, error) {
	now := s.now()
	note := fmt.Sprintf("Consulta %s: %s", bank, result)
	if balance != nil {
		note = fmt.Sprintf("%s (R$ %.2f)", note, *balance)
	}
	lead, err := s.leads.Finalize(ctx, leadID, agentID, store.FinalizeUpdate{
		FinalStatus: models.OutcomeInquiryCompleted,
		FinalizedAt: now,
		Bank:        bank,
		Result:      result,
		Balance:     balance,
		Note:        &models.Note{Text: note, Author: "sistema", At: now},
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLeadNotHeld
		}
		return nil, fmt.Errorf("failed to finalize inquiry: %w", err)
	}
	return lead, nil
}

// Reopen takes a finished lead back into progress under the agent, clearing
// the outcome so the lead reads as actively worked again. An agent that
// already holds a lead cannot reopen another. The transition is conditional
// on the lead still being finished, so two agents reopening the same lead
// resolve to exactly one winner.
func (s *Service) Reopen(ctx context.Context, leadID, agentID primitive.ObjectID) (*models.Lead, error) {
	_, err := s.leads.ActiveByAgent(ctx, agentID)
	if err == nil {
		return nil, ErrAgentBusy
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check active lead: %w", err)
	}

	lead, err := s.leads.Reopen(ctx, leadID, agentID, s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLeadNotDone
		}
		return nil, fmt.Errorf("failed to reopen lead: %w", err)
	}
	return lead, nil
}

// AddNote appends an observation to the lead. Notes are append-only and
// survive every state transition, including reopen.
func (s *Service) AddNote(ctx context.Context, leadID primitive.ObjectID, author, text string) error {
	err := s.leads.AddNote(ctx, leadID, models.Note{
		Text:   text,
		Author: author,
		At:     s.now(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to add note: %w", err)
	}
	return nil
}

// Current returns the lead the agent is working on, or store.ErrNotFound.
func (s *Service) Current(ctx context.Context, agentID primitive.ObjectID) (*models.Lead, error) {
	return s.leads.ActiveByAgent(ctx, agentID)
}

// ByID fetches a lead regardless of state, for detail views and history.
func (s *Service) ByID(ctx context.Context, leadID primitive.ObjectID) (*models.Lead, error) {
	return s.leads.ByID(ctx, leadID)
}

// FindByPhone locates a lead by a digit sequence of its phone number.
func (s *Service) FindByPhone(ctx context.Context, digits string) (*models.Lead, error) {
	return s.leads.ByPhoneDigits(ctx, digits)
}

// ListInquiries returns the agent's leads whose bank inquiry ended in the
// given result category. withBalance instead selects every inquiry that
// registered a positive balance.
func (s *Service) ListInquiries(ctx context.Context, agentID primitive.ObjectID, result string, withBalance bool) ([]models.Lead, error) {
	return s.leads.ListByInquiryResult(ctx, agentID, result, withBalance)
}
