// Package store defines the persistence boundary for leads, agents,
// message templates and import batches, plus the conditional-update
// primitives the allocation and lifecycle services rely on.
//
// Every multi-agent-visible mutation is an id-scoped conditional write:
// the filter carries the expected current status, so two racing writers
// are serialized by the database and exactly one observes success. The
// loser gets ErrNotFound and must re-evaluate.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jordanlanch/salesbot/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a filter matched no document. For the
// conditional-update methods this includes the CAS-miss case: the document
// exists but is no longer in the expected state.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a unique constraint would be violated.
var ErrDuplicate = errors.New("store: duplicate")

// TimeRange is a closed interval of absolute instants.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range, inclusive on both ends.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// FinalizeUpdate carries the terminal fields written when a lead moves to
// Done. Bank/Result/Balance are only set by the inquiry flow.
type FinalizeUpdate struct {
	FinalStatus string
	FinalizedAt time.Time
	Bank        string
	Result      string
	Balance     *float64
	Note        *models.Note
}

// AgentOutcomeCounts is one row of the per-agent aggregation: how many
// leads an agent finalized inside a window, broken down by outcome.
type AgentOutcomeCounts struct {
	AgentID  primitive.ObjectID `bson:"_id"`
	Total    int                `bson:"total_finalizados"`
	Outcomes []string           `bson:"status_counts"`
}

// OutcomeCount is one row of the totals-by-outcome aggregation.
type OutcomeCount struct {
	Outcome string `bson:"_id"`
	Count   int    `bson:"count"`
}

// LeadStore owns the leads collection.
type LeadStore interface {
	Insert(ctx context.Context, leads []models.Lead) (int, error)
	DeleteAll(ctx context.Context) (int64, error)
	ByID(ctx context.Context, id primitive.ObjectID) (*models.Lead, error)

	// ActiveByAgent returns the lead currently InProgress under the agent,
	// or ErrNotFound.
	ActiveByAgent(ctx context.Context, agentID primitive.ObjectID) (*models.Lead, error)

	// ByPhoneDigits locates a lead whose stored phone contains the given
	// digit sequence, trying an exact match first.
	ByPhoneDigits(ctx context.Context, digits string) (*models.Lead, error)

	// SamplePending picks one Pending lead uniformly at random among leads
	// whose batch is in activeBatches or who carry no batch label at all.
	// ErrNotFound means the queue is empty.
	SamplePending(ctx context.Context, activeBatches []string) (*models.Lead, error)

	// ClaimPending transitions the lead Pending -> InProgress for agentID,
	// succeeding only if the lead is still Pending. ErrNotFound signals a
	// lost race (or a vanished lead); the caller retries with a new sample.
	ClaimPending(ctx context.Context, leadID, agentID primitive.ObjectID, at time.Time) (*models.Lead, error)

	// Finalize transitions InProgress -> Done, conditional on the lead
	// being InProgress under agentID.
	Finalize(ctx context.Context, leadID, agentID primitive.ObjectID, upd FinalizeUpdate) (*models.Lead, error)

	// Reopen transitions Done -> InProgress for agentID, conditional on the
	// lead still being Done, clearing the terminal fields.
	Reopen(ctx context.Context, leadID, agentID primitive.ObjectID, at time.Time) (*models.Lead, error)

	// AddNote appends one note; prior entries are never touched.
	AddNote(ctx context.Context, leadID primitive.ObjectID, note models.Note) error

	CountPending(ctx context.Context) (int64, error)
	CountByBatch(ctx context.Context, batchName string) (int64, error)

	// FinalizedByAgent groups leads finalized inside the window by agent.
	// A nil agentIDs means all agents; otherwise results are restricted to
	// the given set (a supervisor's team).
	FinalizedByAgent(ctx context.Context, window TimeRange, agentIDs []primitive.ObjectID) ([]AgentOutcomeCounts, error)

	// TotalsByOutcome groups leads finalized inside the window by outcome.
	TotalsByOutcome(ctx context.Context, window TimeRange) ([]OutcomeCount, error)

	// ListFinalizedByAgent returns an agent's leads finalized inside the
	// window, most recent first.
	ListFinalizedByAgent(ctx context.Context, agentID primitive.ObjectID, window TimeRange) ([]models.Lead, error)

	// ListByInquiryResult returns an agent's leads whose inquiry ended in
	// the given category; withBalance instead selects saldo_consulta > 0.
	ListByInquiryResult(ctx context.Context, agentID primitive.ObjectID, result string, withBalance bool) ([]models.Lead, error)

	// ListDone returns every finalized lead, for the performance export.
	ListDone(ctx context.Context) ([]models.Lead, error)

	// AdoptOrphans stamps batchName on every lead that has no batch label,
	// returning how many were updated.
	AdoptOrphans(ctx context.Context, batchName string) (int64, error)
}

// AgentStore owns the agents collection.
type AgentStore interface {
	Insert(ctx context.Context, agent *models.Agent) error
	ByID(ctx context.Context, id primitive.ObjectID) (*models.Agent, error)
	ByLogin(ctx context.Context, login string) (*models.Agent, error)
	All(ctx context.Context) ([]models.Agent, error)
	ByRole(ctx context.Context, role models.Role) ([]models.Agent, error)
	Team(ctx context.Context, supervisorID primitive.ObjectID) ([]models.Agent, error)
	Independent(ctx context.Context) ([]models.Agent, error)
	SetTelegramID(ctx context.Context, id primitive.ObjectID, telegramID int64) error
	SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error
	SetSupervisor(ctx context.Context, id primitive.ObjectID, supervisorID *primitive.ObjectID) error
}

// TemplateStore owns the message templates collection.
type TemplateStore interface {
	Insert(ctx context.Context, tpl *models.MessageTemplate) error
	ByID(ctx context.Context, id primitive.ObjectID) (*models.MessageTemplate, error)
	All(ctx context.Context) ([]models.MessageTemplate, error)
	Active(ctx context.Context) ([]models.MessageTemplate, error)
	Update(ctx context.Context, tpl *models.MessageTemplate) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// BatchStore owns the import batches collection.
type BatchStore interface {
	Insert(ctx context.Context, batch *models.ImportBatch) error
	ByName(ctx context.Context, name string) (*models.ImportBatch, error)
	All(ctx context.Context) ([]models.ImportBatch, error)
	ActiveNames(ctx context.Context) ([]string, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
}
