package store

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jordanlanch/salesbot/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory-backed stores with the same atomic semantics as the mongo ones:
// every conditional update holds the store mutex for the whole
// read-compare-write, so the mutual-exclusion guarantees can be exercised
// in tests (and in dev tooling) without a running database.

// MemoryLeadStore is an in-memory LeadStore.
type MemoryLeadStore struct {
	mu    sync.Mutex
	leads map[primitive.ObjectID]*models.Lead
}

// NewMemoryLeadStore creates an empty in-memory lead store.
func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{leads: make(map[primitive.ObjectID]*models.Lead)}
}

func cloneLead(l *models.Lead) *models.Lead {
	out := *l
	if l.Notes != nil {
		out.Notes = append([]models.Note(nil), l.Notes...)
	}
	return &out
}

func (s *MemoryLeadStore) Insert(_ context.Context, leads []models.Lead) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range leads {
		l := leads[i]
		if l.ID.IsZero() {
			l.ID = primitive.NewObjectID()
		}
		s.leads[l.ID] = cloneLead(&l)
	}
	return len(leads), nil
}

func (s *MemoryLeadStore) DeleteAll(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.leads))
	s.leads = make(map[primitive.ObjectID]*models.Lead)
	return n, nil
}

func (s *MemoryLeadStore) ByID(_ context.Context, id primitive.ObjectID) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneLead(l), nil
}

func (s *MemoryLeadStore) ActiveByAgent(_ context.Context, agentID primitive.ObjectID) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.leads {
		if l.Status == models.LeadStatusInProgress && l.AssignedToAgent(agentID) {
			return cloneLead(l), nil
		}
	}
	return nil, ErrNotFound
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *MemoryLeadStore) ByPhoneDigits(_ context.Context, digits string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.leads {
		if l.Phone == digits {
			return cloneLead(l), nil
		}
	}
	for _, l := range s.leads {
		if strings.Contains(onlyDigits(l.Phone), digits) {
			return cloneLead(l), nil
		}
	}
	return nil, ErrNotFound
}

func batchAvailable(l *models.Lead, activeBatches []string) bool {
	if l.BatchName == "" {
		return true
	}
	for _, name := range activeBatches {
		if l.BatchName == name {
			return true
		}
	}
	return false
}

func (s *MemoryLeadStore) SamplePending(_ context.Context, activeBatches []string) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []*models.Lead
	for _, l := range s.leads {
		if l.Status == models.LeadStatusPending && batchAvailable(l, activeBatches) {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	return cloneLead(candidates[rand.Intn(len(candidates))]), nil
}

func (s *MemoryLeadStore) ClaimPending(_ context.Context, leadID, agentID primitive.ObjectID, at time.Time) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok || l.Status != models.LeadStatusPending {
		return nil, ErrNotFound
	}
	l.Status = models.LeadStatusInProgress
	l.AssignedTo = &agentID
	l.AssignedAt = &at
	return cloneLead(l), nil
}

func (s *MemoryLeadStore) Finalize(_ context.Context, leadID, agentID primitive.ObjectID, upd FinalizeUpdate) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok || l.Status != models.LeadStatusInProgress || !l.AssignedToAgent(agentID) {
		return nil, ErrNotFound
	}
	l.Status = models.LeadStatusDone
	l.FinalStatus = upd.FinalStatus
	at := upd.FinalizedAt
	l.FinalizedAt = &at
	if upd.Bank != "" {
		l.InquiryBank = upd.Bank
	}
	if upd.Result != "" {
		l.InquiryResult = upd.Result
	}
	if upd.Balance != nil {
		v := *upd.Balance
		l.InquiryBalance = &v
	}
	if upd.Note != nil {
		l.Notes = append(l.Notes, *upd.Note)
	}
	return cloneLead(l), nil
}

func (s *MemoryLeadStore) Reopen(_ context.Context, leadID, agentID primitive.ObjectID, at time.Time) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok || l.Status != models.LeadStatusDone {
		return nil, ErrNotFound
	}
	l.Status = models.LeadStatusInProgress
	l.AssignedTo = &agentID
	l.AssignedAt = &at
	l.FinalStatus = ""
	l.FinalizedAt = nil
	return cloneLead(l), nil
}

func (s *MemoryLeadStore) AddNote(_ context.Context, leadID primitive.ObjectID, note models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[leadID]
	if !ok {
		return ErrNotFound
	}
	l.Notes = append(l.Notes, note)
	return nil
}

func (s *MemoryLeadStore) CountPending(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, l := range s.leads {
		if l.Status == models.LeadStatusPending {
			n++
		}
	}
	return n, nil
}

func (s *MemoryLeadStore) CountByBatch(_ context.Context, batchName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, l := range s.leads {
		if l.BatchName == batchName {
			n++
		}
	}
	return n, nil
}

func (s *MemoryLeadStore) FinalizedByAgent(_ context.Context, window TimeRange, agentIDs []primitive.ObjectID) ([]AgentOutcomeCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	allowed := func(id primitive.ObjectID) bool {
		if agentIDs == nil {
			return true
		}
		for _, a := range agentIDs {
			if a == id {
				return true
			}
		}
		return false
	}
	byAgent := make(map[primitive.ObjectID]*AgentOutcomeCounts)
	for _, l := range s.leads {
		if l.FinalizedAt == nil || l.AssignedTo == nil {
			continue
		}
		if !window.Contains(*l.FinalizedAt) || !allowed(*l.AssignedTo) {
			continue
		}
		row, ok := byAgent[*l.AssignedTo]
		if !ok {
			row = &AgentOutcomeCounts{AgentID: *l.AssignedTo}
			byAgent[*l.AssignedTo] = row
		}
		row.Total++
		row.Outcomes = append(row.Outcomes, l.FinalStatus)
	}
	out := make([]AgentOutcomeCounts, 0, len(byAgent))
	for _, row := range byAgent {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out, nil
}

func (s *MemoryLeadStore) TotalsByOutcome(_ context.Context, window TimeRange) ([]OutcomeCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, l := range s.leads {
		if l.FinalizedAt != nil && window.Contains(*l.FinalizedAt) {
			counts[l.FinalStatus]++
		}
	}
	out := make([]OutcomeCount, 0, len(counts))
	for outcome, n := range counts {
		out = append(out, OutcomeCount{Outcome: outcome, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (s *MemoryLeadStore) ListFinalizedByAgent(_ context.Context, agentID primitive.ObjectID, window TimeRange) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.AssignedToAgent(agentID) && l.FinalizedAt != nil && window.Contains(*l.FinalizedAt) {
			out = append(out, *cloneLead(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FinalizedAt.After(*out[j].FinalizedAt) })
	return out, nil
}

func (s *MemoryLeadStore) ListByInquiryResult(_ context.Context, agentID primitive.ObjectID, result string, withBalance bool) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Lead
	for _, l := range s.leads {
		if !l.AssignedToAgent(agentID) {
			continue
		}
		if withBalance {
			if l.InquiryBalance != nil && *l.InquiryBalance > 0 {
				out = append(out, *cloneLead(l))
			}
		} else if l.InquiryResult == result {
			out = append(out, *cloneLead(l))
		}
	}
	return out, nil
}

func (s *MemoryLeadStore) ListDone(context.Context) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.Status == models.LeadStatusDone {
			out = append(out, *cloneLead(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalizedAt == nil || out[j].FinalizedAt == nil {
			return out[j].FinalizedAt == nil
		}
		return out[i].FinalizedAt.After(*out[j].FinalizedAt)
	})
	return out, nil
}

func (s *MemoryLeadStore) AdoptOrphans(_ context.Context, batchName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, l := range s.leads {
		if l.BatchName == "" {
			l.BatchName = batchName
			n++
		}
	}
	return n, nil
}

// MemoryAgentStore is an in-memory AgentStore.
type MemoryAgentStore struct {
	mu     sync.Mutex
	agents map[primitive.ObjectID]*models.Agent
}

// NewMemoryAgentStore creates an empty in-memory agent store.
func NewMemoryAgentStore() *MemoryAgentStore {
	return &MemoryAgentStore{agents: make(map[primitive.ObjectID]*models.Agent)}
}

func (s *MemoryAgentStore) Insert(_ context.Context, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.Login == agent.Login {
			return ErrDuplicate
		}
	}
	if agent.ID.IsZero() {
		agent.ID = primitive.NewObjectID()
	}
	cp := *agent
	s.agents[agent.ID] = &cp
	return nil
}

func (s *MemoryAgentStore) ByID(_ context.Context, id primitive.ObjectID) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryAgentStore) ByLogin(_ context.Context, login string) (*models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.agents {
		if a.Login == login {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryAgentStore) list(match func(*models.Agent) bool) []models.Agent {
	var out []models.Agent
	for _, a := range s.agents {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *MemoryAgentStore) All(context.Context) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(*models.Agent) bool { return true }), nil
}

func (s *MemoryAgentStore) ByRole(_ context.Context, role models.Role) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(a *models.Agent) bool { return a.Role == role }), nil
}

func (s *MemoryAgentStore) Team(_ context.Context, supervisorID primitive.ObjectID) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(a *models.Agent) bool {
		return a.SupervisorID != nil && *a.SupervisorID == supervisorID
	}), nil
}

func (s *MemoryAgentStore) Independent(context.Context) ([]models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(a *models.Agent) bool {
		return a.Role == models.RoleAgent && a.SupervisorID == nil
	}), nil
}

func (s *MemoryAgentStore) SetTelegramID(_ context.Context, id primitive.ObjectID, telegramID int64) error {
	return s.mutate(id, func(a *models.Agent) { a.TelegramID = &telegramID })
}

func (s *MemoryAgentStore) SetRole(_ context.Context, id primitive.ObjectID, role models.Role) error {
	return s.mutate(id, func(a *models.Agent) { a.Role = role })
}

func (s *MemoryAgentStore) SetSupervisor(_ context.Context, id primitive.ObjectID, supervisorID *primitive.ObjectID) error {
	return s.mutate(id, func(a *models.Agent) { a.SupervisorID = supervisorID })
}

func (s *MemoryAgentStore) mutate(id primitive.ObjectID, fn func(*models.Agent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return ErrNotFound
	}
	fn(a)
	return nil
}

// MemoryTemplateStore is an in-memory TemplateStore.
type MemoryTemplateStore struct {
	mu        sync.Mutex
	templates map[primitive.ObjectID]*models.MessageTemplate
}

// NewMemoryTemplateStore creates an empty in-memory template store.
func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[primitive.ObjectID]*models.MessageTemplate)}
}

func (s *MemoryTemplateStore) Insert(_ context.Context, tpl *models.MessageTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tpl.ID.IsZero() {
		tpl.ID = primitive.NewObjectID()
	}
	cp := *tpl
	s.templates[tpl.ID] = &cp
	return nil
}

func (s *MemoryTemplateStore) ByID(_ context.Context, id primitive.ObjectID) (*models.MessageTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryTemplateStore) All(context.Context) ([]models.MessageTemplate, error) {
	return s.listWhere(func(*models.MessageTemplate) bool { return true }), nil
}

func (s *MemoryTemplateStore) Active(context.Context) ([]models.MessageTemplate, error) {
	return s.listWhere(func(t *models.MessageTemplate) bool { return t.Active }), nil
}

func (s *MemoryTemplateStore) listWhere(match func(*models.MessageTemplate) bool) []models.MessageTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MessageTemplate
	for _, t := range s.templates {
		if match(t) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *MemoryTemplateStore) Update(_ context.Context, tpl *models.MessageTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[tpl.ID]; !ok {
		return ErrNotFound
	}
	cp := *tpl
	s.templates[tpl.ID] = &cp
	return nil
}

func (s *MemoryTemplateStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

// MemoryBatchStore is an in-memory BatchStore.
type MemoryBatchStore struct {
	mu      sync.Mutex
	batches map[primitive.ObjectID]*models.ImportBatch
}

// NewMemoryBatchStore creates an empty in-memory batch store.
func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{batches: make(map[primitive.ObjectID]*models.ImportBatch)}
}

func (s *MemoryBatchStore) Insert(_ context.Context, batch *models.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.batches {
		if b.Name == batch.Name {
			return ErrDuplicate
		}
	}
	if batch.ID.IsZero() {
		batch.ID = primitive.NewObjectID()
	}
	cp := *batch
	s.batches[batch.ID] = &cp
	return nil
}

func (s *MemoryBatchStore) ByName(_ context.Context, name string) (*models.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.batches {
		if b.Name == name {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryBatchStore) All(context.Context) ([]models.ImportBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ImportBatch
	for _, b := range s.batches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImportedAt.After(out[j].ImportedAt) })
	return out, nil
}

func (s *MemoryBatchStore) ActiveNames(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, b := range s.batches {
		if b.Active {
			names = append(names, b.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryBatchStore) SetActive(_ context.Context, id primitive.ObjectID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return ErrNotFound
	}
	b.Active = active
	return nil
}
