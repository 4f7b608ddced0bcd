// Package report aggregates finalized leads into performance summaries for
// supervisors and administrators. All period boundaries are taken in the
// operation's local timezone (America/Sao_Paulo), not UTC.
package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const reportTimezone = "America/Sao_Paulo"

var currency = message.NewPrinter(language.BrazilianPortuguese)

// FormatCurrency renders a value as Brazilian reais.
func FormatCurrency(v float64) string {
	return currency.Sprintf("R$ %.2f", v)
}

// AgentRow is one agent's production inside a window.
type AgentRow struct {
	AgentID   primitive.ObjectID
	AgentName string
	Total     int
	Outcomes  map[string]int
}

// Report is the aggregated production of a set of agents inside a window.
type Report struct {
	Window   Window
	Range    store.TimeRange
	Rows     []AgentRow
	Totals   map[string]int
	Total    int
	Universe int // how many agents were in scope, including idle ones
}

// AgentSummary is one agent's own production listing inside a window.
type AgentSummary struct {
	Window       Window
	Leads        []models.Lead
	Outcomes     map[string]int
	BalanceFound float64
}

// Service builds reports from the lead store.
type Service struct {
	leads  store.LeadStore
	agents store.AgentStore
	loc    *time.Location
	now    func() time.Time
}

// NewService creates a new reporting service.
func NewService(leads store.LeadStore, agents store.AgentStore) *Service {
	loc, err := time.LoadLocation(reportTimezone)
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	return &Service{leads: leads, agents: agents, loc: loc, now: time.Now}
}

// WindowRange resolves a window against the service clock and timezone.
func (s *Service) WindowRange(w Window) (store.TimeRange, error) {
	return w.Range(s.now(), s.loc)
}

// Overview aggregates every agent's production inside the window. Agents
// that finalized nothing appear with a zero row so supervisors see the
// whole roster.
func (s *Service) Overview(ctx context.Context, w Window) (*Report, error) {
	roster, err := s.agents.ByRole(ctx, models.RoleAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return s.build(ctx, w, roster, nil)
}

// TeamOverview aggregates the production of one supervisor's team.
func (s *Service) TeamOverview(ctx context.Context, supervisorID primitive.ObjectID, w Window) (*Report, error) {
	team, err := s.agents.Team(ctx, supervisorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(team))
	for _, a := range team {
		ids = append(ids, a.ID)
	}
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	return s.build(ctx, w, team, ids)
}

func (s *Service) build(ctx context.Context, w Window, roster []models.Agent, scope []primitive.ObjectID) (*Report, error) {
	window, err := w.Range(s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	counts, err := s.leads.FinalizedByAgent(ctx, window, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by agent: %w", err)
	}

	names := make(map[primitive.ObjectID]string, len(roster))
	for _, a := range roster {
		names[a.ID] = a.Name
	}

	report := &Report{
		Window:   w,
		Range:    window,
		Totals:   make(map[string]int),
		Universe: len(roster),
	}
	produced := make(map[primitive.ObjectID]bool, len(counts))
	for _, row := range counts {
		name, ok := names[row.AgentID]
		if !ok {
			// Finalized by someone outside the roster (demoted or removed);
			// still counts toward the totals.
			name = "(desconhecido)"
		}
		outcomes := make(map[string]int, len(row.Outcomes))
		for _, o := range row.Outcomes {
			outcomes[o]++
			report.Totals[o]++
		}
		report.Rows = append(report.Rows, AgentRow{
			AgentID:   row.AgentID,
			AgentName: name,
			Total:     row.Total,
			Outcomes:  outcomes,
		})
		report.Total += row.Total
		produced[row.AgentID] = true
	}
	for _, a := range roster {
		if !produced[a.ID] {
			report.Rows = append(report.Rows, AgentRow{
				AgentID:   a.ID,
				AgentName: a.Name,
				Outcomes:  map[string]int{},
			})
		}
	}
	return report, nil
}

// Summary lists one agent's finalized leads inside the window, with per
// outcome counts and the total balance found by inquiries.
func (s *Service) Summary(ctx context.Context, agentID primitive.ObjectID, w Window) (*AgentSummary, error) {
	window, err := w.Range(s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	leads, err := s.leads.ListFinalizedByAgent(ctx, agentID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list finalized leads: %w", err)
	}
	summary := &AgentSummary{Window: w, Leads: leads, Outcomes: make(map[string]int)}
	for _, l := range leads {
		summary.Outcomes[l.FinalStatus]++
		if l.InquiryBalance != nil {
			summary.BalanceFound += *l.InquiryBalance
		}
	}
	return summary, nil
}

// TotalsByOutcome aggregates finalization outcomes across all agents.
func (s *Service) TotalsByOutcome(ctx context.Context, w Window) ([]store.OutcomeCount, error) {
	window, err := w.Range(s.now(), s.loc)
	if err != nil {
		return nil, err
	}
	return s.leads.TotalsByOutcome(ctx, window)
}
