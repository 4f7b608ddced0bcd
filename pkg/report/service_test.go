package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	leads  *store.MemoryLeadStore
	agents *store.MemoryAgentStore
	svc    *Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		leads:  store.NewMemoryLeadStore(),
		agents: store.NewMemoryAgentStore(),
	}
	f.svc = NewService(f.leads, f.agents)
	f.now = time.Date(2026, 8, 28, 14, 0, 0, 0, f.svc.loc)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) addAgent(t *testing.T, name string, supervisorID *primitive.ObjectID) *models.Agent {
	t.Helper()
	a := &models.Agent{
		Name:         name,
		Login:        name,
		Role:         models.RoleAgent,
		SupervisorID: supervisorID,
	}
	require.NoError(t, f.agents.Insert(context.Background(), a))
	return a
}

func (f *fixture) addFinalized(t *testing.T, agentID primitive.ObjectID, outcome string, at time.Time, balance *float64) {
	t.Helper()
	_, err := f.leads.Insert(context.Background(), []models.Lead{{
		ID:             primitive.NewObjectID(),
		Name:           "Cliente",
		Status:         models.LeadStatusDone,
		AssignedTo:     &agentID,
		FinalStatus:    outcome,
		FinalizedAt:    &at,
		InquiryBalance: balance,
	}})
	require.NoError(t, err)
}

func TestOverviewCountsPerAgent(t *testing.T) {
	f := newFixture(t)
	ana := f.addAgent(t, "Ana", nil)
	bia := f.addAgent(t, "Bia", nil)
	f.addAgent(t, "Caio", nil) // idle

	f.addFinalized(t, ana.ID, models.OutcomeSaleClosed, f.now.Add(-time.Hour), nil)
	f.addFinalized(t, ana.ID, models.OutcomeContacted, f.now.Add(-2*time.Hour), nil)
	f.addFinalized(t, bia.ID, models.OutcomeNotInterested, f.now.Add(-time.Hour), nil)
	// Yesterday's work is outside today's window.
	f.addFinalized(t, bia.ID, models.OutcomeSaleClosed, f.now.AddDate(0, 0, -1), nil)

	rep, err := f.svc.Overview(context.Background(), WindowToday)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 3, rep.Universe)
	assert.Equal(t, 1, rep.Totals[models.OutcomeSaleClosed])

	require.Len(t, rep.Rows, 3)
	assert.Equal(t, "Ana", rep.Rows[0].AgentName, "rows sorted by production")
	assert.Equal(t, 2, rep.Rows[0].Total)
	assert.Equal(t, 1, rep.Rows[0].Outcomes[models.OutcomeSaleClosed])
	assert.Equal(t, 0, rep.Rows[2].Total, "idle agents appear with a zero row")
}

func TestTeamOverviewScopesToTeam(t *testing.T) {
	f := newFixture(t)
	supID := primitive.NewObjectID()
	ana := f.addAgent(t, "Ana", &supID)
	other := f.addAgent(t, "Bia", nil)

	f.addFinalized(t, ana.ID, models.OutcomeContacted, f.now.Add(-time.Hour), nil)
	f.addFinalized(t, other.ID, models.OutcomeContacted, f.now.Add(-time.Hour), nil)

	rep, err := f.svc.TeamOverview(context.Background(), supID, WindowToday)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Total)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "Ana", rep.Rows[0].AgentName)
}

func TestTeamOverviewEmptyTeam(t *testing.T) {
	f := newFixture(t)
	other := f.addAgent(t, "Bia", nil)
	f.addFinalized(t, other.ID, models.OutcomeContacted, f.now.Add(-time.Hour), nil)

	rep, err := f.svc.TeamOverview(context.Background(), primitive.NewObjectID(), WindowToday)
	require.NoError(t, err)
	assert.Zero(t, rep.Total, "an empty team must not fall back to all agents")
	assert.Empty(t, rep.Rows)
}

func TestSummarySumsInquiryBalances(t *testing.T) {
	f := newFixture(t)
	ana := f.addAgent(t, "Ana", nil)

	b1, b2 := 1000.50, 249.50
	f.addFinalized(t, ana.ID, models.OutcomeInquiryCompleted, f.now.Add(-time.Hour), &b1)
	f.addFinalized(t, ana.ID, models.OutcomeInquiryCompleted, f.now.Add(-2*time.Hour), &b2)
	f.addFinalized(t, ana.ID, models.OutcomeContacted, f.now.Add(-3*time.Hour), nil)

	sum, err := f.svc.Summary(context.Background(), ana.ID, WindowToday)
	require.NoError(t, err)
	assert.Len(t, sum.Leads, 3)
	assert.Equal(t, 2, sum.Outcomes[models.OutcomeInquiryCompleted])
	assert.InDelta(t, 1250.0, sum.BalanceFound, 0.001)
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "R$ 1.250,00", FormatCurrency(1250))
	assert.Equal(t, "R$ 0,50", FormatCurrency(0.5))
}
