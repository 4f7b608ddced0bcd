package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jordanlanch/salesbot/pkg/cache"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/report"
	"github.com/jordanlanch/salesbot/pkg/store"
)

func TestTakeSnapshot(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	redisClient, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Redis.Close() })

	leads := store.NewMemoryLeadStore()
	agents := store.NewMemoryAgentStore()

	agentID := primitive.NewObjectID()
	now := time.Now()
	_, err = leads.Insert(ctx, []models.Lead{
		{ID: primitive.NewObjectID(), Name: "Pendente Um", Status: models.LeadStatusPending},
		{ID: primitive.NewObjectID(), Name: "Pendente Dois", Status: models.LeadStatusPending},
		{
			ID:          primitive.NewObjectID(),
			Name:        "Feito Hoje",
			Status:      models.LeadStatusDone,
			AssignedTo:  &agentID,
			FinalStatus: models.OutcomeSaleClosed,
			FinalizedAt: &now,
		},
	})
	require.NoError(t, err)

	cm := NewCronManager(
		leads,
		report.NewService(leads, agents),
		redisClient,
		metrics.New(prometheus.NewRegistry()),
		logger.Default(),
	)

	require.NoError(t, cm.TakeSnapshot(ctx))

	date := time.Now().In(cm.loc).Format("2006-01-02")
	snap, err := cm.SnapshotFor(ctx, date)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.PendingLeads)
	assert.Equal(t, 1, snap.FinalizedToday)
	assert.Equal(t, 1, snap.ByOutcome[models.OutcomeSaleClosed])
}

func TestSetupJobsRegistersSchedules(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Redis.Close() })

	leads := store.NewMemoryLeadStore()
	cm := NewCronManager(
		leads,
		report.NewService(leads, store.NewMemoryAgentStore()),
		redisClient,
		metrics.New(prometheus.NewRegistry()),
		logger.Default(),
	)
	require.NoError(t, cm.SetupJobs())
	cm.Start()
	cm.Stop()
}
