// Package jobs runs the scheduled maintenance work: a daily end-of-day
// snapshot of queue depth and production, taken on São Paulo time.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/salesbot/pkg/cache"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	"github.com/jordanlanch/salesbot/pkg/report"
	"github.com/jordanlanch/salesbot/pkg/store"
)

const snapshotTTL = 90 * 24 * time.Hour

// Snapshot is the end-of-day record kept per calendar date.
type Snapshot struct {
	Date           string         `json:"date"`
	PendingLeads   int64          `json:"pendentes"`
	FinalizedToday int            `json:"finalizados_hoje"`
	ByOutcome      map[string]int `json:"por_status"`
	TakenAt        time.Time      `json:"taken_at"`
}

// CronManager manages scheduled jobs.
type CronManager struct {
	cron    *cron.Cron
	leads   store.LeadStore
	reports *report.Service
	cache   *cache.Client
	metrics *metrics.Metrics
	log     logger.Logger
	loc     *time.Location
}

// NewCronManager creates the scheduler on São Paulo local time.
func NewCronManager(leads store.LeadStore, reports *report.Service, c *cache.Client, m *metrics.Metrics, log logger.Logger) *CronManager {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	return &CronManager{
		cron:    cron.New(cron.WithLocation(loc)),
		leads:   leads,
		reports: reports,
		cache:   c,
		metrics: m,
		log:     log,
		loc:     loc,
	}
}

// SetupJobs registers the schedules.
func (cm *CronManager) SetupJobs() error {
	// End of business day, before midnight rolls the reporting window.
	if _, err := cm.cron.AddFunc("55 23 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := cm.TakeSnapshot(ctx); err != nil {
			cm.log.Error("daily snapshot failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule daily snapshot: %w", err)
	}

	// Hourly queue depth for the dashboard gauge.
	if _, err := cm.cron.AddFunc("0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pending, err := cm.leads.CountPending(ctx)
		if err != nil {
			cm.log.Error("queue depth check failed", "err", err)
			return
		}
		cm.metrics.PendingLeads.Set(float64(pending))
	}); err != nil {
		return fmt.Errorf("failed to schedule queue depth check: %w", err)
	}

	return nil
}

// TakeSnapshot records today's totals under snapshot:<date>.
func (cm *CronManager) TakeSnapshot(ctx context.Context) error {
	pending, err := cm.leads.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending leads: %w", err)
	}

	counts, err := cm.reports.TotalsByOutcome(ctx, report.WindowToday)
	if err != nil {
		return fmt.Errorf("failed to aggregate today's totals: %w", err)
	}
	finalized := 0
	totals := make(map[string]int, len(counts))
	for _, c := range counts {
		totals[c.Outcome] = c.Count
		finalized += c.Count
	}

	now := time.Now().In(cm.loc)
	snap := Snapshot{
		Date:           now.Format("2006-01-02"),
		PendingLeads:   pending,
		FinalizedToday: finalized,
		ByOutcome:      totals,
		TakenAt:        now,
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := cm.cache.Set(ctx, "snapshot:"+snap.Date, string(raw), snapshotTTL); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	cm.metrics.PendingLeads.Set(float64(pending))
	cm.log.Info("daily snapshot taken",
		"date", snap.Date, "pending", pending, "finalized", finalized)
	return nil
}

// SnapshotFor loads the snapshot stored for the given date, if any.
func (cm *CronManager) SnapshotFor(ctx context.Context, date string) (*Snapshot, error) {
	raw, err := cm.cache.Get(ctx, "snapshot:"+date)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Start starts the cron scheduler.
func (cm *CronManager) Start() {
	cm.log.Info("starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the cron scheduler.
func (cm *CronManager) Stop() {
	cm.log.Info("stopping cron scheduler")
	cm.cron.Stop()
}
