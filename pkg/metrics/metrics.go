// Package metrics exposes Prometheus instrumentation for the bot and the
// ops API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Chat surface
	CommandsProcessed *prometheus.CounterVec
	UpdateDuration    prometheus.Histogram

	// Allocation
	Allocations         prometheus.Counter
	AllocationConflicts prometheus.Counter
	QueueEmpty          prometheus.Counter
	PendingLeads        prometheus.Gauge

	// Lifecycle
	Finalizations *prometheus.CounterVec
	Reopens       prometheus.Counter

	// Auth
	LoginAttempts *prometheus.CounterVec

	// Import/export
	LeadsImported  prometheus.Counter
	ExportsCreated prometheus.Counter
}

// New creates a Metrics instance registered on reg. Pass
// prometheus.DefaultRegisterer in production; tests use their own registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CommandsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_commands_processed_total",
				Help: "Total number of chat commands processed",
			},
			[]string{"kind", "status"}, // status: ok, error
		),
		UpdateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bot_update_duration_seconds",
			Help:    "Chat update handling latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		Allocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "lead_allocations_total",
			Help: "Total number of leads handed to agents",
		}),
		AllocationConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "lead_allocation_conflicts_total",
			Help: "Total number of allocation attempts exhausted by contention",
		}),
		QueueEmpty: factory.NewCounter(prometheus.CounterOpts{
			Name: "lead_queue_empty_total",
			Help: "Total number of allocation attempts that found no pending leads",
		}),
		PendingLeads: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lead_queue_pending",
			Help: "Pending leads available for allocation",
		}),
		Finalizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_finalizations_total",
				Help: "Total number of leads finalized",
			},
			[]string{"outcome"},
		),
		Reopens: factory.NewCounter(prometheus.CounterOpts{
			Name: "lead_reopens_total",
			Help: "Total number of finished leads reopened",
		}),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),
		LeadsImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "leads_imported_total",
			Help: "Total number of leads imported from spreadsheets",
		}),
		ExportsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "exports_created_total",
			Help: "Total number of performance exports generated",
		}),
	}
}
