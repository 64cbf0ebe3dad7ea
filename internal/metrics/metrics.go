// Package metrics exposes the engine's Prometheus instrumentation:
// per-entity row counters, batch outcomes, violation counts, and an
// apply-duration histogram. All methods are nil-receiver safe so
// callers can run uninstrumented.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leaguevault/leaguevault/internal/dupcheck"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// Row operation labels.
const (
	OpInserted = "inserted"
	OpUpdated  = "updated"
	OpDeleted  = "deleted"
	OpSkipped  = "skipped"
)

// Batch outcome labels.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

// Metrics holds the engine's collectors, registered on construction.
type Metrics struct {
	rows         *prometheus.CounterVec
	batches      *prometheus.CounterVec
	violations   *prometheus.CounterVec
	applySeconds prometheus.Histogram
}

// New creates and registers the engine's collectors. Pass
// prometheus.DefaultRegisterer in production; a fresh
// prometheus.NewRegistry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaguevault",
			Subsystem: "apply",
			Name:      "rows_total",
			Help:      "Rows written or skipped, by entity type and operation.",
		}, []string{"entity_type", "op"}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaguevault",
			Subsystem: "apply",
			Name:      "batches_total",
			Help:      "Batch applies finished, by outcome.",
		}, []string{"outcome"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leaguevault",
			Subsystem: "dupcheck",
			Name:      "violations_total",
			Help:      "Duplicate violations detected, by severity.",
		}, []string{"severity"}),
		applySeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leaguevault",
			Subsystem: "apply",
			Name:      "duration_seconds",
			Help:      "Wall time of one batch apply, begin to commit or rollback.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

// RowsApplied records the write counts for one entity type.
func (m *Metrics) RowsApplied(et registry.EntityType, op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rows.WithLabelValues(string(et), op).Add(float64(n))
}

// BatchFinished records one batch's terminal outcome and duration.
func (m *Metrics) BatchFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
	m.applySeconds.Observe(d.Seconds())
}

// ViolationsFound records every violation in a detector report.
func (m *Metrics) ViolationsFound(report dupcheck.Report) {
	if m == nil {
		return
	}
	for _, v := range report.Violations {
		m.violations.WithLabelValues(string(v.Severity)).Inc()
	}
}
