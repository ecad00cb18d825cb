// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wallet"

// Outcome label values.
const (
	OutcomeApplied      = "applied"
	OutcomeInsufficient = "insufficient"
	OutcomeReplayed     = "replayed"
	OutcomeFree         = "free"
	OutcomeError        = "error"
)

// ─── Engine Metrics ─────────────────────────────────────────────────────────

// Operations counts engine items by operation and outcome.
var Operations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "engine",
	Name:      "items_total",
	Help:      "Bulk items processed by operation and outcome.",
}, []string{"operation", "outcome"})

// ChargedUnits sums charged amounts per category and charge type.
var ChargedUnits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "engine",
	Name:      "charged_amount_total",
	Help:      "Sum of charge amounts applied, in each category's unit.",
}, []string{"category", "provider", "charge_type"})

// ItemDuration tracks per-item latency including the database transaction.
var ItemDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "engine",
	Name:      "item_duration_seconds",
	Help:      "Time to process one bulk item.",
	Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
}, []string{"operation"})

// ─── Maintenance Metrics ────────────────────────────────────────────────────

// IdempotencyKeysPurged counts keys removed by the cleanup job.
var IdempotencyKeysPurged = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "cleanup",
	Name:      "idempotency_keys_purged_total",
	Help:      "Idempotency keys deleted after the retention period.",
})

// CleanupRuns counts cleanup runs by result.
var CleanupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "cleanup",
	Name:      "runs_total",
	Help:      "Cleanup runs by result.",
}, []string{"result"})

// ObserveItem records one processed item.
func ObserveItem(operation, outcome string, started time.Time) {
	Operations.WithLabelValues(operation, outcome).Inc()
	ItemDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
