package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	ItemsIngested     prometheus.Counter
	ItemsCompleted    prometheus.Counter
	ItemsRetried      prometheus.Counter
	ItemsFailed       prometheus.Counter
	ItemsDeadLettered prometheus.Counter
	ItemsRecovered    prometheus.Counter
	ProcessingLatency prometheus.Histogram
	MissingSKUs       prometheus.Counter
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_items_ingested_total",
			Help: "Total number of events accepted and durably enqueued.",
		}),
		ItemsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_items_completed_total",
			Help: "Total number of items whose box assignment was written back.",
		}),
		ItemsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_items_retried_total",
			Help: "Total number of processing failures returned to the ready pool.",
		}),
		ItemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_items_failed_total",
			Help: "Total number of items permanently failed after exhausting retries.",
		}),
		ItemsDeadLettered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_items_dead_lettered_total",
			Help: "Total number of items failed immediately on structural validation.",
		}),
		ItemsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_items_recovered_total",
			Help: "Total number of abandoned in-flight items returned to pending.",
		}),
		ProcessingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "item_processing_seconds",
			Help:    "End-to-end processing latency from claim to terminal update.",
			Buckets: prometheus.DefBuckets,
		}),
		MissingSKUs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assignment_missing_skus_total",
			Help: "Total line-item SKUs with no product record (default size substituted).",
		}),
	}

	reg.MustRegister(
		m.ItemsIngested,
		m.ItemsCompleted,
		m.ItemsRetried,
		m.ItemsFailed,
		m.ItemsDeadLettered,
		m.ItemsRecovered,
		m.ProcessingLatency,
		m.MissingSKUs,
	)

	return m
}

// DispatcherHooks returns the metric callbacks expected by dispatcher.Hooks.
// Centralises the prometheus observation calls so the dispatcher stays
// metrics-agnostic.
func (m *Metrics) DispatcherHooks() (
	onCompleted func(latency time.Duration, missingSKUs int),
	onRetried func(),
	onFailed func(),
	onDeadLettered func(),
) {
	onCompleted = func(latency time.Duration, missingSKUs int) {
		m.ItemsCompleted.Inc()
		m.ProcessingLatency.Observe(latency.Seconds())
		m.MissingSKUs.Add(float64(missingSKUs))
	}
	onRetried = func() { m.ItemsRetried.Inc() }
	onFailed = func() { m.ItemsFailed.Inc() }
	onDeadLettered = func() { m.ItemsDeadLettered.Inc() }
	return
}
