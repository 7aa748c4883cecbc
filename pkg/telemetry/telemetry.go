// Package telemetry exposes Prometheus collectors for the engine:
// buffer pool growth, broadcaster backlog, reclaimer queue depth,
// processed events, dropped submissions and cycle duration. The engine
// records from the post-processor goroutine, from the buffer factory's
// Grow hook, from Submit, and from RunCycle's deferred cycle-duration
// observation; no Event's Execute phase records anything.
//
// Grounded on Generativebots-ocx-backend-go-svc's
// internal/escrow/metrics.go: a plain struct of promauto-registered
// collectors with small Record*/Set* methods, no global registry
// reached into from call sites.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. There is
// deliberately no per-Acquire counter: Acquire runs on the audio
// thread, and incrementing a prometheus.Counter there (an internal
// mutex under contention) would violate the no-blocking-primitives
// rule Acquire itself exists to satisfy. Pool growth, which only ever
// happens off the audio thread, is counted instead.
type Metrics struct {
	PoolGrowTotal    *prometheus.CounterVec
	BroadcastBacklog prometheus.Gauge
	ReclaimerBacklog prometheus.Gauge
	EventsProcessed  *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	SubmitQueueDrops prometheus.Counter
}

// NewMetrics registers and returns a fresh collector set. reg is the
// prometheus.Registerer to use (prometheus.DefaultRegisterer for the
// global registry, or a dedicated prometheus.NewRegistry() in tests so
// repeated construction in the same process doesn't panic on duplicate
// registration).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PoolGrowTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingen_buffer_pool_grow_total",
				Help: "Buffers added to the pool's free lists, by kind.",
			},
			[]string{"kind"},
		),
		BroadcastBacklog: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingen_broadcast_backlog",
				Help: "Pending messages buffered inside an open broadcaster bundle.",
			},
		),
		ReclaimerBacklog: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingen_reclaimer_backlog",
				Help: "Garbage objects queued for the post-processor's reclaimer to release.",
			},
		),
		EventsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingen_events_processed_total",
				Help: "Events that completed post_process, by event type and status.",
			},
			[]string{"event", "status"},
		),
		CycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingen_cycle_duration_seconds",
				Help:    "Wall-clock time spent in one RunCycle call.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
			},
		),
		SubmitQueueDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ingen_submit_queue_drops_total",
				Help: "Events dropped because the preprocessor submission queue was full.",
			},
		),
	}
}

// RecordPoolGrow records n buffers added to kind's free list.
func (m *Metrics) RecordPoolGrow(kind string, n int) {
	m.PoolGrowTotal.WithLabelValues(kind).Add(float64(n))
}

// SetBroadcastBacklog reports the current bundle buffer length.
func (m *Metrics) SetBroadcastBacklog(n int) {
	m.BroadcastBacklog.Set(float64(n))
}

// SetReclaimerBacklog reports the reclaimer channel's current depth.
func (m *Metrics) SetReclaimerBacklog(n int) {
	m.ReclaimerBacklog.Set(float64(n))
}

// RecordEvent records one event's completion.
func (m *Metrics) RecordEvent(eventType, status string) {
	m.EventsProcessed.WithLabelValues(eventType, status).Inc()
}

// ObserveCycleDuration records one RunCycle call's wall-clock cost.
func (m *Metrics) ObserveCycleDuration(seconds float64) {
	m.CycleDuration.Observe(seconds)
}

// RecordSubmitDrop records one dropped Submit call.
func (m *Metrics) RecordSubmitDrop() {
	m.SubmitQueueDrops.Inc()
}
