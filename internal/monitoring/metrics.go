package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors of the purchase flow, the
// notification worker and the realtime gateway.  A nil *Metrics is valid
// and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	purchases        *prometheus.CounterVec
	purchaseDuration prometheus.Histogram
	jobs             *prometheus.CounterVec
	connections      prometheus.Gauge
	emits            *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg.  Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		purchases: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_purchases_total",
				Help: "Ticket purchase attempts by outcome",
			},
			[]string{"outcome"},
		),
		purchaseDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ticket_purchase_duration_seconds",
				Help:    "End to end duration of ticket purchases, payment included",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		jobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_jobs_total",
				Help: "Notification job transitions",
			},
			[]string{"job", "result"},
		),
		connections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "realtime_connections",
				Help: "Open websocket connections on this instance",
			},
		),
		emits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realtime_emits_total",
				Help: "Realtime frames emitted by scope",
			},
			[]string{"scope"},
		),
	}
}

// TrackPurchase records the outcome (paid, payment_failed, conflict, ...)
// and duration of one purchase attempt.
func (m *Metrics) TrackPurchase(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(outcome).Inc()
	m.purchaseDuration.Observe(d.Seconds())
}

// TrackJob records a job transition: enqueued, completed, retried, dropped.
func (m *Metrics) TrackJob(job, result string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(job, result).Inc()
}

// ConnectionOpened increments the open websocket gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed decrements the open websocket gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// TrackEmit counts an emitted frame for scope all, room or user.
func (m *Metrics) TrackEmit(scope string) {
	if m == nil {
		return
	}
	m.emits.WithLabelValues(scope).Inc()
}
