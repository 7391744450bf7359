// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the controller's Prometheus collectors
type Metrics struct {
	WebhookRequests    *prometheus.CounterVec
	WebhookDuration    prometheus.Histogram
	Decisions          *prometheus.CounterVec
	SideEffectFailures *prometheus.CounterVec
	registry           *prometheus.Registry
}

// New creates the collectors on a dedicated registry, so tests can build as
// many instances as they like.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		WebhookRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitefence_webhook_requests_total",
				Help: "Webhook deliveries by HTTP status",
			},
			[]string{"status"},
		),
		WebhookDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitefence_webhook_duration_seconds",
				Help:    "Time spent processing one webhook delivery",
				Buckets: prometheus.DefBuckets,
			},
		),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitefence_decisions_total",
				Help: "Failover decisions by terminal outcome",
			},
			[]string{"outcome"},
		),
		SideEffectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitefence_side_effect_failures_total",
				Help: "Failed membership updates and replication offline commands",
			},
			[]string{"effect"},
		),
		registry: registry,
	}

	registry.MustRegister(m.WebhookRequests, m.WebhookDuration, m.Decisions, m.SideEffectFailures)
	return m
}

// ObserveWebhook records one delivery
func (m *Metrics) ObserveWebhook(status int, elapsed time.Duration) {
	m.WebhookRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.WebhookDuration.Observe(elapsed.Seconds())
}

// IncDecision counts a terminal decision
func (m *Metrics) IncDecision(outcome string) {
	m.Decisions.WithLabelValues(outcome).Inc()
}

// IncSideEffectFailure counts a failed side effect
func (m *Metrics) IncSideEffectFailure(effect string) {
	m.SideEffectFailures.WithLabelValues(effect).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
