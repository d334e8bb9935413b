// Package monitoring provides operational metrics and request telemetry.
//
// DESIGN: Prometheus counters/histograms for the scrape endpoint, plus a
// JSONL tracker that appends one structured event per request for offline
// analysis. Both are fed by the gateway handlers and never block a request.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	feedbackGated   *prometheus.CounterVec
	upstreamErrors  prometheus.Counter
}

// NewMetrics registers the gateway collectors on a private registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by route and status code",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Denied requests by limiter scope",
		}, []string{"scope"}),
		feedbackGated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_rejected_total",
			Help:      "Feedback submissions rejected by gate",
		}, []string{"gate"}),
		upstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream completion calls that failed or errored",
		}),
	}
	m.registry.MustRegister(m.requests, m.requestDuration, m.rateLimited, m.feedbackGated, m.upstreamErrors)
	return m
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(route, status string, durationSeconds float64) {
	m.requests.WithLabelValues(route, status).Inc()
	m.requestDuration.WithLabelValues(route).Observe(durationSeconds)
}

// IncRateLimited records a limiter denial. scope is "llm" or "feedback".
func (m *Metrics) IncRateLimited(scope string) {
	m.rateLimited.WithLabelValues(scope).Inc()
}

// IncFeedbackRejected records a gate rejection by gate name.
func (m *Metrics) IncFeedbackRejected(gate string) {
	m.feedbackGated.WithLabelValues(gate).Inc()
}

// IncUpstreamError records an upstream failure.
func (m *Metrics) IncUpstreamError() {
	m.upstreamErrors.Inc()
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
