// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics holds the service collectors on a private registry. All methods
// are safe on a nil receiver so components can run uninstrumented.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	checkouts     *prometheus.CounterVec
	ledger        *prometheus.CounterVec
	reviews       *prometheus.CounterVec
	outboxRelayed *prometheus.CounterVec
}

// New creates and registers the service collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout session attempts by outcome.",
		}, []string{"outcome"}),
		ledger: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Order ledger writes by operation and result.",
		}, []string{"operation", "result"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_submissions_total",
			Help:      "Review submissions by outcome.",
		}, []string{"outcome"}),
		outboxRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_relayed_total",
			Help:      "Outbox events relayed to the broker by type and result.",
		}, []string{"event_type", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.latency,
		m.checkouts,
		m.ledger,
		m.reviews,
		m.outboxRelayed,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, status).Inc()
	m.latency.WithLabelValues(route).Observe(seconds)
}

// CheckoutOutcome records the result of a checkout attempt.
func (m *Metrics) CheckoutOutcome(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
}

// LedgerOperation records an order ledger write.
func (m *Metrics) LedgerOperation(operation, result string) {
	if m == nil {
		return
	}
	m.ledger.WithLabelValues(operation, result).Inc()
}

// ReviewOutcome records the result of a review submission.
func (m *Metrics) ReviewOutcome(outcome string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(outcome).Inc()
}

// OutboxRelayed records an outbox relay attempt.
func (m *Metrics) OutboxRelayed(eventType, result string) {
	if m == nil {
		return
	}
	m.outboxRelayed.WithLabelValues(eventType, result).Inc()
}
