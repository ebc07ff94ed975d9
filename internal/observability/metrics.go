package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the scholar service. Metrics
// cover the outbound API client, its resilience layer, and the paper
// tracker.
type Metrics struct {
	// APIRequestsTotal counts outbound API requests, labeled by endpoint
	// and method.
	APIRequestsTotal *prometheus.CounterVec

	// APIRequestsFailed counts failed outbound API requests, labeled by
	// endpoint and error kind.
	APIRequestsFailed *prometheus.CounterVec

	// APIRequestDuration observes outbound request duration in seconds,
	// labeled by endpoint.
	APIRequestDuration *prometheus.HistogramVec

	// RateLimitedTotal counts 429 responses from the upstream API.
	RateLimitedTotal prometheus.Counter

	// RetriesTotal counts retry attempts performed after rate limiting.
	RetriesTotal prometheus.Counter

	// CircuitState reports the circuit breaker state (0 closed, 1 open,
	// 2 half-open).
	CircuitState prometheus.Gauge

	// CircuitTransitions counts breaker state transitions, labeled by the
	// state entered.
	CircuitTransitions *prometheus.CounterVec

	// OversizedResponses counts 2xx responses whose body exceeded the
	// configured size threshold, labeled by endpoint.
	OversizedResponses *prometheus.CounterVec

	// PapersTracked reports the current number of papers in the tracker.
	PapersTracked prometheus.Gauge

	// ToolInvocations counts tool-layer operations, labeled by tool name
	// and outcome.
	ToolInvocations *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with reg. The namespace
// is used as a prefix for all metric names.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		APIRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total outbound Semantic Scholar API requests",
		}, []string{"endpoint", "method"}),
		APIRequestsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_failed_total",
			Help:      "Total failed outbound Semantic Scholar API requests",
		}, []string{"endpoint", "kind"}),
		APIRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Outbound API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limited_total",
			Help:      "Total 429 responses received from the upstream API",
		}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Total retry attempts performed after rate limiting",
		}),
		CircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
		CircuitTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions by state entered",
		}, []string{"state"}),
		OversizedResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_oversized_responses_total",
			Help:      "Successful responses whose body exceeded the size threshold",
		}, []string{"endpoint"}),
		PapersTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "papers_tracked",
			Help:      "Current number of papers held by the paper tracker",
		}),
		ToolInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool-layer operations by tool name and outcome",
		}, []string{"tool", "outcome"}),
	}
}
