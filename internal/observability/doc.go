// Package observability provides structured logging and Prometheus metrics
// for the scholar service.
//
// Logging is built on zerolog with configurable level, format, and output.
// Metrics cover the outbound Semantic Scholar API calls (request counts,
// failures, durations, rate limiting, retries), the circuit breaker state,
// and the paper tracker.
package observability
