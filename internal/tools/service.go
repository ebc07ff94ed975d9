// Package tools implements the callable operations exposed by the scholar
// service: paper search and citation traversal, author search and
// disambiguation, recommendations, session paper tracking, and bibliography
// export. Operations return typed results and typed errors; converting
// not-found and empty-result conditions into user-facing guidance text is
// the HTTP layer's job.
package tools

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/helixir/scholar-service/internal/observability"
	"github.com/helixir/scholar-service/internal/scholar"
	"github.com/helixir/scholar-service/internal/tracker"
)

// APIClient is the outbound capability the tools consume. The concrete
// implementation is scholar.Client; tests substitute a fake.
type APIClient interface {
	GetWithRetry(ctx context.Context, api scholar.API, endpoint string, params url.Values) (json.RawMessage, error)
	PostWithRetry(ctx context.Context, api scholar.API, endpoint string, body any, params url.Values) (json.RawMessage, error)
}

// Service bundles the collaborators shared by every tool operation.
type Service struct {
	client  APIClient
	tracker *tracker.PaperTracker
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewService creates a Service. The tracker is owned by the host process and
// injected here so tracking and export tools observe the same store.
func NewService(client APIClient, paperTracker *tracker.PaperTracker, logger zerolog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		client:  client,
		tracker: paperTracker,
		logger:  logger.With().Str("component", "tools").Logger(),
		metrics: metrics,
	}
}

// Tracker exposes the underlying paper tracker for host-level wiring.
func (s *Service) Tracker() *tracker.PaperTracker { return s.tracker }

// recordOutcome updates the tool invocation metric.
func (s *Service) recordOutcome(tool string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ToolInvocations.WithLabelValues(tool, outcome).Inc()
}
