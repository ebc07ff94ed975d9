package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-service/internal/domain"
	"github.com/helixir/scholar-service/internal/observability"
	"github.com/helixir/scholar-service/internal/resilience"
	"github.com/helixir/scholar-service/internal/scholar"
	"github.com/helixir/scholar-service/internal/tools"
	"github.com/helixir/scholar-service/internal/tracker"
)

// stubClient serves canned payloads by endpoint prefix and a single optional
// error.
type stubClient struct {
	responses map[string]string
	err       error
}

func (s *stubClient) lookup(endpoint string) (json.RawMessage, error) {
	if s.err != nil {
		return nil, s.err
	}
	for prefix, payload := range s.responses {
		if strings.HasPrefix(endpoint, prefix) {
			return json.RawMessage(payload), nil
		}
	}
	return json.RawMessage(`{}`), nil
}

func (s *stubClient) GetWithRetry(ctx context.Context, api scholar.API, endpoint string, params url.Values) (json.RawMessage, error) {
	return s.lookup(endpoint)
}

func (s *stubClient) PostWithRetry(ctx context.Context, api scholar.API, endpoint string, body any, params url.Values) (json.RawMessage, error) {
	return s.lookup(endpoint)
}

func newTestServer(t *testing.T, client tools.APIClient) *Server {
	t.Helper()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", registry)
	breaker := resilience.NewBreaker(resilience.DefaultBreakerConfig(), zerolog.Nop())
	svc := tools.NewService(client, tracker.NewPaperTracker(), zerolog.Nop(), metrics)

	return NewServer(Config{
		Address:        "127.0.0.1:0",
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
	}, svc, breaker, registry, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, &stubClient{})

	t.Run("healthz", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz degrades with an open circuit", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		for i := 0; i < resilience.DefaultBreakerConfig().FailureThreshold; i++ {
			_ = s.breaker.Do(func() error { return &domain.ServerError{StatusCode: 500} })
		}
		rec = doRequest(t, s, http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		s.breaker.Reset()
	})

	t.Run("metrics endpoint is exposed", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSearchPapersEndpoint(t *testing.T) {
	t.Run("returns papers", func(t *testing.T) {
		s := newTestServer(t, &stubClient{responses: map[string]string{
			"/paper/search": `{"total":1,"data":[{"paperId":"p1","title":"First"}]}`,
		}})

		rec := doRequest(t, s, http.MethodGet, "/api/v1/papers/search?query=test", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp papersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		assert.Empty(t, resp.Message)
	})

	t.Run("empty result carries guidance", func(t *testing.T) {
		s := newTestServer(t, &stubClient{responses: map[string]string{
			"/paper/search": `{"total":0,"data":[]}`,
		}})

		rec := doRequest(t, s, http.MethodGet, "/api/v1/papers/search?query=zzz", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp papersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Zero(t, resp.Count)
		assert.NotEmpty(t, resp.Message)
	})

	t.Run("missing query is a 400", func(t *testing.T) {
		s := newTestServer(t, &stubClient{})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/papers/search", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestErrorMapping(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		s := newTestServer(t, &stubClient{err: &domain.NotFoundError{Entity: "paper", ID: "/paper/x"}})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/papers/x", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Verify the ID")
	})

	t.Run("rate limited sets Retry-After", func(t *testing.T) {
		s := newTestServer(t, &stubClient{err: &domain.RateLimitError{RetryAfter: 7 * time.Second}})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/papers/x", "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "7", rec.Header().Get("Retry-After"))
	})

	t.Run("open circuit is 503", func(t *testing.T) {
		s := newTestServer(t, &stubClient{err: resilience.ErrCircuitOpen})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/papers/x", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("server error is 502", func(t *testing.T) {
		s := newTestServer(t, &stubClient{err: &domain.ServerError{StatusCode: 500}})
		rec := doRequest(t, s, http.MethodGet, "/api/v1/papers/x", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestRecommendationsEndpoint(t *testing.T) {
	t.Run("validates body", func(t *testing.T) {
		s := newTestServer(t, &stubClient{})

		rec := doRequest(t, s, http.MethodPost, "/api/v1/papers/recommendations", `{"positive_paper_ids":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doRequest(t, s, http.MethodPost, "/api/v1/papers/recommendations", `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns recommendations", func(t *testing.T) {
		s := newTestServer(t, &stubClient{responses: map[string]string{
			"/papers": `{"recommendedPapers":[{"paperId":"r1"}]}`,
		}})

		rec := doRequest(t, s, http.MethodPost, "/api/v1/papers/recommendations", `{"positive_paper_ids":["p1"]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp papersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})
}

func TestConsolidateEndpoint(t *testing.T) {
	t.Run("requires two IDs", func(t *testing.T) {
		s := newTestServer(t, &stubClient{})
		rec := doRequest(t, s, http.MethodPost, "/api/v1/authors/consolidate", `{"author_ids":["a1"]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("merges records", func(t *testing.T) {
		s := newTestServer(t, &stubClient{responses: map[string]string{
			"/author/": `{"authorId":"a1","name":"John Smith","citationCount":10}`,
		}})

		rec := doRequest(t, s, http.MethodPost, "/api/v1/authors/consolidate",
			`{"author_ids":["a1","a2"],"confirm_merge":false}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"is_preview":true`)
	})
}

func TestTrackingEndpoints(t *testing.T) {
	s := newTestServer(t, &stubClient{responses: map[string]string{
		"/paper/search": `{"data":[{"paperId":"p1","title":"Tracked","year":2020,"authors":[{"name":"Jane Doe"}],"externalIds":{"DOI":"10.1/x"}}]}`,
	}})

	// Populate the tracker through a search.
	rec := doRequest(t, s, http.MethodGet, "/api/v1/papers/search?query=x", "")
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("list", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/api/v1/tracked-papers", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp papersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("export", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodPost, "/api/v1/export/bibtex", `{}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp exportBibTeXResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp.BibTeX, "doe2020")
	})

	t.Run("clear", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodDelete, "/api/v1/tracked-papers", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"cleared":1`)

		rec = doRequest(t, s, http.MethodGet, "/api/v1/tracked-papers", "")
		var resp papersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Zero(t, resp.Count)
		assert.NotEmpty(t, resp.Message)
	})
}

func TestCorrelationIDHeader(t *testing.T) {
	s := newTestServer(t, &stubClient{})

	t.Run("generated when absent", func(t *testing.T) {
		rec := doRequest(t, s, http.MethodGet, "/healthz", "")
		assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
	})

	t.Run("echoed when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Correlation-ID", "my-id")
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		assert.Equal(t, "my-id", rec.Header().Get("X-Correlation-ID"))
	})
}
