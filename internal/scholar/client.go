// Package scholar provides the resilient HTTP client for the Semantic
// Scholar Graph and Recommendations APIs. Every call passes through a
// client-side token bucket, a circuit breaker, and a status-to-error
// translation layer; retry-enabled entry points add bounded exponential
// backoff for rate-limited calls.
package scholar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/helixir/scholar-service/internal/domain"
	"github.com/helixir/scholar-service/internal/observability"
	"github.com/helixir/scholar-service/internal/resilience"
)

const (
	// DefaultGraphBaseURL is the default base URL for the Graph API.
	DefaultGraphBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRecommendationsBaseURL is the default base URL for the
	// Recommendations API.
	DefaultRecommendationsBaseURL = "https://api.semanticscholar.org/recommendations/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default sustained requests per second.
	// Unauthenticated access shares a pool of 5,000 requests per 5 minutes.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for the token bucket.
	DefaultBurstSize = 10

	// DefaultMaxResponseBytes is the body size above which a successful
	// response is reported as oversized.
	DefaultMaxResponseBytes = 10 << 20

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"
)

// API selects which Semantic Scholar API a request targets.
type API int

const (
	// GraphAPI targets the Graph API (papers, authors, citations).
	GraphAPI API = iota
	// RecommendationsAPI targets the Recommendations API.
	RecommendationsAPI
)

// Config contains configuration options for the client.
type Config struct {
	// GraphBaseURL is the base URL for the Graph API.
	// Defaults to DefaultGraphBaseURL if empty.
	GraphBaseURL string

	// RecommendationsBaseURL is the base URL for the Recommendations API.
	// Defaults to DefaultRecommendationsBaseURL if empty.
	RecommendationsBaseURL string

	// APIKey is the optional API key for authenticated requests.
	APIKey string

	// Timeout is the HTTP request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// RateLimit is the maximum sustained requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to DefaultBurstSize if zero.
	BurstSize int

	// MaxResponseBytes is the threshold above which successful response
	// bodies are reported as oversized. Defaults to
	// DefaultMaxResponseBytes if zero. Oversized bodies are still parsed.
	MaxResponseBytes int64

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string
}

// Client is the resilient Semantic Scholar API client. It is safe for
// concurrent use: the token bucket and circuit breaker are goroutine-safe,
// and no other state is mutated after construction.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	retry      resilience.RetryPolicy
	cfg        Config
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a client from cfg, wiring in the retry policy and
// circuit breaker that guard every call.
func NewClient(
	cfg Config,
	retry resilience.RetryPolicy,
	breaker *resilience.Breaker,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Client {
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = DefaultGraphBaseURL
	}
	if cfg.RecommendationsBaseURL == "" {
		cfg.RecommendationsBaseURL = DefaultRecommendationsBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxResponseBytes == 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Helixir-ScholarService/1.0"
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.BurstSize),
		breaker:    breaker,
		retry:      retry,
		cfg:        cfg,
		logger:     logger.With().Str("component", "scholar-client").Logger(),
		metrics:    metrics,
	}
}

// Get performs a single GET request against the selected API and returns the
// raw JSON payload. Failures are translated into the domain error taxonomy;
// no retries are performed.
func (c *Client) Get(ctx context.Context, api API, endpoint string, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, api, endpoint, params, nil)
}

// Post performs a single POST request with a JSON body against the selected
// API and returns the raw JSON payload.
func (c *Client) Post(ctx context.Context, api API, endpoint string, body any, params url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, api, endpoint, params, body)
}

// GetWithRetry performs a GET request, retrying with exponential backoff
// when the upstream rate-limits the call. All other failure kinds propagate
// on first occurrence.
func (c *Client) GetWithRetry(ctx context.Context, api API, endpoint string, params url.Values) (json.RawMessage, error) {
	attempts := 0
	return resilience.WithRetry(ctx, c.retry, func(ctx context.Context) (json.RawMessage, error) {
		attempts++
		if attempts > 1 {
			c.metrics.RetriesTotal.Inc()
		}
		return c.Get(ctx, api, endpoint, params)
	})
}

// PostWithRetry performs a POST request with the same retry behavior as
// GetWithRetry.
func (c *Client) PostWithRetry(ctx context.Context, api API, endpoint string, body any, params url.Values) (json.RawMessage, error) {
	attempts := 0
	return resilience.WithRetry(ctx, c.retry, func(ctx context.Context) (json.RawMessage, error) {
		attempts++
		if attempts > 1 {
			c.metrics.RetriesTotal.Inc()
		}
		return c.Post(ctx, api, endpoint, body, params)
	})
}

// Breaker exposes the circuit breaker for administrative reset and state
// inspection.
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// do executes one request under the circuit breaker. Availability failures
// (connectivity, 5xx, 401/403) propagate through the breaker callback and
// are recorded; business-signal statuses (404, 429, other 4xx) are captured
// on a side channel so the breaker sees them as completed calls.
func (c *Client) do(ctx context.Context, method string, api API, endpoint string, params url.Values, body any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := c.newRequest(ctx, method, api, endpoint, params, body)
	if err != nil {
		return nil, err
	}

	label := endpointLabel(endpoint)
	c.metrics.APIRequestsTotal.WithLabelValues(label, method).Inc()
	start := time.Now()

	var payload json.RawMessage
	var bizErr error

	err = c.breaker.Do(func() error {
		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return &domain.ConnectivityError{Op: method + " " + endpoint, Cause: doErr}
		}
		defer resp.Body.Close()

		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &domain.ConnectivityError{Op: "read " + endpoint, Cause: readErr}
		}

		c.logger.Debug().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("API response")

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if int64(len(raw)) > c.cfg.MaxResponseBytes {
				c.logger.Warn().
					Str("endpoint", endpoint).
					Int("bytes", len(raw)).
					Int64("threshold", c.cfg.MaxResponseBytes).
					Msg("oversized API response")
				c.metrics.OversizedResponses.WithLabelValues(label).Inc()
			}
			payload = raw
			return nil

		case resp.StatusCode == http.StatusTooManyRequests:
			c.metrics.RateLimitedTotal.Inc()
			bizErr = &domain.RateLimitError{
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
			return nil

		case resp.StatusCode == http.StatusNotFound:
			bizErr = &domain.NotFoundError{Entity: entityForEndpoint(endpoint), ID: endpoint}
			return nil

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: status %d", domain.ErrAuthenticationFailed, resp.StatusCode)

		case resp.StatusCode >= 500:
			return &domain.ServerError{StatusCode: resp.StatusCode}

		default:
			bizErr = &domain.ExternalAPIError{
				StatusCode: resp.StatusCode,
				Body:       string(raw),
			}
			return nil
		}
	})

	c.metrics.APIRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.APIRequestsFailed.WithLabelValues(label, failureKind(err)).Inc()
		return nil, err
	}
	if bizErr != nil {
		c.metrics.APIRequestsFailed.WithLabelValues(label, failureKind(bizErr)).Inc()
		return nil, bizErr
	}
	return payload, nil
}

// newRequest builds the HTTP request with base URL selection, query
// parameters, headers, and an optional JSON body.
func (c *Client) newRequest(ctx context.Context, method string, api API, endpoint string, params url.Values, body any) (*http.Request, error) {
	base := c.cfg.GraphBaseURL
	if api == RecommendationsAPI {
		base = c.cfg.RecommendationsBaseURL
	}

	reqURL := base + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}
	return req, nil
}

// parseRetryAfter extracts a delay from a Retry-After header value. Integer
// seconds are tried first, then fractional seconds, then an HTTP date. Parse
// failures yield zero (hint absent).
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds * float64(time.Second))
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}

// entityForEndpoint infers the resource kind from the endpoint path for
// not-found errors.
func entityForEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "/author"):
		return "author"
	case strings.HasPrefix(endpoint, "/paper"):
		return "paper"
	default:
		return "resource"
	}
}

// endpointLabel reduces an endpoint path to its leading segment to bound
// metric label cardinality.
func endpointLabel(endpoint string) string {
	trimmed := strings.TrimPrefix(endpoint, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		return "/" + trimmed[:idx]
	}
	return "/" + trimmed
}

// failureKind maps an error to its metric label.
func failureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return "auth"
	case errors.Is(err, domain.ErrServerError):
		return "server"
	case errors.Is(err, domain.ErrConnectivity):
		return "connectivity"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "upstream"
	}
}
