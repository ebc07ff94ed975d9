// Package resilience provides the retry policy and circuit breaker guarding
// outbound calls to the Semantic Scholar APIs.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/helixir/scholar-service/internal/domain"
)

// RetryConfig configures exponential backoff for rate-limited calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the initial
	// call.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed exponential delay. Server-suggested delays
	// are not capped.
	MaxDelay time.Duration

	// ExponentialBase is the multiplier applied per attempt.
	ExponentialBase float64

	// Jitter is the random jitter fraction (0.0 to 1.0) added to every
	// delay to avoid synchronized retry storms.
	Jitter float64
}

// DefaultRetryConfig returns the retry settings tuned for the Semantic
// Scholar rate limits.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      5,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          0.1,
	}
}

// RetryPolicy computes backoff delays and retry eligibility. It holds no
// shared mutable state and is safe to use from any number of goroutines.
type RetryPolicy struct {
	cfg  RetryConfig
	rand func() float64
}

// NewRetryPolicy creates a RetryPolicy from cfg.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	return RetryPolicy{cfg: cfg, rand: rand.Float64}
}

// NewRetryPolicyWithRand creates a RetryPolicy with a caller-supplied random
// source, used by tests to make delays deterministic.
func NewRetryPolicyWithRand(cfg RetryConfig, random func() float64) RetryPolicy {
	return RetryPolicy{cfg: cfg, rand: random}
}

// Delay returns the backoff delay for the given zero-indexed attempt.
// A positive serverHint (from a Retry-After header) takes priority over the
// computed exponential backoff; in both cases a random jitter fraction is
// added on top.
func (p RetryPolicy) Delay(attempt int, serverHint time.Duration) time.Duration {
	if serverHint > 0 {
		jitter := time.Duration(float64(serverHint) * p.cfg.Jitter * p.rand())
		return serverHint + jitter
	}

	exponential := float64(p.cfg.BaseDelay) * math.Pow(p.cfg.ExponentialBase, float64(attempt))
	delay := time.Duration(math.Min(exponential, float64(p.cfg.MaxDelay)))

	jitter := time.Duration(float64(delay) * p.cfg.Jitter * p.rand())
	return delay + jitter
}

// ShouldRetry reports whether another attempt is allowed after the given
// zero-indexed attempt.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.cfg.MaxRetries
}

// Config returns the policy's configuration.
func (p RetryPolicy) Config() RetryConfig { return p.cfg }

// WithRetry invokes fn until it succeeds, fails with a non-rate-limit error,
// or exhausts the policy's retry budget. Only rate-limit failures are
// retried; every other error kind propagates on first occurrence. Backoff
// sleeps respect ctx, so cancelling stops further retries promptly and
// returns the in-flight rate-limit failure.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= policy.cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		var rateLimit *domain.RateLimitError
		if !errors.As(err, &rateLimit) {
			return zero, err
		}
		lastErr = err

		if !policy.ShouldRetry(attempt) {
			return zero, err
		}

		delay := policy.Delay(attempt, rateLimit.RetryAfter)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	// Defensive: the loop always returns from inside, but surface the last
	// rate-limit failure if it ever falls through.
	if lastErr != nil {
		return zero, lastErr
	}
	return zero, errors.New("retry loop exhausted without result")
}
