package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-service/internal/domain"
)

func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second, ExponentialBase: 2, Jitter: 0})

	assert.True(t, policy.ShouldRetry(0))
	assert.True(t, policy.ShouldRetry(2))
	assert.False(t, policy.ShouldRetry(3))
	assert.False(t, policy.ShouldRetry(10))
}

func TestRetryPolicyDelay(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:      5,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          0.1,
	}

	t.Run("exponential growth without jitter", func(t *testing.T) {
		policy := NewRetryPolicyWithRand(cfg, fixedRand(0))

		assert.Equal(t, time.Second, policy.Delay(0, 0))
		assert.Equal(t, 2*time.Second, policy.Delay(1, 0))
		assert.Equal(t, 4*time.Second, policy.Delay(2, 0))
	})

	t.Run("capped at max delay", func(t *testing.T) {
		policy := NewRetryPolicyWithRand(cfg, fixedRand(0))

		assert.Equal(t, 60*time.Second, policy.Delay(10, 0))
	})

	t.Run("jitter adds at most the configured fraction", func(t *testing.T) {
		policy := NewRetryPolicyWithRand(cfg, fixedRand(1))

		delay := policy.Delay(0, 0)
		assert.Equal(t, time.Second+100*time.Millisecond, delay)
	})

	t.Run("server hint takes priority over backoff", func(t *testing.T) {
		policy := NewRetryPolicyWithRand(cfg, fixedRand(0))

		// Attempt 0 would normally be 1s; the hint wins.
		assert.Equal(t, 7*time.Second, policy.Delay(0, 7*time.Second))
	})

	t.Run("server hint is not capped", func(t *testing.T) {
		policy := NewRetryPolicyWithRand(cfg, fixedRand(0))

		assert.Equal(t, 120*time.Second, policy.Delay(0, 120*time.Second))
	})
}

func TestWithRetry(t *testing.T) {
	cfg := RetryConfig{
		MaxRetries:      3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2.0,
		Jitter:          0,
	}
	policy := NewRetryPolicyWithRand(cfg, fixedRand(0))

	t.Run("success on first attempt", func(t *testing.T) {
		calls := 0
		result, err := WithRetry(context.Background(), policy, func(ctx context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries rate limit errors until success", func(t *testing.T) {
		calls := 0
		result, err := WithRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, &domain.RateLimitError{}
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 3, calls)
	})

	t.Run("non rate limit errors propagate immediately", func(t *testing.T) {
		calls := 0
		serverErr := &domain.ServerError{StatusCode: 500}
		_, err := WithRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
			calls++
			return 0, serverErr
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrServerError)
		assert.Equal(t, 1, calls)
	})

	t.Run("budget exhaustion returns last rate limit error", func(t *testing.T) {
		calls := 0
		_, err := WithRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
			calls++
			return 0, &domain.RateLimitError{}
		})
		require.Error(t, err)
		var rateLimit *domain.RateLimitError
		assert.ErrorAs(t, err, &rateLimit)
		// Initial attempt plus MaxRetries.
		assert.Equal(t, 4, calls)
	})

	t.Run("context cancellation stops retries", func(t *testing.T) {
		slowPolicy := NewRetryPolicyWithRand(RetryConfig{
			MaxRetries:      3,
			BaseDelay:       time.Hour,
			MaxDelay:        time.Hour,
			ExponentialBase: 2.0,
		}, fixedRand(0))

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		done := make(chan struct{})
		var retErr error
		go func() {
			defer close(done)
			_, retErr = WithRetry(ctx, slowPolicy, func(ctx context.Context) (int, error) {
				calls++
				return 0, &domain.RateLimitError{}
			})
		}()

		// Let the first attempt land in the backoff sleep, then cancel.
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("WithRetry did not return after cancellation")
		}

		require.Error(t, retErr)
		var rateLimit *domain.RateLimitError
		assert.ErrorAs(t, retErr, &rateLimit)
		assert.Equal(t, 1, calls)
	})

	t.Run("wrapped rate limit errors are still retried", func(t *testing.T) {
		calls := 0
		result, err := WithRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, fmt.Errorf("upstream call: %w", &domain.RateLimitError{})
			}
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, result)
		assert.Equal(t, 2, calls)
	})
}
