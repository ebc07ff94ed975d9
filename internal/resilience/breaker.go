package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// invoking it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrHalfOpenSaturated is returned when the breaker is half-open and all
// trial-call slots are taken. It wraps ErrCircuitOpen so callers that only
// care about "rejected without a network call" can match either with a
// single errors.Is check.
var ErrHalfOpenSaturated = fmt.Errorf("max half-open calls reached: %w", ErrCircuitOpen)

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is normal operation; calls pass through.
	CircuitClosed CircuitState = iota
	// CircuitOpen fails calls fast without invoking them.
	CircuitOpen
	// CircuitHalfOpen admits a bounded number of trial calls to probe
	// recovery.
	CircuitHalfOpen
)

// String returns the state name.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive recorded failures that
	// opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before admitting
	// trial calls.
	RecoveryTimeout time.Duration

	// HalfOpenMaxCalls bounds the number of trial calls admitted while
	// half-open.
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig returns the breaker settings used for the Semantic
// Scholar dependency.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Breaker is a circuit breaker protecting one upstream dependency. The
// mutex covers exactly the admission decision and outcome recording; the
// wrapped call runs outside it, so a slow call never blocks circuit-state
// housekeeping for other callers. Admission is atomic: when one half-open
// slot remains, concurrent callers cannot both take it.
//
// Open-to-half-open transitions are evaluated lazily at the start of each
// call attempt rather than by a background timer.
type Breaker struct {
	mu            sync.Mutex
	cfg           BreakerConfig
	state         CircuitState
	failures      int
	lastFailure   time.Time
	halfOpenCalls int
	now           func() time.Time
	logger        zerolog.Logger
	onStateChange func(CircuitState)
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	return &Breaker{
		cfg:    cfg,
		state:  CircuitClosed,
		now:    time.Now,
		logger: logger.With().Str("component", "circuit-breaker").Logger(),
	}
}

// OnStateChange registers a callback invoked (under the breaker lock) after
// every state transition, used to export the state as a metric.
func (b *Breaker) OnStateChange(fn func(CircuitState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Do runs fn under circuit breaker protection. If the circuit is open, Do
// fails fast with ErrCircuitOpen without invoking fn; if half-open and the
// admission budget is spent, it fails fast with ErrHalfOpenSaturated. A nil
// return from fn records success; a non-nil return records failure.
//
// Callers decide which outcomes the breaker should see: business-signal
// failures (not found, rate limited) must be captured inside fn and returned
// out of band so they never count toward opening the circuit.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	if err != nil {
		b.recordFailure()
		return err
	}

	b.recordSuccess()
	return nil
}

// State returns the current state, applying any pending lazy transition.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkStateTransition()
	return b.state
}

// Reset unconditionally restores the closed, zeroed state. It exists for
// administrative recovery and test isolation, not the steady-state protocol.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(CircuitClosed)
	b.failures = 0
	b.lastFailure = time.Time{}
	b.halfOpenCalls = 0
}

// allow performs the admission decision atomically.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkStateTransition()

	switch b.state {
	case CircuitOpen:
		return ErrCircuitOpen
	case CircuitHalfOpen:
		if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
			return ErrHalfOpenSaturated
		}
		b.halfOpenCalls++
	}
	return nil
}

// checkStateTransition applies the time-based open-to-half-open transition.
// Callers must hold b.mu.
func (b *Breaker) checkStateTransition() {
	if b.state != CircuitOpen {
		return
	}
	elapsed := b.now().Sub(b.lastFailure)
	if elapsed >= b.cfg.RecoveryTimeout {
		b.logger.Info().Dur("elapsed", elapsed).Msg("circuit breaker transitioning to half-open")
		b.setState(CircuitHalfOpen)
		b.halfOpenCalls = 0
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitHalfOpen {
		b.logger.Info().Msg("circuit breaker: trial call succeeded, closing circuit")
		b.setState(CircuitClosed)
	}
	b.failures = 0
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == CircuitHalfOpen {
		b.logger.Warn().Msg("circuit breaker: trial call failed, reopening circuit")
		b.setState(CircuitOpen)
	} else if b.failures >= b.cfg.FailureThreshold {
		b.logger.Warn().Int("failures", b.failures).Msg("circuit breaker: failure threshold reached, opening circuit")
		b.setState(CircuitOpen)
	}
}

// setState updates the state and notifies the observer. Callers must hold
// b.mu.
func (b *Breaker) setState(s CircuitState) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onStateChange != nil {
		b.onStateChange(s)
	}
}
