// Package llm provides a resilient chat-completions client for the analysis
// provider: each call is guarded by a circuit breaker, retried with
// exponential backoff for transient failures, and every error is classified
// into a fixed [ErrorKind] taxonomy before the caller sees it.
package llm

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without any network I/O while the breaker is
// open and the recovery timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Clock abstracts wall-clock reads so breaker recovery can be tested
// without real delays.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// BreakerState represents the current operating mode of a [Breaker].
type BreakerState int

const (
	// StateClosed is the normal operating state, all calls are forwarded.
	StateClosed BreakerState = iota

	// StateOpen means the breaker tripped on consecutive failures. Calls
	// are rejected with [ErrCircuitOpen] until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after the recovery timeout.
	// Trial calls are allowed through; enough successes close the breaker,
	// any failure re-opens it.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker]. Zero-value fields are
// replaced with defaults.
type BreakerConfig struct {
	// Name is a label used in log messages.
	Name string

	// FailureThreshold is the number of consecutive failures in the closed
	// state before the breaker opens. Default: 5.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before permitting
	// a trial call. Default: 60s.
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of consecutive successes in half-open
	// state required to close the breaker. Default: 2.
	SuccessThreshold int

	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every non-nil error. The client supplies a predicate that
	// ignores caller cancellations.
	IsFailure func(error) bool

	Clock  Clock
	Logger *zap.Logger
}

// Breaker implements the three-state circuit breaker pattern. It is safe
// for concurrent use.
type Breaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	successThreshold int
	isFailure        func(error) bool
	clock            Clock
	logger           *zap.Logger

	mu                sync.Mutex
	state             BreakerState
	consecutiveFails  int
	lastFailure       time.Time
	halfOpenSuccesses int
}

// NewBreaker creates a [Breaker] with the supplied configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Breaker{
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		recoveryTimeout:  cfg.RecoveryTimeout,
		successThreshold: cfg.SuccessThreshold,
		isFailure:        cfg.IsFailure,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
		state:            StateClosed,
	}
}

// Execute runs fn if the breaker allows it. In the open state it returns
// [ErrCircuitOpen] without calling fn; after the recovery timeout a single
// call transitions the breaker to half-open and fn is tried.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.clock.Now().Sub(b.lastFailure) >= b.recoveryTimeout {
			b.state = StateHalfOpen
			b.halfOpenSuccesses = 0
			b.logger.Info("circuit breaker transitioning to half-open",
				zap.String("name", b.name))
		} else {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	inHalfOpen := b.state == StateHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		if b.isFailure == nil || b.isFailure(err) {
			b.recordFailure(inHalfOpen)
		}
		return err
	}
	b.recordSuccess(inHalfOpen)
	return nil
}

// recordFailure handles failure accounting. Must be called with b.mu held.
func (b *Breaker) recordFailure(inHalfOpen bool) {
	b.lastFailure = b.clock.Now()

	if inHalfOpen {
		// Any failure in half-open re-opens and restarts the recovery timer.
		b.state = StateOpen
		b.consecutiveFails = b.failureThreshold
		b.halfOpenSuccesses = 0
		b.logger.Warn("circuit breaker re-opened from half-open",
			zap.String("name", b.name))
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold && b.state == StateClosed {
		b.state = StateOpen
		b.logger.Warn("circuit breaker opened",
			zap.String("name", b.name),
			zap.Int("consecutive_failures", b.consecutiveFails))
	}
}

// recordSuccess handles success accounting. Must be called with b.mu held.
func (b *Breaker) recordSuccess(inHalfOpen bool) {
	if inHalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.successThreshold {
			b.state = StateClosed
			b.consecutiveFails = 0
			b.halfOpenSuccesses = 0
			b.logger.Info("circuit breaker closed after successful probes",
				zap.String("name", b.name))
		}
		return
	}

	b.consecutiveFails = 0
}

// State returns the current [BreakerState]. If the breaker is open and the
// recovery timeout has elapsed, the returned state is [StateHalfOpen] (the
// actual transition happens on the next [Breaker.Execute] call).
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.clock.Now().Sub(b.lastFailure) >= b.recoveryTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset manually forces the breaker back to [StateClosed], clearing all
// failure counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.consecutiveFails = 0
	b.halfOpenSuccesses = 0
	b.logger.Info("circuit breaker manually reset", zap.String("name", b.name))
}
