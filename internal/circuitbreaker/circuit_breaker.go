// Package circuitbreaker implements the Closed/Open/HalfOpen state machine
// used to protect the VectorStore against a failing backend and trigger the
// transparent fallback to the in-memory store.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected because the circuit is open.
var ErrOpen = errors.New("circuit breaker: circuit is open")

// Config configures the thresholds driving state transitions.
type Config struct {
	FailureThreshold int           // consecutive failures to open the circuit
	SuccessThreshold int           // consecutive half-open successes to close
	Timeout          time.Duration // how long to stay open before probing
	OnStateChange    func(from, to State)
}

// CircuitBreaker wraps an operation with failure-triggered fallback.
type CircuitBreaker struct {
	config Config

	mu              sync.Mutex
	state           State
	consecutiveFail int32
	consecutiveOK   int32
	openedAt        time.Time
}

// New creates a CircuitBreaker, filling in sane defaults for zero fields.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{config: cfg, state: StateClosed}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats summarizes the breaker for health/metrics reporting.
type Stats struct {
	State              string `json:"state"`
	ConsecutiveFailures int32 `json:"consecutive_failures"`
}

func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{State: cb.state.String(), ConsecutiveFailures: cb.consecutiveFail}
}

// canExecute reports whether a call is currently allowed, transitioning
// Open -> HalfOpen when the timeout has elapsed.
func (cb *CircuitBreaker) canExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.Timeout {
			cb.transitionTo(StateHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// transitionTo moves state and fires OnStateChange. Caller holds cb.mu.
func (cb *CircuitBreaker) transitionTo(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateOpen {
		cb.openedAt = time.Now()
	}
	if to == StateClosed || to == StateHalfOpen {
		cb.consecutiveFail = 0
	}
	if to != StateHalfOpen {
		cb.consecutiveOK = 0
	}
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFail = 0
	if cb.state == StateHalfOpen {
		cb.consecutiveOK++
		if cb.consecutiveOK >= int32(cb.config.SuccessThreshold) {
			cb.transitionTo(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFail++
	if cb.state == StateHalfOpen {
		cb.transitionTo(StateOpen)
		return
	}
	if cb.state == StateClosed && cb.consecutiveFail >= int32(cb.config.FailureThreshold) {
		cb.transitionTo(StateOpen)
	}
}

// Execute runs fn if the circuit allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.canExecute() {
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

// ExecuteWithFallback runs fn, and on error (including ErrOpen) runs
// fallback instead of propagating — used for read paths that can
// transparently degrade (e.g. VectorStore.Search returning empty results).
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(context.Context, error) error) error {
	if !cb.canExecute() {
		return fallback(ctx, ErrOpen)
	}
	err := fn(ctx)
	if err != nil {
		cb.recordFailure()
		return fallback(ctx, err)
	}
	cb.recordSuccess()
	return nil
}

// Reset forces the breaker back to Closed, used by an explicit reload.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(StateClosed)
	cb.consecutiveFail = 0
	cb.consecutiveOK = 0
}
