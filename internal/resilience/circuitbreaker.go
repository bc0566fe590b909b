// Package resilience guards calls to the smart-home backend with a circuit
// breaker.
//
// [CircuitBreaker] is a thin layer over github.com/sony/gobreaker. It trips
// after a run of consecutive failures, rejects calls with [ErrCircuitOpen]
// while open, and lets a bounded number of probe calls through once the
// reset timeout has elapsed. Only errors accepted by the configured
// [CircuitBreakerConfig.Counts] predicate count as failures, so a "not
// found" answer from a healthy backend never trips the breaker.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker
// refuses the call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
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

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive counted failures that opens
	// the breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before allowing probe
	// calls. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes required to close the
	// breaker again. Default: 1.
	HalfOpenMax int

	// Counts decides whether err counts as a failure. When nil every
	// non-nil error counts.
	Counts func(err error) bool

	// OnStateChange is called after every transition. Optional.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker protects a dependency from being hammered while it is down.
type CircuitBreaker struct {
	name   string
	counts func(error) bool
	cb     *gobreaker.CircuitBreaker
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields are
// replaced with defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	counts := cfg.Counts
	if counts == nil {
		counts = func(err error) bool { return err != nil }
	}

	maxFailures := uint32(cfg.MaxFailures)
	onChange := cfg.OnStateChange
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.HalfOpenMax),
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f, t := fromGobreaker(from), fromGobreaker(to)
			if t == StateOpen {
				slog.Warn("resilience: circuit breaker opened", "name", name, "from", f.String())
			} else {
				slog.Info("resilience: circuit breaker state changed", "name", name, "from", f.String(), "to", t.String())
			}
			if onChange != nil {
				onChange(name, f, t)
			}
		},
	}

	return &CircuitBreaker{
		name:   cfg.Name,
		counts: counts,
		cb:     gobreaker.NewCircuitBreaker(settings),
	}
}

// Execute runs fn unless the breaker is open. Errors from fn are returned
// unchanged; only errors accepted by the Counts predicate are recorded as
// failures.
func (b *CircuitBreaker) Execute(fn func() error) error {
	var callErr error
	_, err := b.cb.Execute(func() (interface{}, error) {
		callErr = fn()
		if callErr != nil && b.counts(callErr) {
			return nil, callErr
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return callErr
}

// State returns the current [State] of the breaker.
func (b *CircuitBreaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Name returns the configured breaker name.
func (b *CircuitBreaker) Name() string {
	return b.name
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	}
	return State(-1)
}
