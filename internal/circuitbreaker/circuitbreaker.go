// Package circuitbreaker implements the circuit breaker pattern used around
// database access.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCircuitOpen is returned when the circuit is open and the call was not
// attempted.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the current mode of a breaker.
type State int

const (
	// StateClosed passes calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls immediately.
	StateOpen
	// StateHalfOpen lets probe calls through to test recovery.
	StateHalfOpen
)

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

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open successes that
	// closes it again.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// Name identifies the breaker in logs.
	Name string
	// IsFailure decides whether an error counts against the circuit. Nil
	// counts every error. Expected domain errors (not-found, version
	// conflicts) should not trip a breaker that guards infrastructure.
	IsFailure func(error) bool
}

// DefaultConfig returns a default circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Name:             "circuit-breaker",
	}
}

// Breaker is a three-state circuit breaker. Safe for concurrent use.
type Breaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time
}

// New creates a closed breaker with the given configuration.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &Breaker{
		cfg:   cfg,
		state: StateClosed,
	}
}

// Execute runs fn under the breaker. When the circuit is open the call is
// rejected with ErrCircuitOpen without running fn. fn's error is always
// returned as-is; only its classification feeds the breaker.
func (b *Breaker) Execute(_ context.Context, fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	b.record(err)
	return err
}

// allow reports whether a call may proceed, moving an expired open circuit
// to half-open.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return true
	}
	if time.Since(b.lastFailure) < b.cfg.Timeout {
		return false
	}

	b.state = StateHalfOpen
	b.successes = 0
	log.Info().Str("circuit_breaker", b.cfg.Name).Msg("Circuit breaker half-open, probing")
	return true
}

func (b *Breaker) record(err error) {
	failed := err != nil
	if failed && b.cfg.IsFailure != nil {
		failed = b.cfg.IsFailure(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.onFailure()
	} else {
		b.onSuccess()
	}
}

func (b *Breaker) onFailure() {
	b.failures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.state = StateOpen
			log.Warn().
				Str("circuit_breaker", b.cfg.Name).
				Int("failures", b.failures).
				Msg("Circuit breaker opened")
		}
	case StateHalfOpen:
		// One failed probe reopens the circuit.
		b.state = StateOpen
		b.failures = b.cfg.FailureThreshold
		log.Warn().Str("circuit_breaker", b.cfg.Name).Msg("Circuit breaker reopened after failed probe")
	}
}

func (b *Breaker) onSuccess() {
	b.failures = 0

	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.successes = 0
			log.Info().Str("circuit_breaker", b.cfg.Name).Msg("Circuit breaker closed after recovery")
		}
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a point-in-time snapshot for health reporting.
type Stats struct {
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	Healthy     bool      `json:"healthy"`
}

// GetStats returns a snapshot of the breaker.
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:       b.state.String(),
		Failures:    b.failures,
		LastFailure: b.lastFailure,
		Healthy:     b.state == StateClosed,
	}
}
