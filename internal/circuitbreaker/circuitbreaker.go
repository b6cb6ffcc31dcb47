// Package circuitbreaker protects a network's RPC endpoint from being
// hammered while it is failing. Each chain client gets its own breaker.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
)

// ErrOpen is returned by Execute when the breaker rejects a call
var ErrOpen = errors.New("circuit breaker is open: network temporarily unavailable")

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Calls pass through
	StateOpen                  // Calls fail fast
	StateHalfOpen              // Probing whether the endpoint recovered
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

// Config holds the configuration for a circuit breaker
type Config struct {
	// Name identifies the protected endpoint in logs, usually the network name
	Name string

	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes that closes it again
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before letting a probe through
	Cooldown time.Duration
}

// DefaultConfig returns the configuration used for chain clients
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is a consecutive-failure circuit breaker
type Breaker struct {
	mu sync.Mutex

	cfg   Config
	state State
	now   func() time.Time

	failures  int
	successes int
	openedAt  time.Time
}

// New creates a breaker, replacing non-positive config values with defaults
func New(cfg Config) *Breaker {
	def := DefaultConfig(cfg.Name)
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{cfg: cfg, state: StateClosed, now: time.Now}
}

// State returns the current state. An open breaker whose cooldown elapsed
// reports half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// must hold b.mu
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Allow reports whether a call may go through
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState() != StateOpen
}

// RecordSuccess records a call that reached a healthy endpoint
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	switch state := b.currentState(); state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(state, StateClosed)
		}
	case StateClosed:
		b.successes = 0
	}
}

// RecordFailure records a call that failed because of the endpoint
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	b.failures++

	switch state := b.currentState(); state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			b.transition(state, StateOpen)
		}
	case StateHalfOpen:
		b.openedAt = b.now()
		b.transition(state, StateOpen)
	}
}

// Execute runs fn if the breaker allows it and records the result.
// isFailure decides whether an error counts against the endpoint; nil means every error does.
func (b *Breaker) Execute(fn func() error, isFailure func(error) bool) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn()
	if err != nil && (isFailure == nil || isFailure(err)) {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}
	return err
}

// Reset closes the breaker and clears its counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.transition(b.currentState(), StateClosed)
}

// must hold b.mu
func (b *Breaker) transition(from, to State) {
	b.state = to
	if to == StateClosed {
		b.successes = 0
	}
	if from == to {
		return
	}
	logger.WithFields(logger.Fields{
		"network": b.cfg.Name,
		"from":    from.String(),
		"to":      to.String(),
	}).Warn("circuit breaker state changed")
}

// Stats is a snapshot of the breaker counters
type Stats struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Stats returns a snapshot of the breaker
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:               b.currentState(),
		ConsecutiveFailures: b.failures,
		OpenedAt:            b.openedAt,
	}
}
