// Package resilience guards calls to external tools.
//
// Two patterns are provided. Retry re-runs a failing call with exponential
// backoff up to a bounded number of attempts. Breaker stops calling a tool
// that keeps failing and lets a trial call through once its timeout passes:
//
//	Closed (normal) -> Open (failing) -> HalfOpen (trial) -> Closed
//	                     ^                    |
//	                     +--------------------+ (trial failed)
package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the state of a breaker.
type State int

const (
	// Closed is the normal operating state; calls pass through.
	Closed State = iota
	// Open means the breaker tripped; calls fail immediately.
	Open
	// HalfOpen means a limited number of trial calls are let through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of trial successes that closes it again.
	SuccessThreshold int
	// Timeout is how long the breaker stays open before allowing a trial.
	Timeout time.Duration
	// MaxTrials caps concurrent calls while half-open.
	MaxTrials int
}

// DefaultBreakerConfig returns defaults suited to local tool invocations.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
		MaxTrials:        1,
	}
}

// Breaker implements the circuit breaker pattern for one tool.
type Breaker struct {
	mu     sync.Mutex
	name   string
	config BreakerConfig

	state     State
	failures  int
	successes int
	trials    int
	openedAt  time.Time

	// now is replaceable in tests.
	now      func() time.Time
	onChange func(name string, from, to State)
}

// NewBreaker creates a closed breaker. Zero config fields take defaults.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxTrials <= 0 {
		cfg.MaxTrials = def.MaxTrials
	}
	return &Breaker{
		name:     name,
		config:   cfg,
		state:    Closed,
		now:      time.Now,
		onChange: recordTransition,
	}
}

// Name returns the breaker's name, normally the tool it guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state. An open breaker whose timeout has
// elapsed reports HalfOpen.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.config.Timeout {
		return HalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed, reserving a trial slot when half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.config.Timeout {
			return false
		}
		b.transition(HalfOpen)
		b.trials = 1
		return true
	case HalfOpen:
		if b.trials < b.config.MaxTrials {
			b.trials++
			return true
		}
		return false
	}
	return false
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.trials > 0 {
			b.trials--
		}
		if b.successes >= b.config.SuccessThreshold {
			b.transition(Closed)
		}
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(Open)
		}
	case HalfOpen:
		b.transition(Open)
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
// Context cancellation is not counted as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.Allow() {
		return ErrCircuitOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := fn(ctx)
	switch {
	case err == nil:
		b.Success()
	case ctx.Err() != nil:
		return err
	default:
		b.Failure()
	}
	return err
}

// Reset returns the breaker to the closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(Closed)
	b.openedAt = time.Time{}
}

// transition changes state. Must be called with the lock held.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	b.trials = 0
	if to == Open {
		b.openedAt = b.now()
	}
	if from == to {
		return
	}

	log.WithField("breaker", b.name).
		WithField("from", from.String()).
		WithField("to", to.String()).
		Info("circuit breaker state transition")

	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
