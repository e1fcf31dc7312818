// Package breaker implements a circuit breaker for persistently failing
// dependencies.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stylevault/resilience/internal/recovery/metrics"
)

// State is the breaker's position in its state machine.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the lowercase state name.
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

// ErrOpen is returned when a call is rejected without invoking the wrapped
// operation. Callers distinguish "breaker open" from operation failures with
// errors.Is.
var ErrOpen = errors.New("circuit breaker open: service unavailable")

// Config holds breaker thresholds.
type Config struct {
	// FailureThreshold is the consecutive failure count that opens the breaker.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration
	// MonitoringPeriod discards stale failure counts: failures older than this
	// no longer accumulate toward the threshold.
	MonitoringPeriod time.Duration
}

// DefaultConfig matches the tuning used for the app's hosted-backend calls.
var DefaultConfig = Config{
	FailureThreshold: 5,
	ResetTimeout:     30 * time.Second,
	MonitoringPeriod: 2 * time.Minute,
}

// Breaker sheds load from a failing dependency by rejecting calls fast once
// consecutive failures cross the threshold.
type Breaker struct {
	name string
	cfg  Config

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	openedAt    time.Time

	now func() time.Time // injectable for tests
}

// New creates a closed breaker. Zero-value config fields fall back to
// DefaultConfig.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig.ResetTimeout
	}
	if cfg.MonitoringPeriod <= 0 {
		cfg.MonitoringPeriod = DefaultConfig.MonitoringPeriod
	}
	return &Breaker{
		name:  name,
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// Execute runs the operation if the breaker allows it.
//
// While open, calls fail immediately with ErrOpen and the operation is not
// invoked. After ResetTimeout the next call goes through as a half-open
// probe: success closes the breaker, failure re-opens it.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) (any, error)) (any, error) {
	if err := b.allow(); err != nil {
		metrics.BreakerRejections.WithLabelValues(b.name).Inc()
		return nil, err
	}

	result, err := op(ctx)
	if err != nil {
		b.recordFailure()
		return nil, err
	}

	b.recordSuccess()
	return result, nil
}

// allow checks the state machine and transitions OPEN -> HALF_OPEN when the
// reset timeout has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		// One probe at a time is enough; concurrent callers wait out the probe.
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
			b.transition(StateHalfOpen)
			return nil
		}
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	if b.state == StateHalfOpen {
		b.openedAt = now
		b.lastFailure = now
		b.transition(StateOpen)
		return
	}

	// Stale failures outside the monitoring window don't accumulate.
	if !b.lastFailure.IsZero() && now.Sub(b.lastFailure) > b.cfg.MonitoringPeriod {
		b.failures = 0
	}

	b.failures++
	b.lastFailure = now

	if b.state == StateClosed && b.failures >= b.cfg.FailureThreshold {
		b.openedAt = now
		b.transition(StateOpen)
	}
}

// transition is called with b.mu held.
func (b *Breaker) transition(to State) {
	b.state = to
	metrics.BreakerTransitions.WithLabelValues(b.name, to.String()).Inc()
}

// Reset forces the breaker closed with zero failures. Used for manual
// recovery, e.g. a user-triggered retry after fixing connectivity.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.lastFailure = time.Time{}
	b.openedAt = time.Time{}
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the consecutive failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// CanExecute reports whether a call made now would be allowed through.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		return b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout
	}
	return true
}
