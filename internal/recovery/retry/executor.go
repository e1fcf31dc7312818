// Package retry wraps fallible operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/stylevault/resilience/internal/core/domain"
	"github.com/stylevault/resilience/internal/recovery/classify"
	"github.com/stylevault/resilience/internal/recovery/metrics"
	"github.com/stylevault/resilience/internal/recovery/policy"
)

// Operation is a fallible unit of work. The result is opaque to the executor.
type Operation func(ctx context.Context) (any, error)

// ErrDisposed is returned when the executor was torn down while an attempt
// or backoff wait was pending.
var ErrDisposed = errors.New("retry executor disposed")

// ErrReset is returned to an in-flight Execute when Reset is called.
var ErrReset = errors.New("retry executor reset")

// State is a snapshot of the executor's observable fields.
type State struct {
	IsRetrying  bool
	Attempt     int
	LastError   *domain.ErrorRecord
	NextRetryIn time.Duration
	CanRetry    bool
}

// Executor retries a failing operation under a RetryConfig.
//
// Attempts are strictly sequential: attempt N+1 never starts before attempt N
// has settled and its backoff delay elapsed. A single Executor must not be
// used for concurrent Execute calls.
type Executor struct {
	cfg        domain.RetryConfig
	classifier *classify.Classifier
	category   domain.Category

	mu          sync.Mutex
	attempt     int
	retrying    bool
	lastErr     *domain.ErrorRecord
	data        any
	lastOp      Operation
	nextRetryAt time.Time
	gen         chan struct{} // closed by Reset to abort the current wait
	retryNow    chan struct{}

	done     chan struct{}
	doneOnce sync.Once
}

// New creates an executor with an explicit config.
func New(cfg domain.RetryConfig, classifier *classify.Classifier, cat domain.Category) *Executor {
	return &Executor{
		cfg:        cfg,
		classifier: classifier,
		category:   cat,
		retryNow:   make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// ForCategory creates an executor pre-bound to the policy table's config for
// a category. Callers select by purpose instead of hand-tuning parameters.
func ForCategory(table *policy.Table, classifier *classify.Classifier, cat domain.Category) *Executor {
	return New(table.ConfigFor(cat), classifier, cat)
}

// Execute runs the operation, retrying on eligible failures until success or
// the attempt ceiling. On exhaustion it returns the final classified error.
func (e *Executor) Execute(ctx context.Context, op Operation) (any, error) {
	e.mu.Lock()
	if e.isDisposed() {
		e.mu.Unlock()
		return nil, ErrDisposed
	}
	e.attempt = 0
	e.lastErr = nil
	e.data = nil
	e.lastOp = op
	gen := make(chan struct{})
	e.gen = gen
	e.mu.Unlock()

	return e.run(ctx, op, gen)
}

func (e *Executor) run(ctx context.Context, op Operation, gen chan struct{}) (any, error) {
	for {
		e.mu.Lock()
		e.attempt++
		attempt := e.attempt
		e.mu.Unlock()

		result, err := op(ctx)
		if err == nil {
			e.mu.Lock()
			e.retrying = false
			e.lastErr = nil
			e.data = result
			e.nextRetryAt = time.Time{}
			e.mu.Unlock()
			return result, nil
		}

		rec := e.classifier.Classify(err, classify.ClassifyOptions{Category: e.category})
		metrics.RetryAttempts.WithLabelValues(string(rec.Category)).Inc()

		e.mu.Lock()
		e.lastErr = rec
		canRetry := e.eligible(rec, attempt)
		if !canRetry {
			e.retrying = false
			e.nextRetryAt = time.Time{}
			e.mu.Unlock()
			metrics.RetryExhausted.WithLabelValues(string(rec.Category)).Inc()
			return nil, rec
		}

		delay := Delay(e.cfg, attempt)
		e.retrying = true
		e.nextRetryAt = time.Now().Add(delay)
		e.mu.Unlock()

		if err := e.wait(ctx, delay, gen); err != nil {
			e.mu.Lock()
			e.retrying = false
			e.nextRetryAt = time.Time{}
			e.mu.Unlock()
			return nil, err
		}
	}
}

// eligible is called with e.mu held.
func (e *Executor) eligible(rec *domain.ErrorRecord, attempt int) bool {
	if attempt >= e.cfg.MaxAttempts {
		return false
	}
	if !rec.Retryable {
		return false
	}
	if e.cfg.RetryCondition != nil && !e.cfg.RetryCondition(rec, attempt) {
		return false
	}
	return true
}

func (e *Executor) wait(ctx context.Context, delay time.Duration, gen chan struct{}) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-e.retryNow:
		return nil
	case <-gen:
		return ErrReset
	case <-e.done:
		return ErrDisposed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry skips any pending backoff wait, or re-runs the last operation if the
// previous Execute already gave up. Used by the foreground-return hook.
func (e *Executor) Retry(ctx context.Context) (any, error) {
	e.mu.Lock()
	if e.isDisposed() {
		e.mu.Unlock()
		return nil, ErrDisposed
	}
	if e.retrying {
		e.mu.Unlock()
		select {
		case e.retryNow <- struct{}{}:
		default:
		}
		return nil, nil
	}
	op := e.lastOp
	hasErr := e.lastErr != nil
	e.mu.Unlock()

	if op == nil || !hasErr {
		return nil, nil
	}
	return e.Execute(ctx, op)
}

// Reset aborts any pending wait and clears all retry state.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != nil {
		select {
		case <-e.gen:
			// already closed
		default:
			close(e.gen)
		}
		e.gen = nil
	}
	e.attempt = 0
	e.retrying = false
	e.lastErr = nil
	e.data = nil
	e.lastOp = nil
	e.nextRetryAt = time.Time{}
}

// Dispose cancels all pending timers. The wrapped operation is never invoked
// after Dispose returns; in-flight Execute calls fail with ErrDisposed.
func (e *Executor) Dispose() {
	e.doneOnce.Do(func() { close(e.done) })
}

func (e *Executor) isDisposed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// State returns a snapshot of the observable retry state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	var nextIn time.Duration
	if e.retrying && !e.nextRetryAt.IsZero() {
		if d := time.Until(e.nextRetryAt); d > 0 {
			nextIn = d
		}
	}

	canRetry := e.lastErr != nil && e.attempt < e.cfg.MaxAttempts && e.lastErr.Retryable

	return State{
		IsRetrying:  e.retrying,
		Attempt:     e.attempt,
		LastError:   e.lastErr,
		NextRetryIn: nextIn,
		CanRetry:    canRetry,
	}
}

// LastError returns the most recent classified failure, if any.
func (e *Executor) LastError() *domain.ErrorRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Data returns the result of the last successful attempt.
func (e *Executor) Data() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// Delay computes the backoff delay before attempt+1, given that `attempt`
// attempts have been made: baseDelay * multiplier^(attempt-1), capped at
// maxDelay. With jitter the delay is scaled by a uniform factor in [0.5, 1.0].
func Delay(cfg domain.RetryConfig, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		d *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(d)
}
