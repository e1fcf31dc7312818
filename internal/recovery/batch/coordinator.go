// Package batch runs many independent fallible operations with bounded
// concurrency and aggregate progress tracking.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stylevault/resilience/internal/core/domain"
	"github.com/stylevault/resilience/internal/recovery/classify"
	"github.com/stylevault/resilience/internal/recovery/metrics"
	"github.com/stylevault/resilience/internal/recovery/retry"
)

// Options control a single batch run.
//
// ContinueOnError is an explicit choice, not an inferred one: false aborts on
// the first failure in submission order, true runs every slot to completion
// and returns per-slot outcomes. Callers must decide which they want.
type Options struct {
	ContinueOnError bool
	RetryFailures   bool
	MaxRetries      int
	MaxConcurrent   int

	// Backoff is used for retried slots. Zero value falls back to a 500ms
	// base with x2 multiplier.
	Backoff domain.RetryConfig
}

// DefaultOptions is the resilience-oriented default: partial failures don't
// abort the batch.
var DefaultOptions = Options{
	ContinueOnError: true,
	MaxConcurrent:   3,
}

var defaultBackoff = domain.RetryConfig{
	MaxAttempts:       3,
	BaseDelay:         500 * time.Millisecond,
	MaxDelay:          10 * time.Second,
	BackoffMultiplier: 2.0,
	Jitter:            true,
}

// Result holds one slot's settled outcome. Exactly one of Value/Err is set.
type Result struct {
	Value any
	Err   *domain.ErrorRecord
}

// Progress is a snapshot of a running batch.
type Progress struct {
	CompletedCount int
	FailedCount    int
	TotalCount     int
	IsExecuting    bool
}

// Coordinator executes batches of operations. Safe for use by a single batch
// at a time; construct one per logical batch owner.
type Coordinator struct {
	classifier *classify.Classifier

	mu        sync.Mutex
	completed int
	failed    int
	total     int
	executing bool
}

// New creates a batch coordinator.
func New(classifier *classify.Classifier) *Coordinator {
	return &Coordinator{classifier: classifier}
}

// Execute runs the operations in windows of at most MaxConcurrent. Each
// window runs concurrently and settles fully before the next window starts.
// The returned slice preserves submission order regardless of completion
// order.
//
// With ContinueOnError false, the first failed window aborts the batch: the
// error of the lowest-index failed slot is returned and later windows are
// never started.
func (c *Coordinator) Execute(ctx context.Context, ops []retry.Operation, opts Options) ([]Result, error) {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultOptions.MaxConcurrent
	}
	if opts.Backoff.MaxAttempts == 0 {
		opts.Backoff = defaultBackoff
	}

	c.mu.Lock()
	if c.executing {
		c.mu.Unlock()
		return nil, fmt.Errorf("batch already executing")
	}
	c.executing = true
	c.completed = 0
	c.failed = 0
	c.total = len(ops)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.executing = false
		c.mu.Unlock()
	}()

	results := make([]Result, len(ops))

	for start := 0; start < len(ops); start += opts.MaxConcurrent {
		end := start + opts.MaxConcurrent
		if end > len(ops) {
			end = len(ops)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = c.runSlot(ctx, ops[idx], opts)
			}(i)
		}
		wg.Wait()

		if !opts.ContinueOnError {
			for i := start; i < end; i++ {
				if results[i].Err != nil {
					return results[:end], results[i].Err
				}
			}
		}

		if err := ctx.Err(); err != nil {
			return results[:end], err
		}
	}

	return results, nil
}

// runSlot settles one operation, retrying independently of the rest of the
// batch when RetryFailures is set.
func (c *Coordinator) runSlot(ctx context.Context, op retry.Operation, opts Options) Result {
	attempts := 1
	if opts.RetryFailures && opts.MaxRetries > 0 {
		attempts += opts.MaxRetries
	}

	var rec *domain.ErrorRecord
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			c.record(true)
			return Result{Value: value}
		}

		rec = c.classifier.Classify(err)
		if attempt == attempts || !rec.Retryable {
			break
		}

		select {
		case <-ctx.Done():
			rec = c.classifier.Classify(ctx.Err())
			attempt = attempts
		case <-time.After(retry.Delay(opts.Backoff, attempt)):
		}
	}

	c.record(false)
	return Result{Err: rec}
}

func (c *Coordinator) record(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.completed++
		metrics.BatchSlots.WithLabelValues("completed").Inc()
	} else {
		c.failed++
		metrics.BatchSlots.WithLabelValues("failed").Inc()
	}
}

// Progress returns a snapshot of the batch counters.
func (c *Coordinator) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Progress{
		CompletedCount: c.completed,
		FailedCount:    c.failed,
		TotalCount:     c.total,
		IsExecuting:    c.executing,
	}
}
