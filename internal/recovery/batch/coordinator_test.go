package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stylevault/resilience/internal/core/domain"
	"github.com/stylevault/resilience/internal/recovery/classify"
	"github.com/stylevault/resilience/internal/recovery/retry"
)

func valueOp(v any) retry.Operation {
	return func(ctx context.Context) (any, error) { return v, nil }
}

func errorOp(msg string) retry.Operation {
	return func(ctx context.Context) (any, error) { return nil, errors.New(msg) }
}

func TestExecuteAllSucceed(t *testing.T) {
	c := New(classify.New())

	ops := []retry.Operation{valueOp("a"), valueOp("b"), valueOp("c")}
	results, err := c.Execute(context.Background(), ops, DefaultOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []any{"a", "b", "c"}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("slot %d failed: %v", i, r.Err)
		}
		if r.Value != want[i] {
			t.Errorf("slot %d = %v, want %v", i, r.Value, want[i])
		}
	}

	p := c.Progress()
	if p.CompletedCount != 3 || p.FailedCount != 0 || p.TotalCount != 3 {
		t.Errorf("progress = %+v, want 3/0/3", p)
	}
	if p.IsExecuting {
		t.Error("IsExecuting must be false once settled")
	}
}

func TestExecutePreservesOrder(t *testing.T) {
	c := New(classify.New())

	// Later slots complete first; results must still be index-ordered.
	ops := make([]retry.Operation, 5)
	for i := range ops {
		i := i
		delay := time.Duration(5-i) * 20 * time.Millisecond
		ops[i] = func(ctx context.Context) (any, error) {
			time.Sleep(delay)
			return fmt.Sprintf("v%d", i), nil
		}
	}

	results, err := c.Execute(context.Background(), ops, Options{ContinueOnError: true, MaxConcurrent: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range results {
		if want := fmt.Sprintf("v%d", i); r.Value != want {
			t.Errorf("slot %d = %v, want %v", i, r.Value, want)
		}
	}
}

func TestExecuteContinueOnError(t *testing.T) {
	c := New(classify.New())

	ops := []retry.Operation{valueOp(1), errorOp("boom"), valueOp(3)}
	results, err := c.Execute(context.Background(), ops, Options{ContinueOnError: true, MaxConcurrent: 1})
	if err != nil {
		t.Fatalf("continueOnError batch must not reject: %v", err)
	}

	if results[0].Value != 1 || results[2].Value != 3 {
		t.Error("successful slots lost")
	}
	if results[1].Err == nil {
		t.Fatal("failed slot must carry its classified error")
	}
	if results[1].Err.Message != "boom" {
		t.Errorf("slot error = %q", results[1].Err.Message)
	}

	p := c.Progress()
	if p.CompletedCount != 2 || p.FailedCount != 1 {
		t.Errorf("progress = %+v, want 2 completed 1 failed", p)
	}
}

func TestExecuteFailFast(t *testing.T) {
	c := New(classify.New())

	var thirdRan atomic.Bool
	ops := []retry.Operation{
		valueOp("a"),
		errorOp("boom"),
		func(ctx context.Context) (any, error) {
			thirdRan.Store(true)
			return "c", nil
		},
	}

	_, err := c.Execute(context.Background(), ops, Options{ContinueOnError: false, MaxConcurrent: 1})
	if err == nil {
		t.Fatal("fail-fast batch must reject on first failure")
	}

	var rec *domain.ErrorRecord
	if !errors.As(err, &rec) || rec.Message != "boom" {
		t.Errorf("err = %v, want classified boom", err)
	}
	if thirdRan.Load() {
		t.Error("slots after the failing window must never start")
	}
}

func TestExecuteWindowedConcurrency(t *testing.T) {
	c := New(classify.New())

	var current, peak int32
	ops := make([]retry.Operation, 7)
	for i := range ops {
		ops[i] = func(ctx context.Context) (any, error) {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil, nil
		}
	}

	if _, err := c.Execute(context.Background(), ops, Options{ContinueOnError: true, MaxConcurrent: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&peak); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
}

func TestExecuteRetryFailures(t *testing.T) {
	c := New(classify.New())

	var calls int32
	ops := []retry.Operation{
		func(ctx context.Context) (any, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, errors.New("connection refused")
			}
			return "recovered", nil
		},
	}

	opts := Options{
		ContinueOnError: true,
		RetryFailures:   true,
		MaxRetries:      2,
		MaxConcurrent:   1,
		Backoff: domain.RetryConfig{
			MaxAttempts:       3,
			BaseDelay:         5 * time.Millisecond,
			MaxDelay:          50 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	}

	results, err := c.Execute(context.Background(), ops, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Value != "recovered" {
		t.Errorf("slot = %+v, want recovered after retries", results[0])
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("operation called %d times, want 3", calls)
	}

	p := c.Progress()
	if p.CompletedCount != 1 || p.FailedCount != 0 {
		t.Errorf("retried slot counted wrong: %+v", p)
	}
}

func TestExecuteRejectsConcurrentBatch(t *testing.T) {
	c := New(classify.New())

	release := make(chan struct{})
	go func() {
		_, _ = c.Execute(context.Background(), []retry.Operation{
			func(ctx context.Context) (any, error) {
				<-release
				return nil, nil
			},
		}, DefaultOptions)
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := c.Execute(context.Background(), []retry.Operation{valueOp(1)}, DefaultOptions); err == nil {
		t.Error("second concurrent batch must be rejected")
	}
	close(release)
}
