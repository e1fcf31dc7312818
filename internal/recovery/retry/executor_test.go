package retry

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stylevault/resilience/internal/core/domain"
	"github.com/stylevault/resilience/internal/recovery/classify"
)

func testConfig() domain.RetryConfig {
	return domain.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         10 * time.Millisecond,
		MaxDelay:          100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDelayMonotonic(t *testing.T) {
	cfg := domain.RetryConfig{
		MaxAttempts:       10,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
	}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 8; attempt++ {
		d := Delay(cfg, attempt)
		if d < prev {
			t.Errorf("delay for attempt %d (%v) < delay for attempt %d (%v)", attempt, d, attempt-1, prev)
		}
		if d > cfg.MaxDelay {
			t.Errorf("delay %v exceeds cap %v", d, cfg.MaxDelay)
		}
		prev = d
	}

	if got := Delay(cfg, 1); got != 100*time.Millisecond {
		t.Errorf("first delay = %v, want 100ms", got)
	}
	if got := Delay(cfg, 2); got != 200*time.Millisecond {
		t.Errorf("second delay = %v, want 200ms", got)
	}
	if got := Delay(cfg, 8); got != cfg.MaxDelay {
		t.Errorf("capped delay = %v, want %v", got, cfg.MaxDelay)
	}
}

func TestDelayJitterRange(t *testing.T) {
	cfg := domain.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	for i := 0; i < 50; i++ {
		d := Delay(cfg, 1)
		if d < 50*time.Millisecond || d > 100*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 100ms]", d)
		}
	}
}

func TestExecuteSucceedsAfterFailures(t *testing.T) {
	e := New(testConfig(), classify.New(), domain.CategoryNetwork)
	defer e.Dispose()

	var calls int32
	op := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return nil, errors.New("connection refused")
		}
		return "ok", nil
	}

	result, err := e.Execute(context.Background(), op)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("operation called %d times, want 3", calls)
	}

	state := e.State()
	if state.IsRetrying {
		t.Error("IsRetrying must be false after success")
	}
	if state.LastError != nil {
		t.Error("LastError must be cleared after success")
	}
	if e.Data() != "ok" {
		t.Error("Data must hold the success value")
	}
}

func TestExecuteRetryCeiling(t *testing.T) {
	e := New(testConfig(), classify.New(), domain.CategoryNetwork)
	defer e.Dispose()

	var calls int32
	op := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	}

	_, err := e.Execute(context.Background(), op)
	if err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("operation called %d times, want exactly maxAttempts=3", calls)
	}

	var rec *domain.ErrorRecord
	if !errors.As(err, &rec) {
		t.Fatalf("final error must be a classified record, got %T", err)
	}
	if rec.Category != domain.CategoryNetwork {
		t.Errorf("category = %v, want network", rec.Category)
	}
}

func TestExecuteNonRetryableStopsEarly(t *testing.T) {
	e := New(testConfig(), classify.New(), domain.CategoryValidation)
	defer e.Dispose()

	var calls int32
	op := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("validation failed")
	}

	if _, err := e.Execute(context.Background(), op); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("validation failures must not be retried, called %d times", calls)
	}
}

func TestExecuteRetryCondition(t *testing.T) {
	cfg := testConfig()
	cfg.RetryCondition = func(rec *domain.ErrorRecord, attempt int) bool {
		// Client errors are not worth retrying.
		return !strings.Contains(rec.Message, "400")
	}
	e := New(cfg, classify.New(), domain.CategoryNetwork)
	defer e.Dispose()

	var calls int32
	op := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("status 400 bad request")
	}

	if _, err := e.Execute(context.Background(), op); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("condition-excluded failure retried: called %d times, want 1", calls)
	}
}

func TestExecuteBackoffTiming(t *testing.T) {
	cfg := domain.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          1 * time.Second,
		BackoffMultiplier: 2.0,
	}
	e := New(cfg, classify.New(), domain.CategoryNetwork)
	defer e.Dispose()

	var calls int32
	op := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return nil, errors.New("connection refused")
		}
		return "ok", nil
	}

	start := time.Now()
	if _, err := e.Execute(context.Background(), op); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)

	// Two waits: ~100ms then ~200ms.
	if elapsed < 280*time.Millisecond {
		t.Errorf("elapsed %v, want >= ~300ms of backoff", elapsed)
	}
	if elapsed > 600*time.Millisecond {
		t.Errorf("elapsed %v, backoff much longer than expected", elapsed)
	}
}

func TestDisposeCancelsPendingRetry(t *testing.T) {
	cfg := domain.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         5 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
	e := New(cfg, classify.New(), domain.CategoryNetwork)

	var calls int32
	op := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection refused")
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(context.Background(), op)
		done <- err
	}()

	// Let the first attempt fail and the backoff wait begin.
	time.Sleep(50 * time.Millisecond)
	e.Dispose()

	select {
	case err := <-done:
		if !errors.Is(err, ErrDisposed) {
			t.Errorf("err = %v, want ErrDisposed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Execute did not return after Dispose")
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("operation invoked after dispose: %d calls", calls)
	}
}

func TestRetrySkipsBackoffWait(t *testing.T) {
	cfg := domain.RetryConfig{
		MaxAttempts:       2,
		BaseDelay:         5 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
	e := New(cfg, classify.New(), domain.CategoryNetwork)
	defer e.Dispose()

	var calls int32
	op := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("connection refused")
		}
		return "ok", nil
	}

	done := make(chan any, 1)
	go func() {
		result, _ := e.Execute(context.Background(), op)
		done <- result
	}()

	time.Sleep(50 * time.Millisecond)
	if _, err := e.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	select {
	case result := <-done:
		if result != "ok" {
			t.Errorf("result = %v, want ok", result)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not skip the backoff wait")
	}
}

func TestResetClearsState(t *testing.T) {
	e := New(testConfig(), classify.New(), domain.CategoryNetwork)
	defer e.Dispose()

	op := func(ctx context.Context) (any, error) {
		return nil, errors.New("connection refused")
	}
	_, _ = e.Execute(context.Background(), op)

	e.Reset()

	state := e.State()
	if state.Attempt != 0 || state.LastError != nil || state.IsRetrying {
		t.Errorf("state not cleared after reset: %+v", state)
	}
	if e.Data() != nil {
		t.Error("data not cleared after reset")
	}
}

func TestStateDuringBackoff(t *testing.T) {
	cfg := domain.RetryConfig{
		MaxAttempts:       2,
		BaseDelay:         time.Second,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
	}
	e := New(cfg, classify.New(), domain.CategoryNetwork)

	op := func(ctx context.Context) (any, error) {
		return nil, errors.New("connection refused")
	}

	go func() {
		_, _ = e.Execute(context.Background(), op)
	}()

	time.Sleep(100 * time.Millisecond)
	state := e.State()
	if !state.IsRetrying {
		t.Error("IsRetrying must be true during backoff")
	}
	if state.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", state.Attempt)
	}
	if state.LastError == nil {
		t.Error("LastError must be set during backoff")
	}
	if state.NextRetryIn <= 0 || state.NextRetryIn > time.Second {
		t.Errorf("NextRetryIn = %v, want within (0, 1s]", state.NextRetryIn)
	}
	if !state.CanRetry {
		t.Error("CanRetry must be true with attempts remaining")
	}

	e.Dispose()
}
