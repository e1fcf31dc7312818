package policy

import (
	"testing"
	"time"

	"github.com/stylevault/resilience/internal/core/domain"
)

func TestTunedDefaults(t *testing.T) {
	table := NewTable()

	tests := []struct {
		cat      domain.Category
		attempts int
		base     time.Duration
		jitter   bool
	}{
		{domain.CategoryNetwork, 3, 1000 * time.Millisecond, true},
		{domain.CategoryAIService, 2, 2000 * time.Millisecond, true},
		{domain.CategoryImageProcessing, 2, 1500 * time.Millisecond, false},
	}

	for _, tt := range tests {
		cfg := table.ConfigFor(tt.cat)
		if cfg.MaxAttempts != tt.attempts {
			t.Errorf("%s: attempts = %d, want %d", tt.cat, cfg.MaxAttempts, tt.attempts)
		}
		if cfg.BaseDelay != tt.base {
			t.Errorf("%s: base delay = %v, want %v", tt.cat, cfg.BaseDelay, tt.base)
		}
		if cfg.Jitter != tt.jitter {
			t.Errorf("%s: jitter = %v, want %v", tt.cat, cfg.Jitter, tt.jitter)
		}
	}
}

func TestFallbackSingleAttempt(t *testing.T) {
	table := NewTable()

	cfg := table.ConfigFor(domain.CategoryUI)
	if cfg.MaxAttempts != 1 {
		t.Errorf("untuned category attempts = %d, want 1", cfg.MaxAttempts)
	}
}

func TestAIServiceQuotaCondition(t *testing.T) {
	table := NewTable()
	cfg := table.ConfigFor(domain.CategoryAIService)
	if cfg.RetryCondition == nil {
		t.Fatal("ai_service policy must carry a retry condition")
	}

	quota := &domain.ErrorRecord{Message: "monthly quota exceeded", Category: domain.CategoryAIService}
	if cfg.RetryCondition(quota, 1) {
		t.Error("quota failures must not be retried")
	}

	transient := &domain.ErrorRecord{Message: "model overloaded", Category: domain.CategoryAIService}
	if !cfg.RetryCondition(transient, 1) {
		t.Error("transient AI failures should be retryable")
	}
}

func TestRegisterValidation(t *testing.T) {
	table := NewTable()

	if err := table.Register(domain.Category("bogus"), Default); err == nil {
		t.Error("unknown category must be rejected")
	}

	bad := Default
	bad.MaxAttempts = 0
	if err := table.Register(domain.CategoryNetwork, bad); err == nil {
		t.Error("invalid config must be rejected")
	}

	bad = Default
	bad.MaxDelay = bad.BaseDelay / 2
	if err := table.Register(domain.CategoryNetwork, bad); err == nil {
		t.Error("max_delay below base_delay must be rejected")
	}
}

func TestSealFreezes(t *testing.T) {
	table := NewTable()
	table.Seal()

	if err := table.Register(domain.CategoryNetwork, Default); err == nil {
		t.Error("sealed table must reject registration")
	}

	// Reads still work after sealing.
	if cfg := table.ConfigFor(domain.CategoryNetwork); cfg.MaxAttempts != 3 {
		t.Error("sealed table lost its entries")
	}
}
