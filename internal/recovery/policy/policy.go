// Package policy holds the static category-to-retry-policy table.
//
// The table is built once at startup and read-only afterwards. New entries go
// through Register before the table is sealed; direct mutation is not
// exposed, so the invariant "every category has a config" stays checkable.
package policy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stylevault/resilience/internal/core/domain"
)

// Table maps categories to retry configs.
type Table struct {
	mu      sync.RWMutex
	sealed  bool
	configs map[domain.Category]domain.RetryConfig
}

// Default is the fallback policy for categories without a tuned entry:
// a single attempt, no backoff loop.
var Default = domain.RetryConfig{
	MaxAttempts:       1,
	BaseDelay:         1 * time.Second,
	MaxDelay:          1 * time.Second,
	BackoffMultiplier: 2.0,
}

// NewTable builds a table pre-loaded with tuned defaults for the categories
// the app exercises most.
func NewTable() *Table {
	t := &Table{configs: make(map[domain.Category]domain.RetryConfig)}

	must(t.Register(domain.CategoryNetwork, domain.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         1000 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}))
	must(t.Register(domain.CategoryAIService, domain.RetryConfig{
		MaxAttempts:       2,
		BaseDelay:         2000 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryCondition:    excludeQuotaExceeded,
	}))
	must(t.Register(domain.CategoryImageProcessing, domain.RetryConfig{
		MaxAttempts:       2,
		BaseDelay:         1500 * time.Millisecond,
		MaxDelay:          15 * time.Second,
		BackoffMultiplier: 2.0,
	}))
	must(t.Register(domain.CategoryDatabase, domain.RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}))

	return t
}

// Register adds or replaces the config for a category. Fails after Seal.
func (t *Table) Register(cat domain.Category, cfg domain.RetryConfig) error {
	if !cat.Valid() {
		return fmt.Errorf("unknown category %q", cat)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("category %q: %w", cat, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sealed {
		return fmt.Errorf("policy table is sealed")
	}
	t.configs[cat] = cfg
	return nil
}

// Seal freezes the table. Further Register calls fail.
func (t *Table) Seal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sealed = true
}

// ConfigFor returns the retry config for a category, falling back to Default.
func (t *Table) ConfigFor(cat domain.Category) domain.RetryConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if cfg, ok := t.configs[cat]; ok {
		return cfg
	}
	return Default
}

// excludeQuotaExceeded stops AI-service retries once the provider reports an
// exhausted quota; retrying those only burns more of the daily budget.
func excludeQuotaExceeded(rec *domain.ErrorRecord, _ int) bool {
	msg := strings.ToLower(rec.Message)
	return !strings.Contains(msg, "quota") && !strings.Contains(msg, "resource exhausted")
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
