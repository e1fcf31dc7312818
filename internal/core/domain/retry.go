package domain

import "time"

// RetryCondition decides whether a classified failure may be retried for the
// given attempt number (1-based, counting attempts already made).
type RetryCondition func(rec *ErrorRecord, attempt int) bool

// RetryConfig defines backoff behavior for a category or call site.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Jitter            bool          `yaml:"jitter"`

	// RetryCondition, when set, is consulted in addition to the attempt
	// ceiling. A nil condition means "retry anything retryable".
	RetryCondition RetryCondition `yaml:"-"`
}

// Validate reports whether the config is internally consistent.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxAttempts < 1:
		return ErrInvalidRetryConfig("max_attempts must be >= 1")
	case c.BaseDelay <= 0:
		return ErrInvalidRetryConfig("base_delay must be > 0")
	case c.MaxDelay < c.BaseDelay:
		return ErrInvalidRetryConfig("max_delay must be >= base_delay")
	case c.BackoffMultiplier <= 1:
		return ErrInvalidRetryConfig("backoff_multiplier must be > 1")
	}
	return nil
}

// ErrInvalidRetryConfig describes a rejected RetryConfig.
type ErrInvalidRetryConfig string

func (e ErrInvalidRetryConfig) Error() string {
	return "invalid retry config: " + string(e)
}
