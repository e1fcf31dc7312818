package config

import (
	"time"

	redisclient "github.com/stylevault/resilience/internal/infra/redis"
	"github.com/stylevault/resilience/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Recovery RecoveryConfig     `yaml:"recovery"`
	Policies []PolicyConfig     `yaml:"policies"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds the ops HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RecoveryConfig holds core error-handling settings.
type RecoveryConfig struct {
	Tone           string `yaml:"tone"`       // neutral, supportive
	Production     bool   `yaml:"production"` // gates low-severity reporting
	Platform       string `yaml:"platform"`
	EventCapacity  int    `yaml:"event_capacity"`
	RetentionHours int    `yaml:"retention_hours"` // 0 = keep archived reports forever
}

// Retention returns the archived-report retention window.
func (c RecoveryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// PolicyConfig overrides the retry policy for one category. Delays are in
// milliseconds.
type PolicyConfig struct {
	Category          string  `yaml:"category"`
	MaxAttempts       int     `yaml:"max_attempts"`
	BaseDelayMS       int     `yaml:"base_delay_ms"`
	MaxDelayMS        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	Jitter            bool    `yaml:"jitter"`
}

// BaseDelay returns the override's base delay.
func (p PolicyConfig) BaseDelay() time.Duration {
	return time.Duration(p.BaseDelayMS) * time.Millisecond
}

// MaxDelay returns the override's delay cap.
func (p PolicyConfig) MaxDelay() time.Duration {
	return time.Duration(p.MaxDelayMS) * time.Millisecond
}
