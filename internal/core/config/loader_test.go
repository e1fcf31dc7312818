package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Recovery.Tone != "neutral" {
		t.Errorf("tone = %q, want neutral", cfg.Recovery.Tone)
	}
	if cfg.Recovery.EventCapacity != 200 {
		t.Errorf("event capacity = %d, want 200", cfg.Recovery.EventCapacity)
	}
	if cfg.Recovery.Platform != "backend" {
		t.Errorf("platform = %q, want backend", cfg.Recovery.Platform)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_DB_URL", "postgres://localhost/resilience")
	path := writeConfig(t, "database:\n  url: ${TEST_DB_URL}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/resilience" {
		t.Errorf("url = %q, env not expanded", cfg.Database.URL)
	}
}

func TestLoadPolicies(t *testing.T) {
	path := writeConfig(t, `
recovery:
  tone: supportive
  retention_hours: 24
policies:
  - category: network
    max_attempts: 5
    base_delay_ms: 250
    max_delay_ms: 4000
    backoff_multiplier: 2.0
    jitter: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Policies) != 1 {
		t.Fatalf("policies = %d, want 1", len(cfg.Policies))
	}
	p := cfg.Policies[0]
	if p.Category != "network" || p.MaxAttempts != 5 {
		t.Errorf("policy = %+v", p)
	}
	if p.BaseDelay().Milliseconds() != 250 || p.MaxDelay().Milliseconds() != 4000 {
		t.Errorf("delays = %v / %v", p.BaseDelay(), p.MaxDelay())
	}
	if cfg.Recovery.Retention().Hours() != 24 {
		t.Errorf("retention = %v, want 24h", cfg.Recovery.Retention())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file must error")
	}
}
