package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Recovery.Tone == "" {
		cfg.Recovery.Tone = "neutral"
	}
	if cfg.Recovery.Platform == "" {
		cfg.Recovery.Platform = "backend"
	}
	if cfg.Recovery.EventCapacity == 0 {
		cfg.Recovery.EventCapacity = 200
	}

	return &cfg, nil
}
