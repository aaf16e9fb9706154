// Package config loads collector settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds collector settings.
type Config struct {
	SocketPath    string `yaml:"socket_path"`
	DataDir       string `yaml:"data_dir"`
	RulesDir      string `yaml:"rules_dir"`
	WebAddr       string `yaml:"web_addr"`
	EventBuffer   int    `yaml:"event_buffer"`
	DedupSize     int    `yaml:"dedup_size"`
	DedupWindowMS int    `yaml:"dedup_window_ms"`
	KernelStats   bool   `yaml:"kernel_stats"`
}

// Default returns the settings used when no config file is given.
func Default() *Config {
	return &Config{
		SocketPath:    "/tmp/removetrace.sock",
		DataDir:       "data",
		RulesDir:      "rules",
		WebAddr:       ":8080",
		EventBuffer:   1000, // buffer size to handle bursts
		DedupSize:     4096,
		DedupWindowMS: 2000,
		KernelStats:   true,
	}
}

// DedupWindow returns the dedup window as a duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMS) * time.Millisecond
}

// Load reads a config file on top of the defaults, so a partial file
// only overrides what it names.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %v", path, err)
	}

	if cfg.EventBuffer <= 0 {
		return nil, fmt.Errorf("event_buffer must be positive, got %d", cfg.EventBuffer)
	}
	if cfg.DedupSize <= 0 {
		return nil, fmt.Errorf("dedup_size must be positive, got %d", cfg.DedupSize)
	}
	return cfg, nil
}
