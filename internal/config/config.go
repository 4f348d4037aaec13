// Package config provides configuration loading and structs for the Wordstat server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/komyaka/wordstat/internal/filter"
)

// Config holds all configuration for the application.
type Config struct {
	Debug  bool          `yaml:"debug"`
	Server ServerConfig  `yaml:"server"`
	API    APIConfig     `yaml:"api"`
	Limits LimitsConfig  `yaml:"limits"`
	Cache  CacheConfig   `yaml:"cache"`
	Expand ExpandConfig  `yaml:"expand"`
	Filter filter.Config `yaml:"filter"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// APIConfig holds Wordstat API client settings.
type APIConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	NumPhrases     int    `yaml:"num_phrases"`
	Regions        []int  `yaml:"regions"`
	Device         string `yaml:"device"`
}

// Timeout returns the per-request HTTP timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// LimitsConfig holds the three rate-limit windows and the admission wait.
// A day cap below the hour cap is accepted; the limiter logs a warning.
type LimitsConfig struct {
	PerSecond          int `yaml:"per_second"`
	PerHour            int `yaml:"per_hour"`
	PerDay             int `yaml:"per_day"`
	WaitTimeoutSeconds int `yaml:"wait_timeout_seconds"`
}

// WaitTimeout returns how long a run waits for rate-limit admission per phrase.
func (l LimitsConfig) WaitTimeout() time.Duration {
	return time.Duration(l.WaitTimeoutSeconds) * time.Second
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Path                 string `yaml:"path"`
	TTLDays              int    `yaml:"ttl_days"`
	SweepIntervalMinutes int    `yaml:"sweep_interval_minutes"`
	Mode                 string `yaml:"mode"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// SweepInterval returns how often the background sweeper runs.
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// ExpandConfig holds defaults applied to run requests that omit them.
type ExpandConfig struct {
	MaxDepth int `yaml:"max_depth"`
	TopN     int `yaml:"top_n"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. The WORDSTAT_API_KEY environment variable overrides api.api_key.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	if key := os.Getenv("WORDSTAT_API_KEY"); key != "" {
		cfg.API.APIKey = key
	}

	configDir := filepath.Dir(path)
	cfg.Cache.Path = expandPath(cfg.Cache.Path, configDir)

	return &cfg, nil
}

// Save writes the config to path. Used for persisting runtime limit changes.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
