package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
api:
  api_key: "secret"
  regions: [213, 2]
cache:
  path: "cache.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.API.APIKey != "secret" {
		t.Errorf("api_key = %q", cfg.API.APIKey)
	}
	if len(cfg.API.Regions) != 2 || cfg.API.Regions[0] != 213 {
		t.Errorf("regions = %v", cfg.API.Regions)
	}
	if cfg.Cache.Path == "" {
		t.Error("cache path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
cache:
  path: "./data/cache.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "data", "cache.db")
	if cfg.Cache.Path != want {
		t.Errorf("cache path = %s, want %s", cfg.Cache.Path, want)
	}
}

func TestLoad_envOverridesAPIKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
api:
  api_key: "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WORDSTAT_API_KEY", "from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.APIKey != "from-env" {
		t.Errorf("api_key = %q, want env value", cfg.API.APIKey)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.API.TimeoutSeconds != 30 || cfg.API.MaxRetries != 3 || cfg.API.NumPhrases != 100 {
		t.Errorf("api defaults: %+v", cfg.API)
	}
	if cfg.API.Device != "all" {
		t.Errorf("default device: got %s", cfg.API.Device)
	}
	if cfg.Limits.PerSecond != 10 || cfg.Limits.PerHour != 10000 || cfg.Limits.PerDay != 1000 {
		t.Errorf("limit defaults: %+v", cfg.Limits)
	}
	if cfg.Cache.TTLDays != 7 || cfg.Cache.Mode != "on" {
		t.Errorf("cache defaults: %+v", cfg.Cache)
	}
	if cfg.Expand.MaxDepth != 1 || cfg.Expand.TopN != 100 {
		t.Errorf("expand defaults: %+v", cfg.Expand)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.API.Timeout() != 30*time.Second {
		t.Errorf("api timeout = %v", cfg.API.Timeout())
	}
	if cfg.Limits.WaitTimeout() != 60*time.Second {
		t.Errorf("wait timeout = %v", cfg.Limits.WaitTimeout())
	}
	if cfg.Cache.TTL() != 7*24*time.Hour {
		t.Errorf("cache ttl = %v", cfg.Cache.TTL())
	}
	if cfg.Cache.SweepInterval() != 10*time.Minute {
		t.Errorf("sweep interval = %v", cfg.Cache.SweepInterval())
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server: ServerConfig{Host: "localhost", Port: 9090},
		Limits: LimitsConfig{PerSecond: 5, PerHour: 500, PerDay: 400},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Limits.PerDay != 400 {
		t.Errorf("loaded per_day: got %d", loaded.Limits.PerDay)
	}
}
