package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestGetDefaults(t *testing.T) {
	cfg := GetDefaults()
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("defaults failed validation: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Cache.Enabled || cfg.Audit.Enabled {
		t.Error("cache and audit must default to disabled")
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
logging:
  level: debug
  format: console
scrub:
  workers: 4
  chunk_bytes: 65536
rules:
  file: /etc/logscrub/rules.yaml
  watch: false
cache:
  enabled: true
  redis_url: redis://cache:6379/1
  ttl: 30m
rate_limit:
  requests_per_minute: 600
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %s/%s, want debug/console", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Scrub.Workers != 4 || cfg.Scrub.ChunkBytes != 65536 {
		t.Errorf("Scrub = %+v, want workers 4 chunk 65536", cfg.Scrub)
	}
	if cfg.Rules.File != "/etc/logscrub/rules.yaml" || cfg.Rules.Watch {
		t.Errorf("Rules = %+v, want file set and watch off", cfg.Rules)
	}
	if !cfg.Cache.Enabled || cfg.Cache.RedisURL != "redis://cache:6379/1" || cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.RateLimit.RequestsPerMinute != 600 {
		t.Errorf("RateLimit.RequestsPerMinute = %d, want 600", cfg.RateLimit.RequestsPerMinute)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
		{"negative workers", "scrub:\n  workers: -2\n"},
		{"cache without url", "cache:\n  enabled: true\n  redis_url: \"\"\n"},
		{"audit without url", "audit:\n  enabled: true\n  database_url: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() expected validation error")
			}
		})
	}
}
