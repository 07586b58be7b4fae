package config

import (
	"time"

	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/scrub"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Logging   logger.Config   `yaml:"logging" mapstructure:"logging"`
	Scrub     scrub.Config    `yaml:"scrub" mapstructure:"scrub"`
	Rules     RulesConfig     `yaml:"rules" mapstructure:"rules"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Events    EventsConfig    `yaml:"events" mapstructure:"events"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// RulesConfig selects the scrubbing rule pack
type RulesConfig struct {
	File  string `yaml:"file" mapstructure:"file"`   // empty means built-in defaults
	Watch bool   `yaml:"watch" mapstructure:"watch"` // reload the pack when the file changes
}

// CacheConfig contains the Redis line cache configuration
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// AuditConfig contains the Postgres run history configuration
type AuditConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EventsConfig contains WebSocket event stream configuration
type EventsConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Username        string        `yaml:"username" mapstructure:"username"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Broadcast       struct {
		ScrubResults bool `yaml:"scrub_results" mapstructure:"scrub_results"`
		FileJobs     bool `yaml:"file_jobs" mapstructure:"file_jobs"`
		System       bool `yaml:"system" mapstructure:"system"`
		Connections  bool `yaml:"connections" mapstructure:"connections"`
	} `yaml:"broadcast" mapstructure:"broadcast"`
}

// RateLimitConfig contains per-client API rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 10 << 20, // 10 MB request bodies
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "json",
			File: &logger.FileConfig{
				Enabled: false,
				Path:    "logs/logscrub.log",
			},
		},
		Scrub: scrub.Config{
			Workers:    0, // 0 means one worker per CPU
			ChunkBytes: 0, // 0 means sized from the input file
		},
		Rules: RulesConfig{
			File:  "",
			Watch: true,
		},
		Cache: CacheConfig{
			Enabled:   false,
			RedisURL:  "redis://localhost:6379/0",
			TTL:       time.Hour,
			KeyPrefix: "logscrub",
		},
		Audit: AuditConfig{
			Enabled:     false,
			DatabaseURL: "postgres://localhost:5432/logscrub?sslmode=disable",
		},
		Events: EventsConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"}, // Allow all origins for development
			Broadcast: struct {
				ScrubResults bool `yaml:"scrub_results" mapstructure:"scrub_results"`
				FileJobs     bool `yaml:"file_jobs" mapstructure:"file_jobs"`
				System       bool `yaml:"system" mapstructure:"system"`
				Connections  bool `yaml:"connections" mapstructure:"connections"`
			}{
				ScrubResults: true,
				FileJobs:     true,
				System:       true,
				Connections:  true,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			Burst:             20,
		},
	}
}
