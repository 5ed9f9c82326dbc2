package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration. Both binaries load the same
// struct; each reads only the sections it needs.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Store     StoreConfig
	Rules     RulesConfig
	Monitor   MonitorConfig
	Authority AuthorityConfig
	Engine    EngineConfig
	UIHost    UIHostConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the monitord HTTP/WS listener configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"7600"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// StoreConfig holds the authoritative state database location.
type StoreConfig struct {
	Path string `envconfig:"STORE_PATH" default:"/var/lib/mindgate/state.db"`
}

// RulesConfig points at the YAML rules file (monitored apps, surfaces,
// durations, quota).
type RulesConfig struct {
	Path string `envconfig:"RULES_PATH" default:"rules.yaml"`
}

// MonitorConfig tunes the foreground monitor.
type MonitorConfig struct {
	DebounceMs int `envconfig:"MONITOR_DEBOUNCE_MS" default:"500"`
}

// AuthorityConfig tunes the timer authority sweep.
type AuthorityConfig struct {
	SweepIntervalMs int `envconfig:"AUTHORITY_SWEEP_MS" default:"1000"`
}

// EngineConfig tunes the decision engine guards.
type EngineConfig struct {
	GuardTTLMs int `envconfig:"ENGINE_GUARD_TTL_MS" default:"5000"`
}

// UIHostConfig holds uihost connection settings.
type UIHostConfig struct {
	ServerURL      string `envconfig:"UIHOST_SERVER_URL" default:"http://127.0.0.1:7600"`
	ReconnectMinMs int    `envconfig:"UIHOST_RECONNECT_MIN_MS" default:"250"`
	ReconnectMaxMs int    `envconfig:"UIHOST_RECONNECT_MAX_MS" default:"10000"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MINDGATE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: "7600", Host: "127.0.0.1"},
		Logging:   LogConfig{Level: "info"},
		Store:     StoreConfig{Path: "/var/lib/mindgate/state.db"},
		Rules:     RulesConfig{Path: "rules.yaml"},
		Monitor:   MonitorConfig{DebounceMs: 500},
		Authority: AuthorityConfig{SweepIntervalMs: 1000},
		Engine:    EngineConfig{GuardTTLMs: 5000},
		UIHost: UIHostConfig{
			ServerURL:      "http://127.0.0.1:7600",
			ReconnectMinMs: 250,
			ReconnectMaxMs: 10000,
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 50, Burst: 100, Enabled: true},
	}
}

// Debounce returns the monitor debounce window as a duration.
func (c MonitorConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// SweepInterval returns the sweep period as a duration.
func (c AuthorityConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

// GuardTTL returns the guard deadline bound as a duration.
func (c EngineConfig) GuardTTL() time.Duration {
	return time.Duration(c.GuardTTLMs) * time.Millisecond
}
