// Package config loads gateway configuration.
//
// DESIGN: Configuration is an explicit struct passed into each component at
// construction. Sources, lowest to highest precedence:
//  1. compiled-in defaults (defaults.go)
//  2. optional YAML file (GATEWAY_CONFIG or ./gateway.yaml)
//  3. environment variables (a .env file is loaded by main for local dev)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// UpstreamConfig holds the completion API settings.
type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	DefaultModel  string        `yaml:"default_model"`
	AllowedModels []string      `yaml:"allowed_models"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
}

// RateLimitConfig holds completion throughput limits per client identity.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// FeedbackConfig holds feedback intake settings.
type FeedbackConfig struct {
	Passphrase string        `yaml:"passphrase"`
	PerMinute  int           `yaml:"per_minute"`
	RecordTTL  time.Duration `yaml:"record_ttl"`
	MinDwell   time.Duration `yaml:"min_dwell"`
}

// MonitoringConfig holds observability settings.
type MonitoringConfig struct {
	TelemetryPath string `yaml:"telemetry_path"`
	LogLevel      string `yaml:"log_level"`
	Pretty        bool   `yaml:"pretty"`
}

// Config is the root configuration for the gateway.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	RedisURL   string           `yaml:"redis_url"`
}

// Default returns a Config populated with compiled-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         DefaultPort,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Upstream: UpstreamConfig{
			BaseURL:      DefaultUpstreamBaseURL,
			DefaultModel: DefaultModel,
			Temperature:  DefaultTemperature,
			MaxTokens:    DefaultMaxTokens,
			Timeout:      DefaultUpstreamTimeout,
		},
		RateLimit: RateLimitConfig{
			PerMinute: DefaultPerMinuteLimit,
			PerDay:    DefaultPerDayLimit,
		},
		Feedback: FeedbackConfig{
			PerMinute: DefaultFeedbackPerMinute,
			RecordTTL: DefaultFeedbackTTL,
			MinDwell:  DefaultMinDwell,
		},
		Monitoring: MonitoringConfig{
			LogLevel: "info",
		},
		RedisURL: DefaultRedisURL,
	}
}

// Load builds the effective configuration: defaults, then the optional YAML
// file, then environment overrides.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("GATEWAY_CONFIG")
	if path == "" {
		if _, err := os.Stat("gateway.yaml"); err == nil {
			path = "gateway.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Upstream.DefaultModel == "" {
		cfg.Upstream.DefaultModel = DefaultModel
	}
	if len(cfg.Upstream.AllowedModels) == 0 {
		cfg.Upstream.AllowedModels = []string{cfg.Upstream.DefaultModel}
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = envInt("PORT", c.Server.Port)

	c.Upstream.BaseURL = envStr("UPSTREAM_BASE_URL", c.Upstream.BaseURL)
	c.Upstream.APIKey = envStr("UPSTREAM_API_KEY", c.Upstream.APIKey)
	c.Upstream.DefaultModel = envStr("DEFAULT_MODEL", c.Upstream.DefaultModel)
	c.Upstream.Temperature = envFloat("DEFAULT_TEMPERATURE", c.Upstream.Temperature)
	c.Upstream.MaxTokens = envInt("MAX_TOKENS", c.Upstream.MaxTokens)
	c.Upstream.Timeout = envDur("UPSTREAM_TIMEOUT", c.Upstream.Timeout)
	if models := os.Getenv("ALLOWED_MODELS"); models != "" {
		c.Upstream.AllowedModels = SplitModels(models)
	}

	c.RateLimit.PerMinute = envInt("RATE_LIMIT_PER_MINUTE", c.RateLimit.PerMinute)
	c.RateLimit.PerDay = envInt("RATE_LIMIT_PER_DAY", c.RateLimit.PerDay)

	c.Feedback.Passphrase = envStr("FEEDBACK_PASSPHRASE", c.Feedback.Passphrase)
	c.Feedback.PerMinute = envInt("FEEDBACK_PER_MINUTE", c.Feedback.PerMinute)
	c.Feedback.MinDwell = envDur("FEEDBACK_MIN_DWELL", c.Feedback.MinDwell)

	c.Monitoring.TelemetryPath = envStr("TELEMETRY_PATH", c.Monitoring.TelemetryPath)
	c.Monitoring.LogLevel = envStr("LOG_LEVEL", c.Monitoring.LogLevel)
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		c.Monitoring.Pretty = v == "true" || v == "1"
	}

	c.RedisURL = envStr("REDIS_URL", c.RedisURL)
}

// SplitModels parses a comma-separated allow-list into trimmed model names.
func SplitModels(raw string) []string {
	parts := strings.Split(raw, ",")
	models := make([]string, 0, len(parts))
	for _, p := range parts {
		if m := strings.TrimSpace(p); m != "" {
			models = append(models, m)
		}
	}
	return models
}

func envStr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
