// Package config defines the kaiamate service configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level kaiamate configuration.
type Config struct {
	Server    ServerConfig   `json:"server" yaml:"server"`
	Store     StoreConfig    `json:"store" yaml:"store"`
	Dispatch  DispatchConfig `json:"dispatch" yaml:"dispatch"`
	Analysis  AnalysisConfig `json:"analysis" yaml:"analysis"`
	Tasks     TasksConfig    `json:"tasks" yaml:"tasks"`
	LogLevel  string         `json:"log_level" yaml:"log_level"`
	LogFormat string         `json:"log_format" yaml:"log_format"` // "text" or "json"
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr        string          `json:"addr" yaml:"addr"` // listen address, e.g., ":5001"
	CORSOrigin  string          `json:"cors_origin" yaml:"cors_origin"`
	Environment string          `json:"environment" yaml:"environment"` // reported by /health
	RateLimit   RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig is a per-client token bucket. RPS of zero disables it.
type RateLimitConfig struct {
	RPS     float64 `json:"rps" yaml:"rps"`
	Burst   int     `json:"burst" yaml:"burst"`
	Clients int     `json:"clients" yaml:"clients"` // limiters kept in memory
}

// StoreConfig selects the task store.
type StoreConfig struct {
	Driver      string `json:"driver" yaml:"driver"` // "memory", "sqlite", "postgres", "redis"
	DSN         string `json:"dsn" yaml:"dsn"`
	RedisAddr   string `json:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `json:"redis_prefix" yaml:"redis_prefix"`
}

// DispatchConfig selects how executions are scheduled.
type DispatchConfig struct {
	Mode        string `json:"mode" yaml:"mode"` // "local" or "asynq"
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
	RedisAddr   string `json:"redis_addr" yaml:"redis_addr"`
	Queue       string `json:"queue" yaml:"queue"`
	Worker      bool   `json:"worker" yaml:"worker"` // also consume the queue in this process
}

// AnalysisConfig selects the analysis provider.
type AnalysisConfig struct {
	Provider string `json:"provider" yaml:"provider"` // "gemini" or "static"
	APIKey   string `json:"api_key" yaml:"api_key"`
	Model    string `json:"model,omitempty" yaml:"model"`
}

// TasksConfig tunes task execution.
type TasksConfig struct {
	ExecTimeout     time.Duration `json:"exec_timeout" yaml:"exec_timeout"`
	StatusCacheSize int           `json:"status_cache_size" yaml:"status_cache_size"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":5001",
			CORSOrigin:  "http://localhost:3000",
			Environment: "development",
			RateLimit: RateLimitConfig{
				RPS:     10,
				Burst:   20,
				Clients: 4096,
			},
		},
		Store: StoreConfig{
			Driver:      "memory",
			RedisPrefix: "kaiamate",
		},
		Dispatch: DispatchConfig{
			Mode:        "local",
			Concurrency: 16,
			Queue:       "default",
			Worker:      true,
		},
		Analysis: AnalysisConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
		},
		Tasks: TasksConfig{
			ExecTimeout:     time.Minute,
			StatusCacheSize: 1024,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads a YAML config file, applies environment overrides and
// validates the result. An empty path starts from DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with
// lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("PORT: %q is not a number", v)
		}
		c.Server.Addr = ":" + v
	}
	if v, ok := lookup("CORS_ORIGIN"); ok && v != "" {
		c.Server.CORSOrigin = v
	}
	if v, ok := lookup("APP_ENV"); ok && v != "" {
		c.Server.Environment = v
	}
	if v, ok := lookup("GEMINI_API_KEY"); ok && v != "" {
		c.Analysis.APIKey = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("STORE_DRIVER"); ok && v != "" {
		c.Store.Driver = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Store.DSN = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Store.RedisAddr = v
		c.Dispatch.RedisAddr = v
	}
	if v, ok := lookup("DISPATCH_MODE"); ok && v != "" {
		c.Dispatch.Mode = v
	}
	return nil
}

// Validate reports the first inconsistent setting. It lowercases LogFormat.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store: driver %s requires dsn", c.Store.Driver)
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store: driver redis requires redis_addr")
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}

	switch c.Dispatch.Mode {
	case "local":
	case "asynq":
		if c.Dispatch.RedisAddr == "" {
			return fmt.Errorf("dispatch: mode asynq requires redis_addr")
		}
		if c.Store.Driver == "memory" {
			return fmt.Errorf("dispatch: mode asynq needs a shared store, not memory")
		}
	default:
		return fmt.Errorf("dispatch: unknown mode %q", c.Dispatch.Mode)
	}

	switch c.Analysis.Provider {
	case "gemini", "static":
	default:
		return fmt.Errorf("analysis: unknown provider %q", c.Analysis.Provider)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format: unknown format %q", c.LogFormat)
	}
	if c.Server.RateLimit.RPS < 0 {
		return fmt.Errorf("server: rate_limit.rps must not be negative")
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
