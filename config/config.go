// Package config loads server configuration from YAML files, dotenv
// files, and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/thinhttp/thin-server/core/observability"
)

// Config holds all application configuration.
type Config struct {
	Addr               string   `yaml:"addr"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	ShutdownGrace      Duration `yaml:"shutdown_grace"`
	MaxConns           int      `yaml:"max_conns"`
	MaxRequestsPerConn int      `yaml:"max_requests_per_conn"`
	MaxHeaderBytes     int      `yaml:"max_header_bytes"`
	MaxBodyBytes       int      `yaml:"max_body_bytes"`

	Log observability.LogConfig `yaml:"log"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Addr:               ":8080",
		ReadTimeout:        Duration(30 * time.Second),
		ShutdownGrace:      Duration(10 * time.Second),
		MaxRequestsPerConn: 100,
		MaxHeaderBytes:     64 << 10,
		MaxBodyBytes:       4 << 20,
		Log:                observability.DefaultLogConfig(),
	}
}

// Load builds the configuration: defaults, then a dotenv file if one
// exists, then the YAML file at path (skipped when path is empty), then
// environment-variable overrides.
func Load(path string) (*Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from THINSERVER_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("THINSERVER_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("THINSERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("THINSERVER_SHUTDOWN_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ShutdownGrace = Duration(d)
		}
	}
	if v := os.Getenv("THINSERVER_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConns = n
		}
	}
	if v := os.Getenv("THINSERVER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr must not be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("config: read_timeout must be positive")
	}
	if c.MaxRequestsPerConn <= 0 {
		return fmt.Errorf("config: max_requests_per_conn must be positive")
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("config: max_conns must not be negative")
	}
	if c.MaxHeaderBytes <= 0 {
		return fmt.Errorf("config: max_header_bytes must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: max_body_bytes must be positive")
	}
	return nil
}
