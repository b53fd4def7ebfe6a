// Package config loads fetchkit settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/Sternrassler/fetchkit/pkg/client"
	"github.com/Sternrassler/fetchkit/pkg/logging"
)

// Prefix is prepended to every variable name, e.g. FETCHKIT_BASE_URL.
const Prefix = "FETCHKIT"

// Config holds the CLI configuration.
type Config struct {
	// Transport
	BaseURL string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"60s"`

	// Recent-query storage; empty RedisAddr keeps the list in memory.
	RedisAddr string `envconfig:"REDIS_ADDR" default:""`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`

	HistoryKey string `envconfig:"HISTORY_KEY" default:"__search__"`
	HistoryMax int    `envconfig:"HISTORY_MAX" default:"10"`

	DebounceDelay time.Duration `envconfig:"DEBOUNCE_DELAY" default:"500ms"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads the environment without validating, for callers that apply
// overrides (such as command-line flags) before calling Validate.
func Parse() (*Config, error) {
	var cfg Config

	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid BASE_URL %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.HistoryMax <= 0 {
		return fmt.Errorf("HISTORY_MAX must be positive, got %d", c.HistoryMax)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must not be negative, got %d", c.RedisDB)
	}
	return nil
}

// Client returns the transport configuration.
func (c *Config) Client() client.Config {
	cfg := client.DefaultConfig(c.BaseURL)
	cfg.Timeout = c.Timeout
	return cfg
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}
