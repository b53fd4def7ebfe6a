// Package logging configures zerolog for fetchkit and hands out per-component
// child loggers.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is the textual form of a log level as it appears in configuration.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"

	// LevelOff silences all output. Useful for CLI runs that print results
	// to stdout and for tests.
	LevelOff LogLevel = "off"
)

// Component names attached to every log line under the "component" key.
const (
	ComponentExecutor   = "request-executor"
	ComponentPagination = "pagination"
	ComponentDebounce   = "debounce"
	ComponentTransport  = "transport"
	ComponentHistory    = "history"
	ComponentCLI        = "cli"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup installs a timestamped logger as the zerolog global and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel maps a configured level onto zerolog. Unknown values fall back
// to info so a typo never silences logging entirely.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a child of the global logger tagged with component.
// It reads log.Logger at call time, so call it after Setup.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Level guide:
//
// Debug: fetch start/finish with method and URL, debounce scheduling,
// page merges, stale responses dropped.
//
// Info: CLI lifecycle, configuration summary.
//
// Warn: transport failures absorbed by an executor, application failures
// (code != 200), history store unavailable or corrupt.
//
// Error: configuration that prevents startup.
//
// Common fields: component, method, url, code, request_id, page, total,
// list_len, error_class, status_code, duration.
