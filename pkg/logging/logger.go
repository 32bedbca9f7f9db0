// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// ConfigFromEnv builds a Config from LOG_LEVEL and LOG_PRETTY using getenv
// (os.Getenv in production). Unset variables keep their defaults.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := DefaultConfig()
	if level := getenv("LOG_LEVEL"); level != "" {
		cfg.Level = LogLevel(strings.ToLower(level))
	}
	if pretty, err := strconv.ParseBool(getenv("LOG_PRETTY")); err == nil {
		cfg.Pretty = pretty
	}
	return cfg
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := ParseLevel(string(cfg.Level))
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to zerolog.Level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Derived value cache hits and misses
//   - Page fetch dispatch, dropped duplicate load requests
//   - Page cache revalidation (ETags, 304s)
//
// Info: Normal operation events
//   - Pages merged into a session
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Page load failures (the page is retried on the next request)
//   - Page cache errors (fallback to direct request)
//
// Error: Error conditions requiring attention
//   - Startup and configuration errors
//
// Context Fields:
//   - component: package-level component name
//   - session_id: feed session identifier
//   - page, page_size: page being loaded
//   - records, total: records merged / collection size
//   - record_id: record whose derived value was requested
//   - cache_hit: Boolean indicating a memoized derived value
//   - status, error_class: page request failure details
//   - duration: page load duration
