// Package logging provides structured logging for the fieldcap application.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, and component-based loggers.
//
// Acquisition runs keep their own log file inside the run directory. Once
// the run directory exists, AttachFile tees every log line into it so that
// the on-disk record matches what the operator saw on the console.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, false) // Text format
//	logging.Init(slog.LevelDebug, true) // JSON format
//
//	// Tee into the run log once the run directory exists
//	closeFn, err := logging.AttachFile(runLogPath)
//
//	// Get a component logger
//	log := logging.Component("scheduler")
//	log.Info("run started", "sensors", 4)
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the global logger instance.
var Logger *slog.Logger

var (
	level      slog.Level
	jsonFormat bool
)

// Init initializes the global logger with the specified level and format.
// If json is true, logs are output as JSON; otherwise, human-readable text.
func Init(lvl slog.Level, json bool) {
	level = lvl
	jsonFormat = json
	Logger = slog.New(newHandler(os.Stdout))
	slog.SetDefault(Logger)
}

// ParseLevel maps a configuration level name to a slog.Level. Unknown
// names fall back to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// AttachFile opens (or creates) the run log file at path and reconfigures
// the global logger to write to both stdout and the file. It returns a
// close function that detaches the file and restores stdout-only logging.
func AttachFile(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	Logger = slog.New(newHandler(io.MultiWriter(os.Stdout, f)))
	slog.SetDefault(Logger)

	return func() error {
		Logger = slog.New(newHandler(os.Stdout))
		slog.SetDefault(Logger)
		return f.Close()
	}, nil
}

func newHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}
	if jsonFormat {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// With returns a new logger with additional attributes.
// These attributes are included in every log entry from the returned logger.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With(args...)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("dispatcher")
//	log.Info("batch dispatched") // Output: time=... level=INFO component=dispatcher msg="batch dispatched"
func Component(name string) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With("component", name)
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	Logger.Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	Logger.Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	Logger.Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	Logger.Error(msg, args...)
}
