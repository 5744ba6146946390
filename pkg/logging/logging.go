// Package logging wraps log/slog to give all pushd components a consistent
// logger. Components accept a *slog.Logger in their constructor; when
// logging is disabled they get Nop().
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Level is the minimum level a logger emits.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format selects the output encoding.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config holds logging configuration.
type Config struct {
	Level  Level
	Format Format
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource adds source file and line to entries.
	AddSource bool
}

// New creates a slog.Logger from cfg.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel parses a level string ("debug", "info", "warn", "error").
// Unrecognized input falls back to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN", "warning":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseFormat parses a format string ("text", "json"). Unrecognized input
// falls back to text.
func ParseFormat(s string) Format {
	if s == "json" || s == "JSON" {
		return FormatJSON
	}
	return FormatText
}
