// Package logging builds the slog loggers used across docengine.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel parses a level name. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Config configures a logger.
type Config struct {
	// Level is the minimum level name: debug, info, warn or error.
	Level string
	// Format is "text" or "json". Defaults to text.
	Format string
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
}

// Logger is a slog logger whose level can be changed while running.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		h = slog.NewTextHandler(cfg.Output, opts)
	}
	return &Logger{Logger: slog.New(h).With("service", "docengine"), level: level}
}

// SetLevel changes the minimum level by name.
func (l *Logger) SetLevel(name string) {
	l.level.Set(ParseLevel(name))
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
