// Package observability provides structured logging and tracing for the
// semantic cache core, adapted from the host application's logging
// wrapper — trimmed of redaction, since prompts and cache payloads carry
// no credential-shaped data this core needs to scrub.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so call sites don't depend on the concrete
// handler the façade picked.
type Logger struct {
	logger *slog.Logger
}

// LoggerConfig configures the underlying slog handler.
type LoggerConfig struct {
	Level      slog.Level
	Output     io.Writer
	AddSource  bool
	JSONFormat bool
}

// DefaultLoggerConfig logs at Info level to stdout in JSON.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{Level: slog.LevelInfo, JSONFormat: true}
}

// NewLogger creates a Logger from cfg.
func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return &Logger{logger: slog.New(handler)}
}

// Noop returns a Logger that discards everything, used as the façade's
// zero-value default so callers never need a nil check.
func Noop() *Logger {
	return &Logger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a logger with additional structured fields attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Slog returns the underlying slog.Logger for callers that need it
// directly (e.g. to pass into a library that accepts one).
func (l *Logger) Slog() *slog.Logger { return l.logger }
