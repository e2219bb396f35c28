package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	// Default is the default logger instance
	Default *slog.Logger
)

func init() {
	Default = New("info", os.Stdout)
}

// ParseLevel maps a config level string to a slog level. Unknown values fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// New creates a JSON logger with the specified level and output
func New(level string, output io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewText creates a text-formatted logger, used by the CLI
func NewText(level string, output io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewWithFormat picks the handler from the log_format config value ("json" or "text").
func NewWithFormat(format, level string, output io.Writer) *slog.Logger {
	if strings.EqualFold(format, "text") {
		return NewText(level, output)
	}
	return New(level, output)
}

// Discard returns a logger that drops everything. Handy in tests and benchmarks.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDefault returns l, or Default when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Default
	}
	return l
}

// SetDefault sets the default logger
func SetDefault(logger *slog.Logger) {
	Default = logger
	slog.SetDefault(logger)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Default.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Default.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Default.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Default.Error(msg, args...)
}

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger {
	return Default.With(args...)
}
