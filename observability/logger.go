package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance
var Logger *slog.Logger

// InitLogger initializes the global logger at info level.
// JSON output in production, text output otherwise.
func InitLogger(production bool) {
	InitLoggerWithLevel(production, slog.LevelInfo)
}

// InitLoggerWithLevel initializes the logger with a specific log level
func InitLoggerWithLevel(production bool, level slog.Level) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if production {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func ensureLogger() *slog.Logger {
	if Logger == nil {
		InitLogger(false)
	}
	return Logger
}

// WithContext returns a logger with context fields
func WithContext(ctx context.Context) *slog.Logger {
	logger := ensureLogger()
	if id, ok := ctx.Value(cycleIDKey{}).(string); ok && id != "" {
		return logger.With("cycle_id", id)
	}
	return logger
}

// Info logs an info message
func Info(msg string, args ...any) {
	ensureLogger().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	ensureLogger().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	ensureLogger().Error(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	ensureLogger().Debug(msg, args...)
}

// Fatal logs an error message and exits
func Fatal(msg string, args ...any) {
	ensureLogger().Error(msg, args...)
	os.Exit(1)
}

// WithSymbol returns a logger with symbol field
func WithSymbol(symbol string) *slog.Logger {
	return ensureLogger().With("symbol", symbol)
}

// WithProvider returns a logger with provider field
func WithProvider(provider string) *slog.Logger {
	return ensureLogger().With("provider", provider)
}

// WithError returns a logger with error field
func WithError(err error) *slog.Logger {
	return ensureLogger().With("error", err)
}

type cycleIDKey struct{}

// ContextWithCycleID tags a context with a refresh cycle ID so that
// WithContext loggers carry it.
func ContextWithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}
