// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

var logLevel = new(slog.LevelVar)

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// SetLevel changes the global log level. Unknown names fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
	}
}

// LoggingConfig defines which types of automated logging are enabled.
type LoggingConfig struct {
	EnableSyncLogging bool
}

var (
	// Config holds the current logging configuration.
	Config = LoggingConfig{
		EnableSyncLogging: true,
	}
)

// SyncLogger provides structured logging for the realtime sync core.
type SyncLogger struct {
	component string
	logger    *Logger
}

// NewSyncLogger creates a new SyncLogger for the given component.
func NewSyncLogger(component string) *SyncLogger {
	return &SyncLogger{
		component: component,
		logger:    GlobalLogger,
	}
}

// LogConnect logs a successful (re)connection with its timestamp.
func (l *SyncLogger) LogConnect(ctx context.Context, userID string, at time.Time) {
	if !Config.EnableSyncLogging {
		return
	}
	l.logger.InfoContext(ctx, "socket connected",
		slog.String("component", l.component),
		slog.String("user_id", userID),
		slog.Time("connected_at", at),
	)
}

// LogDisconnect logs a disconnection.
func (l *SyncLogger) LogDisconnect(ctx context.Context, reason string) {
	if !Config.EnableSyncLogging {
		return
	}
	l.logger.InfoContext(ctx, "socket disconnected",
		slog.String("component", l.component),
		slog.String("reason", reason),
	)
}

// LogEvent logs an event handled by the component at debug level.
func (l *SyncLogger) LogEvent(ctx context.Context, event string, fields map[string]interface{}) {
	if !Config.EnableSyncLogging {
		return
	}
	attrs := []any{
		slog.String("component", l.component),
		slog.String("event", event),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.DebugContext(ctx, "sync event", attrs...)
}

// LogDropped logs an event that was intentionally ignored.
func (l *SyncLogger) LogDropped(ctx context.Context, event, reason string, fields map[string]interface{}) {
	if !Config.EnableSyncLogging {
		return
	}
	attrs := []any{
		slog.String("component", l.component),
		slog.String("event", event),
		slog.String("reason", reason),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.WarnContext(ctx, "sync event dropped", attrs...)
}

// LogError logs a failure inside the component.
func (l *SyncLogger) LogError(ctx context.Context, operation string, err error) {
	if !Config.EnableSyncLogging || err == nil {
		return
	}
	l.logger.ErrorContext(ctx, "sync error",
		slog.String("component", l.component),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// LogLifecycle logs a lifecycle event of the component.
func (l *SyncLogger) LogLifecycle(ctx context.Context, event string, fields map[string]interface{}) {
	if !Config.EnableSyncLogging {
		return
	}
	attrs := []any{
		slog.String("component", l.component),
		slog.String("event", event),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "sync lifecycle", attrs...)
}
