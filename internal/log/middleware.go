package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	LoggerContextKey ContextKey = "logger"
	// RequestIDContextKey is shared with the trace middleware.
	RequestIDContextKey ContextKey = "request_id"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := logger.WithContext(r.Context())
			ctx := context.WithValue(r.Context(), LoggerContextKey, l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context, falling back to
// the default logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return &Logger{
		Logger:    slog.Default(),
		base:      slog.Default().Handler(),
		component: "unknown",
	}
}

// StructuredLogger logs dashboard lifecycle and mutation events with a fixed
// field layout.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogMount logs a view being mounted or resumed.
func (sl *StructuredLogger) LogMount(ctx context.Context, session string, resumed bool) {
	fields := NewFields().
		WithSession(session).
		WithOperation(OpMount)
	fields["resumed"] = resumed
	sl.logger.WithContext(ctx).InfoContext(ctx, "Dashboard view mounted", fields.ToSlice()...)
}

// LogUnmount logs a view being discarded.
func (sl *StructuredLogger) LogUnmount(ctx context.Context, session, reason string) {
	fields := NewFields().
		WithSession(session).
		WithOperation(OpUnmount)
	fields[FieldReason] = reason
	sl.logger.WithContext(ctx).InfoContext(ctx, "Dashboard view unmounted", fields.ToSlice()...)
}

// LogToggle logs a state change together with the resulting state.
func (sl *StructuredLogger) LogToggle(ctx context.Context, session, what string, dark, ghost bool, selected []int, totalCents int64) {
	fields := NewFields().
		WithSession(session).
		WithOperation(OpToggle).
		WithDashboard(dark, ghost, selected, totalCents)
	fields["target"] = what
	sl.logger.WithContext(ctx).InfoContext(ctx, "Dashboard state changed", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	all := fields.
		WithError(err).
		WithOperation(operation)
	sl.logger.WithContext(ctx).ErrorContext(ctx, msg, all.ToSlice()...)
}
