package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ContextKey string

const LoggerContextKey ContextKey = "logger"

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// FromContext extracts a logger from the context, falling back to the
// logger installed by SetDefault.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return newLogger(slog.Default(), "unknown")
}

// RequestIDMiddleware tags the request logger with the request ID.
func RequestIDMiddleware(extractRequestID func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := FromContext(r.Context())
			if id := extractRequestID(r.Context()); id != "" {
				logger = logger.With(FieldRequestID, id)
			}
			next.ServeHTTP(w, r.WithContext(WithLogger(r.Context(), logger)))
		})
	}
}

// StructuredLogger writes the domain events the services report.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) from(ctx context.Context) *Logger {
	if l, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		// keep the request attributes, report as this logger's component
		return l.WithComponent(sl.logger.Component())
	}
	return sl.logger
}

// LogHisaabChanged logs a successful create, update or delete.
func (sl *StructuredLogger) LogHisaabChanged(ctx context.Context, op, id, ownerID, label string, encrypted bool, items int) {
	fields := NewFields().
		WithHisaab(id, ownerID, label, encrypted, items).
		WithOperation(op)
	sl.from(ctx).InfoContext(ctx, "Hisaab "+op+"d", fields.ToSlice()...)
}

// LogAccessDenied records a failed unlock or join without the attempted
// secret.
func (sl *StructuredLogger) LogAccessDenied(ctx context.Context, op, resourceID, userID string) {
	fields := NewFields().
		WithOperation(op).
		WithUser(userID)
	if op == OpJoin {
		fields[FieldRoomID] = resourceID
	} else {
		fields[FieldHisaabID] = resourceID
	}
	sl.from(ctx).WarnContext(ctx, "Access denied", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.from(ctx).ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}
