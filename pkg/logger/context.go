package logger

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// With returns ctx carrying the context logger extended with fields.
func With(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, loggerKey{}, From(ctx).With(fields...))
}

// WithTrace tags every later log line of the request with its trace id.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return With(ctx, "trace_id", traceID)
}

// WithActor tags the request logger with the authenticated principal.
func WithActor(ctx context.Context, tenantID, userID int64) context.Context {
	return With(ctx, slog.Group("actor", "tenant_id", tenantID, "user_id", userID))
}

// From returns the logger stored in ctx, falling back to the process logger.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return LoggerWrapper()
}
