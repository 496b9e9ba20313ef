// Package logging carries the request-scoped logger and correlation ids
// through a context.
package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	traceIDKey
	spanIDKey
	userIDKey
)

// WithLogger stores the provided logger on the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request-scoped logger or falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger := valueOf[*slog.Logger](ctx, loggerKey); logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRequestID stores the id of the HTTP request being served.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return valueOf[string](ctx, requestIDKey)
}

// WithTraceID stores the id shared by every span of one unit of work.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return withString(ctx, traceIDKey, traceID)
}

// TraceIDFromContext returns the trace id, or "".
func TraceIDFromContext(ctx context.Context) string {
	return valueOf[string](ctx, traceIDKey)
}

// WithSpanID stores the id of the innermost span.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return withString(ctx, spanIDKey, spanID)
}

// SpanIDFromContext returns the current span id, or "".
func SpanIDFromContext(ctx context.Context) string {
	return valueOf[string](ctx, spanIDKey)
}

// WithUserID stores the authenticated user's identifier on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	return valueOf[string](ctx, userIDKey)
}

// withString leaves ctx untouched for empty values so callers can pass
// optional ids straight through.
func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil || value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func valueOf[T any](ctx context.Context, key ctxKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	if v, ok := ctx.Value(key).(T); ok {
		return v
	}
	return zero
}
