package logger

import (
	"context"
	"log/slog"
)

// RequestIDKey is the context key read by RequestIDExtractor.
type RequestIDKey struct{}

// ModeKey is the context key read by ModeExtractor.
type ModeKey struct{}

// WithRequestID stores the request id for RequestIDExtractor.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, id)
}

// WithMode stores the dispatched mode for ModeExtractor.
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, ModeKey{}, mode)
}

// RequestIDExtractor adds request_id to every record logged with a context
// carrying one.
func RequestIDExtractor() ContextExtractor {
	return stringExtractor(RequestIDKey{}, "request_id")
}

// ModeExtractor adds mode to every record logged during dispatch.
func ModeExtractor() ContextExtractor {
	return stringExtractor(ModeKey{}, "mode")
}

func stringExtractor(key any, name string) ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			return slog.String(name, v), true
		}
		return slog.Attr{}, false
	}
}
