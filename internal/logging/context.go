// Package logging carries request-scoped loggers through context and
// fans records out to multiple slog handlers.
package logging

import (
	"context"
	"io"
	"log/slog"
)

type contextKey struct{}

// WithLogger returns a context carrying the provided logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, ensureLogger(logger))
}

// FromContext returns the logger stored in context, the fallback, or a
// no-op logger when neither is available.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return ensureLogger(fallback)
}

func ensureLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
