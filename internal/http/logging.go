package http

import (
	"context"
	"log/slog"

	"github.com/example/roombooking/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger scopes the request logger to one handler operation. The routed
// kind and entity id are attached when the router recorded them.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := []any{"handler", handlerName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if kind, ok := KindFromContext(ctx); ok {
		pairs = append(pairs, "kind", kind)
	}
	if id, ok := EntityIDFromContext(ctx); ok {
		pairs = append(pairs, "id", id.String())
	}
	return logger.With(append(pairs, attrs...)...)
}
