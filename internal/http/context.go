package http

import (
	"context"

	"github.com/example/roombooking/internal/domain"
)

type contextKey string

const (
	kindContextKey     contextKey = "kind"
	entityIDContextKey contextKey = "entity_id"
	requestIDKey       contextKey = "request_id"
)

// ContextWithKind injects the entity kind resolved from the request path.
func ContextWithKind(ctx context.Context, kind domain.Kind) context.Context {
	return context.WithValue(ctx, kindContextKey, kind)
}

// KindFromContext extracts the entity kind previously associated with the context.
func KindFromContext(ctx context.Context) (domain.Kind, bool) {
	kind, ok := ctx.Value(kindContextKey).(domain.Kind)
	return kind, ok
}

// ContextWithEntityID injects the entity identifier resolved from the request path.
func ContextWithEntityID(ctx context.Context, id domain.ID) context.Context {
	return context.WithValue(ctx, entityIDContextKey, id)
}

// EntityIDFromContext extracts an entity identifier previously associated with the context.
func EntityIDFromContext(ctx context.Context) (domain.ID, bool) {
	id, ok := ctx.Value(entityIDContextKey).(domain.ID)
	return id, ok
}

// ContextWithRequestID stores the id RequestLogger assigned to the request.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}
