package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKeyRequestID struct{}

// WithRequestID tags ctx with id. HTTP requests get one from the request-id
// middleware; event consumers use the event id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return v
}

// RequestIDField is the zap field attached to request-scoped log lines.
func RequestIDField(ctx context.Context) zap.Field {
	return zap.String("request_id", RequestIDFromContext(ctx))
}
