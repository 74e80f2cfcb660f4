package cascade

import (
	"context"

	"github.com/google/uuid"
)

// correlationKey is the context key for correlation IDs.
type correlationKey struct{}

// WithCorrelationID returns a context carrying the given correlation ID.
// The ID is an opaque trace token threaded through every job that
// originates from the same external request; it carries no orchestration
// semantics and exists for log correlation only.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

// CorrelationID returns the correlation ID carried by ctx, or the empty
// string if none is set.
func CorrelationID(ctx context.Context) string {
	cid, _ := ctx.Value(correlationKey{}).(string)
	return cid
}

// EnsureCorrelationID returns the correlation ID carried by ctx, minting
// a fresh one (and attaching it) when none is present.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if cid := CorrelationID(ctx); cid != "" {
		return ctx, cid
	}
	cid := NewCorrelationID()
	return WithCorrelationID(ctx, cid), cid
}

// NewCorrelationID mints a random correlation ID.
func NewCorrelationID() string {
	return uuid.NewString()
}
