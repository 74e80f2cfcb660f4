package middleware

import (
	"context"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/job"
)

// Correlation returns middleware that restores the job's correlation
// ID into the context, so handlers and anything they call see the same
// trace token as the original submit caller.
func Correlation() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.CorrelationID != "" {
			ctx = cascade.WithCorrelationID(ctx, j.CorrelationID)
		}
		return next(ctx)
	}
}
