package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/cascade/job"
)

// Timeout returns middleware that enforces a per-attempt deadline. If
// the job has a non-zero Timeout, a context.WithTimeout wraps the
// handler call; on expiry the handler sees a cancelled context and its
// error counts against the retry budget like any other.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout > 0 {
			logger.DebugContext(ctx, "job timeout set",
				slog.String("job_id", j.ID.String()),
				slog.Duration("timeout", j.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, j.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
