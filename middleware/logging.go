package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/cascade/job"
)

// Logging returns middleware that logs each execution attempt.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		logger.InfoContext(ctx, "job attempt started",
			slog.String("job_function", j.JobFunction),
			slog.String("job_id", j.ID.String()),
			slog.Int("attempt", j.RetryCount+1),
			slog.String("correlation_id", j.CorrelationID),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.ErrorContext(ctx, "job attempt failed",
				slog.String("job_function", j.JobFunction),
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.InfoContext(ctx, "job attempt finished",
				slog.String("job_function", j.JobFunction),
				slog.String("job_id", j.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
