package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/cascade/job"
)

// meterName is the instrumentation scope name for cascade metrics.
const meterName = "github.com/xraph/cascade"

// Metrics returns middleware that records per-attempt execution
// metrics using the global OTel MeterProvider. If no MeterProvider is
// configured, noop instruments are used and this middleware becomes a
// pass-through.
//
// Instruments:
//   - cascade.job.duration (Float64Histogram): attempt time in seconds,
//     with attributes: job_function, job_type, status ("ok" or "error")
//   - cascade.job.attempts (Int64Counter): total attempts,
//     with attributes: job_function, job_type, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once at construction time. On error the
	// OTel API returns noop instruments, so the middleware degrades
	// gracefully.
	duration, dErr := meter.Float64Histogram(
		"cascade.job.duration",
		metric.WithDescription("Duration of a job execution attempt in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr

	attempts, aErr := meter.Int64Counter(
		"cascade.job.attempts",
		metric.WithDescription("Total number of job execution attempts"),
		metric.WithUnit("{attempt}"),
	)
	_ = aErr

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("job_function", j.JobFunction),
			attribute.String("job_type", j.JobType),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)

		return err
	}
}
