package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cascade/job"
)

// tracerName is the instrumentation scope name for cascade tracing.
const tracerName = "github.com/xraph/cascade"

// Tracing returns middleware that wraps each execution attempt in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: cascade.job.id, cascade.job.function,
// cascade.job.type, cascade.retry_count, cascade.pipeline.id, and
// cascade.correlation_id. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "cascade.job.execute",
			trace.WithAttributes(
				attribute.String("cascade.job.id", j.ID.String()),
				attribute.String("cascade.job.function", j.JobFunction),
				attribute.String("cascade.job.type", j.JobType),
				attribute.Int("cascade.retry_count", j.RetryCount),
				attribute.String("cascade.pipeline.id", j.PipelineID.String()),
				attribute.String("cascade.correlation_id", j.CorrelationID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
