// Package worker provides the job execution engine: an Executor that
// claims delivered jobs, runs registered handlers through middleware,
// and applies retry and cascade semantics, and a Pool that manages
// concurrent consumer goroutines.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/alert"
	"github.com/xraph/cascade/backoff"
	"github.com/xraph/cascade/hook"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/middleware"
	"github.com/xraph/cascade/pipeline"
	"github.com/xraph/cascade/queue"
)

// Executor runs one delivered job end to end: claim, handler, outcome.
//
// The claim is the conditional QUEUED→RUNNING transition; a delivery
// that loses it is a duplicate and is acknowledged without side
// effects, which is what makes at-least-once delivery safe.
type Executor struct {
	registry    *job.Registry
	jobs        job.Store
	queue       queue.Enqueuer
	resolver    *pipeline.Resolver
	coordinator *pipeline.Coordinator
	hooks       *hook.Registry
	alerts      alert.Sink
	backoff     backoff.Strategy
	mw          middleware.Middleware
	workerID    id.ID
	logger      *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies. A nil
// backoff strategy falls back to backoff.Default(); a nil alert sink
// to alert.NopSink.
func NewExecutor(
	registry *job.Registry,
	jobs job.Store,
	q queue.Enqueuer,
	resolver *pipeline.Resolver,
	coordinator *pipeline.Coordinator,
	hooks *hook.Registry,
	alerts alert.Sink,
	bo backoff.Strategy,
	workerID id.ID,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if bo == nil {
		bo = backoff.Default()
	}
	if alerts == nil {
		alerts = alert.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:    registry,
		jobs:        jobs,
		queue:       q,
		resolver:    resolver,
		coordinator: coordinator,
		hooks:       hooks,
		alerts:      alerts,
		backoff:     bo,
		mw:          middleware.Chain(mws...),
		workerID:    workerID,
		logger:      logger,
	}
}

// Execute processes one queue delivery. It returns an error only for
// infrastructure failures the caller may want to surface; duplicate
// deliveries and handler failures are fully handled here and return
// nil, so the delivery is always safe to acknowledge.
func (e *Executor) Execute(ctx context.Context, jobID id.ID) error {
	j, err := e.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, cascade.ErrJobNotFound) {
			e.logger.WarnContext(ctx, "delivery for unknown job dropped",
				slog.String("job_id", jobID.String()))
			return nil
		}
		return fmt.Errorf("worker: load job %s: %w", jobID, err)
	}

	j, err = e.jobs.TransitionJob(ctx, jobID, []job.Status{job.StatusQueued}, job.StatusRunning, func(jb *job.Job) {
		jb.WorkerID = e.workerID
	})
	if err != nil {
		if errors.Is(err, cascade.ErrInvalidTransition) {
			// Redelivery of a job already claimed, finished, or skipped.
			e.logger.DebugContext(ctx, "duplicate delivery ignored",
				slog.String("job_id", jobID.String()),
				slog.String("status", string(j.Status)))
			return nil
		}
		return fmt.Errorf("worker: claim job %s: %w", jobID, err)
	}

	e.hooks.EmitJobStarted(ctx, j)

	handler, ok := e.registry.Get(j.JobFunction)
	if !ok {
		return e.failTerminal(ctx, j, fmt.Errorf("%w: %s", cascade.ErrNoHandler, j.JobFunction), nil)
	}

	params, err := json.Marshal(j.Params)
	if err != nil {
		return e.failTerminal(ctx, j, fmt.Errorf("worker: marshal params of %s: %w", j.ID, err), nil)
	}

	manager := job.NewManager(e.jobs, e.queue, j.ID, e.logger)

	start := time.Now()
	var result *job.Result
	terminal := func(ctx context.Context) error {
		var handlerErr error
		result, handlerErr = handler(ctx, manager, params)
		return handlerErr
	}
	runErr := e.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	if runErr != nil {
		return e.handleError(ctx, j, runErr)
	}
	if !result.Succeeded() {
		var details map[string]any
		if result != nil {
			details = result.ExceptionDetails
		}
		return e.failTerminal(ctx, j, errors.New("worker: job reported failure"), details)
	}
	return e.handleSuccess(ctx, j, result, elapsed)
}

// handleSuccess commits the terminal SUCCEEDED transition, folding the
// result data into the job's metadata so the resolver can hand it to
// dependents.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, result *job.Result, elapsed time.Duration) error {
	succeeded, err := e.jobs.TransitionJob(ctx, j.ID, []job.Status{job.StatusRunning}, job.StatusSucceeded, func(jb *job.Job) {
		jb.MergeMetadata(result.Data)
	})
	if err != nil {
		return fmt.Errorf("worker: finish job %s: %w", j.ID, err)
	}

	e.logger.InfoContext(ctx, "job succeeded",
		slog.String("job_id", succeeded.ID.String()),
		slog.String("job_function", succeeded.JobFunction),
		slog.Duration("elapsed", elapsed),
		slog.String("correlation_id", succeeded.CorrelationID))
	e.hooks.EmitJobSucceeded(ctx, succeeded, elapsed)

	return e.settle(ctx, succeeded)
}

// handleError consumes one retry attempt. With budget remaining the
// job goes back to QUEUED and re-enters the queue after a backoff
// delay; otherwise it fails terminally.
func (e *Executor) handleError(ctx context.Context, j *job.Job, handlerErr error) error {
	attempt := j.RetryCount + 1
	if attempt > j.MaxRetries {
		return e.failTerminal(ctx, j,
			fmt.Errorf("%w: attempt %d of %d: %v", cascade.ErrMaxRetriesExceeded, attempt, j.MaxRetries, handlerErr),
			nil)
	}

	requeued, err := e.jobs.TransitionJob(ctx, j.ID, []job.Status{job.StatusRunning}, job.StatusQueued, func(jb *job.Job) {
		jb.RetryCount = attempt
		jb.ErrorMessage = handlerErr.Error()
		jb.WorkerID = id.Nil
	})
	if err != nil {
		return fmt.Errorf("worker: requeue job %s: %w", j.ID, err)
	}

	delay := e.backoff(attempt)
	if err := e.queue.EnqueueIn(ctx, requeued.ID, delay); err != nil {
		return fmt.Errorf("worker: enqueue retry of %s: %w", requeued.ID, err)
	}

	e.logger.WarnContext(ctx, "job scheduled for retry",
		slog.String("job_id", requeued.ID.String()),
		slog.String("job_function", requeued.JobFunction),
		slog.Int("attempt", attempt),
		slog.Int("max_retries", requeued.MaxRetries),
		slog.Duration("delay", delay),
		slog.String("error", handlerErr.Error()))
	e.hooks.EmitJobRetrying(ctx, requeued, attempt, delay)
	return nil
}

// failTerminal commits the terminal FAILED transition and alerts.
func (e *Executor) failTerminal(ctx context.Context, j *job.Job, cause error, details map[string]any) error {
	failed, err := e.jobs.TransitionJob(ctx, j.ID, []job.Status{job.StatusRunning}, job.StatusFailed, func(jb *job.Job) {
		jb.ErrorMessage = cause.Error()
		if len(details) > 0 {
			jb.ErrorDetails = details
		}
	})
	if err != nil {
		return fmt.Errorf("worker: fail job %s: %w", j.ID, err)
	}

	e.logger.ErrorContext(ctx, "job failed",
		slog.String("job_id", failed.ID.String()),
		slog.String("job_function", failed.JobFunction),
		slog.Int("retry_count", failed.RetryCount),
		slog.String("error", cause.Error()),
		slog.String("correlation_id", failed.CorrelationID))
	e.hooks.EmitJobFailed(ctx, failed, cause)

	e.sendAlert(ctx, failed, cause)

	return e.settle(ctx, failed)
}

// settle runs the post-terminal cascade: resolve dependents, then
// recompute the owning pipeline's status. Cascade errors are logged
// and returned so the caller can decide whether to surface them; the
// job itself is already terminal either way.
func (e *Executor) settle(ctx context.Context, j *job.Job) error {
	var errs []error
	if err := e.resolver.Resolve(ctx, j); err != nil {
		e.logger.ErrorContext(ctx, "dependency resolution error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if !j.Independent() {
		if _, err := e.coordinator.Recompute(ctx, j.PipelineID); err != nil {
			e.logger.ErrorContext(ctx, "pipeline recompute error",
				slog.String("pipeline_id", j.PipelineID.String()),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// sendAlert fires the operator alert for a terminally failed job.
// Fire-and-forget: sink errors are logged, never propagated.
func (e *Executor) sendAlert(ctx context.Context, j *job.Job, cause error) {
	a := alert.Alert{
		Summary:       fmt.Sprintf("job %s failed: %s", j.JobFunction, cause),
		JobURN:        j.URN,
		CorrelationID: j.CorrelationID,
		Details: map[string]any{
			"job_type":    j.JobType,
			"retry_count": j.RetryCount,
		},
	}
	if !j.PipelineID.IsNil() {
		a.PipelineURN = j.PipelineID.URN()
	}
	if err := e.alerts.Send(ctx, a); err != nil {
		e.logger.ErrorContext(ctx, "alert delivery error",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()))
	}
}
