package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/cascade/hook"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/pipeline"
)

// Ensure Extension implements the lifecycle hooks at compile time.
var (
	_ hook.Extension             = (*Extension)(nil)
	_ hook.JobQueued             = (*Extension)(nil)
	_ hook.JobStarted            = (*Extension)(nil)
	_ hook.JobSucceeded          = (*Extension)(nil)
	_ hook.JobFailed             = (*Extension)(nil)
	_ hook.JobRetrying           = (*Extension)(nil)
	_ hook.JobSkipped            = (*Extension)(nil)
	_ hook.PipelineStatusChanged = (*Extension)(nil)
	_ hook.CronFired             = (*Extension)(nil)
)

// Extension bridges Cascade lifecycle events to an audit trail
// backend. Each lifecycle hook emits a structured audit event through
// the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithActions restricts the extension to emit only the listed actions.
// By default all actions are enabled.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// WithLogger sets a custom logger for the extension.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "audit" }

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// OnJobQueued implements hook.JobQueued.
func (e *Extension) OnJobQueued(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobQueued, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), j.CorrelationID, nil,
		"job_function", j.JobFunction,
		"job_type", j.JobType,
	)
}

// OnJobStarted implements hook.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), j.CorrelationID, nil,
		"job_function", j.JobFunction,
		"worker_id", j.WorkerID.String(),
	)
}

// OnJobSucceeded implements hook.JobSucceeded.
func (e *Extension) OnJobSucceeded(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobSucceeded, SeverityInfo, OutcomeSuccess,
		ResourceJob, j.ID.String(), j.CorrelationID, nil,
		"job_function", j.JobFunction,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements hook.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure,
		ResourceJob, j.ID.String(), j.CorrelationID, jobErr,
		"job_function", j.JobFunction,
		"retry_count", j.RetryCount,
		"max_retries", j.MaxRetries,
	)
}

// OnJobRetrying implements hook.JobRetrying.
func (e *Extension) OnJobRetrying(ctx context.Context, j *job.Job, attempt int, delay time.Duration) error {
	return e.record(ctx, ActionJobRetrying, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), j.CorrelationID, nil,
		"job_function", j.JobFunction,
		"attempt", attempt,
		"delay_ms", delay.Milliseconds(),
	)
}

// OnJobSkipped implements hook.JobSkipped.
func (e *Extension) OnJobSkipped(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobSkipped, SeverityWarning, OutcomeFailure,
		ResourceJob, j.ID.String(), j.CorrelationID, nil,
		"job_function", j.JobFunction,
		"pipeline_id", j.PipelineID.String(),
	)
}

// ──────────────────────────────────────────────────
// Pipeline and scheduler hooks
// ──────────────────────────────────────────────────

// OnPipelineStatusChanged implements hook.PipelineStatusChanged.
func (e *Extension) OnPipelineStatusChanged(ctx context.Context, p *pipeline.Pipeline) error {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if p.Status == pipeline.StatusFailed {
		severity = SeverityCritical
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionPipelineStatusChanged, severity, outcome,
		ResourcePipeline, p.ID.String(), p.CorrelationID, nil,
		"pipeline_name", p.Name,
		"status", string(p.Status),
	)
}

// OnCronFired implements hook.CronFired.
func (e *Extension) OnCronFired(ctx context.Context, entryName string, jobID id.ID) error {
	return e.record(ctx, ActionCronFired, SeverityInfo, OutcomeSuccess,
		ResourceCron, entryName, "", nil,
		"job_id", jobID.String(),
	)
}

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, correlationID string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:        action,
		Resource:      resource,
		ResourceID:    resourceID,
		Metadata:      meta,
		Outcome:       outcome,
		Severity:      severity,
		Reason:        reason,
		CorrelationID: correlationID,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.WarnContext(ctx, "audit: failed to record event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
