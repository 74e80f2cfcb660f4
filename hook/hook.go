// Package hook defines the extension system for Cascade. Extensions
// are notified of lifecycle events (job queued, succeeded, skipped,
// pipeline status changed, etc.) and can react to them: alerting,
// metrics, audit trails.
//
// Each lifecycle hook is a separate interface so extensions opt in
// only to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/pipeline"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobQueued is called after a job is submitted to the queue, whether
// by a caller or by the dependency resolver.
type JobQueued interface {
	OnJobQueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a worker begins executing a job body.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobSucceeded is called after a job body reports an ok result.
type JobSucceeded interface {
	OnJobSucceeded(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job reaches FAILED, whether through an
// expected business failure or exhausted retries.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobRetrying is called when a job body errors but retries remain.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, delay time.Duration) error
}

// JobSkipped is called when the resolver skips a job whose required
// prerequisite did not succeed.
type JobSkipped interface {
	OnJobSkipped(ctx context.Context, j *job.Job) error
}

// ──────────────────────────────────────────────────
// Pipeline and scheduler hooks
// ──────────────────────────────────────────────────

// PipelineStatusChanged is called when the aggregator writes a new
// pipeline status.
type PipelineStatusChanged interface {
	OnPipelineStatusChanged(ctx context.Context, p *pipeline.Pipeline) error
}

// CronFired is called when a cron entry fires and creates a job.
type CronFired interface {
	OnCronFired(ctx context.Context, entryName string, jobID id.ID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
