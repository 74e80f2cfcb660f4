package job

import (
	"context"

	"github.com/xraph/cascade/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// PipelineID filters by pipeline. Nil means all jobs.
	PipelineID id.ID
	// Status filters by job status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for jobs.
//
// TransitionJob is the concurrency primitive the whole orchestrator
// rests on: a read-then-conditionally-write under row isolation, so
// two workers holding redelivered copies of the same job cannot both
// move it forward.
type Store interface {
	// CreateJob persists a new job. Returns
	// cascade.ErrJobAlreadyExists on ID collision.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID. Returns cascade.ErrJobNotFound if
	// no job has that ID.
	GetJob(ctx context.Context, jobID id.ID) (*Job, error)

	// UpdateJob persists changes to an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// TransitionJob atomically moves a job to status to, but only if
	// its current status is one of from; otherwise it returns the
	// unchanged job and cascade.ErrInvalidTransition. When the guard
	// holds, mut (if non-nil) mutates the record inside the same
	// write, after the status change is applied. The returned job
	// reflects the stored state either way.
	TransitionJob(ctx context.Context, jobID id.ID, from []Status, to Status, mut func(*Job)) (*Job, error)

	// MergeJobParams merges params into the job's params map without
	// touching its status. Merge-only: keys absent from params are
	// preserved.
	MergeJobParams(ctx context.Context, jobID id.ID, params map[string]any) error

	// MergeJobMetadata merges meta into the job's metadata map.
	MergeJobMetadata(ctx context.Context, jobID id.ID, meta map[string]any) error

	// UpdateJobProgress durably records progress against the job
	// without altering its status. Progress never moves backwards: a
	// current lower than the stored value is clamped to it.
	UpdateJobProgress(ctx context.Context, jobID id.ID, current, total int64, message string) error

	// ListJobsByPipeline returns every job belonging to the pipeline,
	// ordered by creation time.
	ListJobsByPipeline(ctx context.Context, pipelineID id.ID) ([]*Job, error)

	// ListJobsByStatus returns jobs in the given status.
	ListJobsByStatus(ctx context.Context, status Status, opts ListOpts) ([]*Job, error)

	// CountJobs returns the number of jobs matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
