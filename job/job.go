package job

import (
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Status represents the lifecycle state of a job.
//
// Transitions are monotonic along
// PENDING → QUEUED → RUNNING → {SUCCEEDED, FAILED}, with SKIPPED
// reachable only from PENDING. A transient failure moves a RUNNING job
// back to QUEUED until its retry budget is spent.
type Status string

const (
	// StatusPending means the job exists but has not been submitted to
	// the queue. Pipeline members wait here until their prerequisites
	// complete.
	StatusPending Status = "PENDING"
	// StatusQueued means the job has been submitted for asynchronous
	// pickup by a worker.
	StatusQueued Status = "QUEUED"
	// StatusRunning means a worker is currently executing the job body.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded means the job body completed with an ok result.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means the job body reported a business failure or
	// exhausted its retries on unhandled errors.
	StatusFailed Status = "FAILED"
	// StatusSkipped means the job never ran because a required
	// prerequisite did not succeed.
	StatusSkipped Status = "SKIPPED"
)

// Terminal reports whether no further transition can move the job out
// of this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusRunning,
		StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Progress is a monotonically non-decreasing completion indicator with
// a human-readable status line. It never influences orchestration.
type Progress struct {
	Current int64  `json:"current"`
	Total   int64  `json:"total"`
	Message string `json:"message,omitempty"`
}

// Job represents one durable unit of work.
type Job struct {
	cascade.Entity

	ID  id.ID  `json:"id"`
	URN string `json:"urn"`

	// JobType is the logical operation; JobFunction is the dispatch
	// name resolved against the Registry.
	JobType     string `json:"job_type"`
	JobFunction string `json:"job_function"`

	// Params is the input to the job body. Merge-only: cascades add
	// keys from producer metadata but never remove keys set by
	// unrelated producers.
	Params map[string]any `json:"params,omitempty"`

	MaxRetries int    `json:"max_retries"`
	RetryCount int    `json:"retry_count"`
	Status     Status `json:"status"`
	Priority   int    `json:"priority"`

	// Timeout bounds a single execution attempt. Zero means no
	// deadline beyond the worker's own context.
	Timeout time.Duration `json:"timeout,omitempty"`

	// PipelineID links the job into a dependency graph. Nil means the
	// job is independent and never triggers automatic enqueues.
	PipelineID id.ID `json:"pipeline_id,omitempty"`

	// Metadata is side information produced by the job body, owned
	// entirely by it. On success it is merged into the params of
	// dependents.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CorrelationID threads through all jobs originating from the same
	// external request. Log correlation only.
	CorrelationID string `json:"correlation_id,omitempty"`

	Progress Progress `json:"progress"`

	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorDetails map[string]any `json:"error_details,omitempty"`

	WorkerID   id.ID      `json:"worker_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// New creates a pending job with a fresh ID and URN.
func New(jobType, jobFunction string, params map[string]any, opts Options) *Job {
	jobID := id.NewJobID()
	return &Job{
		Entity:      cascade.NewEntity(),
		ID:          jobID,
		URN:         jobID.URN(),
		JobType:     jobType,
		JobFunction: jobFunction,
		Params:      params,
		MaxRetries:  opts.MaxRetries,
		Priority:    opts.Priority,
		Timeout:     opts.Timeout,
		Status:      StatusPending,
	}
}

// Terminal reports whether the job has reached a terminal status.
func (j *Job) Terminal() bool { return j.Status.Terminal() }

// Independent reports whether the job is outside any pipeline graph.
func (j *Job) Independent() bool { return j.PipelineID.IsNil() }

// MergeParams merges src into the job's params. Existing keys are
// overwritten only when src carries the same key; keys set by other
// producers are preserved.
func (j *Job) MergeParams(src map[string]any) {
	if len(src) == 0 {
		return
	}
	if j.Params == nil {
		j.Params = make(map[string]any, len(src))
	}
	for k, v := range src {
		j.Params[k] = v
	}
}

// MergeMetadata merges src into the job's metadata, same key semantics
// as MergeParams.
func (j *Job) MergeMetadata(src map[string]any) {
	if len(src) == 0 {
		return
	}
	if j.Metadata == nil {
		j.Metadata = make(map[string]any, len(src))
	}
	for k, v := range src {
		j.Metadata[k] = v
	}
}
