package pipeline

import (
	"context"

	"github.com/xraph/cascade/id"
)

// ListOpts controls pagination for pipeline list queries.
type ListOpts struct {
	// Limit is the maximum number of pipelines to return. Zero means
	// no limit.
	Limit int
	// Offset is the number of pipelines to skip.
	Offset int
	// Status filters by pipeline status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for pipelines and dependency
// edges.
type Store interface {
	// CreatePipeline persists a new pipeline. Returns
	// cascade.ErrPipelineAlreadyExists on ID collision.
	CreatePipeline(ctx context.Context, p *Pipeline) error

	// GetPipeline retrieves a pipeline by ID. Returns
	// cascade.ErrPipelineNotFound if no pipeline has that ID.
	GetPipeline(ctx context.Context, pipelineID id.ID) (*Pipeline, error)

	// SetPipelineStatus conditionally writes the pipeline's status: a
	// no-op when the stored status already equals status, so redundant
	// aggregator calls are idempotent. It stamps StartedAt on the
	// first move out of PENDING and FinishedAt on a terminal status.
	// Returns the stored pipeline and whether a write happened.
	SetPipelineStatus(ctx context.Context, pipelineID id.ID, status Status) (*Pipeline, bool, error)

	// ListPipelines returns pipelines matching opts, ordered by
	// creation time.
	ListPipelines(ctx context.Context, opts ListOpts) ([]*Pipeline, error)

	// CreateDependency persists a dependency edge.
	CreateDependency(ctx context.Context, e *DependencyEdge) error

	// ListDependents returns every edge whose prerequisite is the
	// given job, i.e. the jobs waiting on it.
	ListDependents(ctx context.Context, dependsOnJobID id.ID) ([]*DependencyEdge, error)

	// ListPrerequisites returns every edge the given job waits on.
	ListPrerequisites(ctx context.Context, jobID id.ID) ([]*DependencyEdge, error)
}
