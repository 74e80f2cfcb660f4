package pipeline

import (
	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
)

// DependencyType is the kind of prerequisite an edge expresses.
type DependencyType string

const (
	// SuccessRequired means the dependent may only run once the
	// prerequisite reaches SUCCEEDED. Any other terminal outcome of
	// the prerequisite propagates SKIPPED to the dependent.
	SuccessRequired DependencyType = "SUCCESS_REQUIRED"

	// CompletionRequired means the dependent may run once the
	// prerequisite reaches SUCCEEDED or FAILED. A SKIPPED prerequisite
	// is still unfulfillable.
	CompletionRequired DependencyType = "COMPLETION_REQUIRED"
)

// Met reports whether a prerequisite in status s satisfies this
// dependency kind.
func (t DependencyType) Met(s job.Status) bool {
	switch t {
	case CompletionRequired:
		return s == job.StatusSucceeded || s == job.StatusFailed
	default:
		return s == job.StatusSucceeded
	}
}

// Unfulfillable reports whether a prerequisite in status s can never
// satisfy this dependency kind. Only meaningful for terminal s.
func (t DependencyType) Unfulfillable(s job.Status) bool {
	return s.Terminal() && !t.Met(s)
}

// DependencyEdge is a persisted directed edge: JobID (the dependent)
// waits on DependsOnJobID (the prerequisite).
type DependencyEdge struct {
	cascade.Entity

	JobID          id.ID          `json:"job_id"`
	DependsOnJobID id.ID          `json:"depends_on_job_id"`
	Type           DependencyType `json:"dependency_type"`
}

// NewEdge creates a dependency edge of the given kind.
func NewEdge(jobID, dependsOnJobID id.ID, typ DependencyType) *DependencyEdge {
	return &DependencyEdge{
		Entity:         cascade.NewEntity(),
		JobID:          jobID,
		DependsOnJobID: dependsOnJobID,
		Type:           typ,
	}
}
