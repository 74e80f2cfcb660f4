package pipeline

import (
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// Status represents the aggregate state of a pipeline. It is always a
// pure function of the member jobs' statuses, never independently
// mutated.
type Status string

const (
	// StatusPending means no member job has started yet.
	StatusPending Status = "PENDING"
	// StatusRunning means at least one member job is in flight and
	// none has failed.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded means every member job is SUCCEEDED or SKIPPED.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means at least one member job is FAILED.
	StatusFailed Status = "FAILED"
)

// Terminal reports whether the pipeline has finished.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Pipeline is the persisted aggregate of a job graph.
type Pipeline struct {
	cascade.Entity

	ID          id.ID  `json:"id"`
	URN         string `json:"urn"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`

	CorrelationID string     `json:"correlation_id,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// New creates a pending pipeline with a fresh ID and URN.
func New(name, description string) *Pipeline {
	plID := id.NewPipelineID()
	return &Pipeline{
		Entity:      cascade.NewEntity(),
		ID:          plID,
		URN:         plID.URN(),
		Name:        name,
		Description: description,
		Status:      StatusPending,
	}
}
