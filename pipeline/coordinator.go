package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
)

// Coordinator recomputes a pipeline's aggregate status from its member
// jobs and persists it. Safe to call redundantly from concurrent
// terminal-transition events: the store write is conditional on the
// status actually changing.
type Coordinator struct {
	jobs      job.Store
	pipelines Store
	emitter   Emitter
	logger    *slog.Logger
}

// NewCoordinator creates a pipeline status coordinator.
func NewCoordinator(jobs job.Store, pipelines Store, emitter Emitter, logger *slog.Logger) *Coordinator {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		jobs:      jobs,
		pipelines: pipelines,
		emitter:   emitter,
		logger:    logger,
	}
}

// Recompute derives the pipeline's status from its member jobs and
// writes it if changed. Returns the derived status.
func (c *Coordinator) Recompute(ctx context.Context, pipelineID id.ID) (Status, error) {
	members, err := c.jobs.ListJobsByPipeline(ctx, pipelineID)
	if err != nil {
		return "", fmt.Errorf("pipeline: list jobs of %s: %w", pipelineID, err)
	}

	status := ComputeStatus(members)
	p, changed, err := c.pipelines.SetPipelineStatus(ctx, pipelineID, status)
	if err != nil {
		return "", fmt.Errorf("pipeline: set status of %s: %w", pipelineID, err)
	}
	if changed {
		c.logger.InfoContext(ctx, "pipeline status changed",
			slog.String("pipeline_id", p.ID.String()),
			slog.String("status", string(status)),
			slog.String("correlation_id", p.CorrelationID))
		c.emitter.EmitPipelineStatusChanged(ctx, p)
	}
	return status, nil
}
