package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
)

// Emitter is called by the Resolver and Coordinator to emit lifecycle
// events. hook.Registry satisfies it directly; the interface lives here
// so pipeline does not import hook.
type Emitter interface {
	EmitJobQueued(ctx context.Context, j *job.Job)
	EmitJobSkipped(ctx context.Context, j *job.Job)
	EmitPipelineStatusChanged(ctx context.Context, p *Pipeline)
}

// NopEmitter is an Emitter that does nothing.
type NopEmitter struct{}

func (NopEmitter) EmitJobQueued(context.Context, *job.Job)              {}
func (NopEmitter) EmitJobSkipped(context.Context, *job.Job)             {}
func (NopEmitter) EmitPipelineStatusChanged(context.Context, *Pipeline) {}

// Enqueuer is the slice of the queue contract the Resolver needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID id.ID) error
}

// Resolver decides, when a job reaches a terminal status, which of its
// dependents to enqueue, skip, or leave untouched.
//
// Each hop is a short read/write transaction against the stores; the
// resolver holds no long-lived locks. The conditional PENDING→QUEUED
// transition makes it safe for two producers of the same dependent to
// race: exactly one wins and enqueues.
type Resolver struct {
	jobs      job.Store
	pipelines Store
	queue     Enqueuer
	emitter   Emitter
	logger    *slog.Logger
}

// NewResolver creates a dependency resolver.
func NewResolver(jobs job.Store, pipelines Store, queue Enqueuer, emitter Emitter, logger *slog.Logger) *Resolver {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		jobs:      jobs,
		pipelines: pipelines,
		queue:     queue,
		emitter:   emitter,
		logger:    logger,
	}
}

// Resolve evaluates every dependency edge pointing away from the
// terminal job and applies the cascade rules. Per-dependent errors are
// collected rather than aborting the walk, so one broken record cannot
// strand its siblings.
func (r *Resolver) Resolve(ctx context.Context, terminal *job.Job) error {
	if !terminal.Terminal() {
		return fmt.Errorf("pipeline: resolve %s: job is %s, not terminal", terminal.ID, terminal.Status)
	}

	edges, err := r.pipelines.ListDependents(ctx, terminal.ID)
	if err != nil {
		return fmt.Errorf("pipeline: list dependents of %s: %w", terminal.ID, err)
	}

	var errs []error
	var skipFrontier []id.ID

	for _, e := range edges {
		dep, err := r.jobs.GetJob(ctx, e.JobID)
		if err != nil {
			errs = append(errs, fmt.Errorf("pipeline: load dependent %s: %w", e.JobID, err))
			continue
		}

		// Independent dependents get the producer's payload merged
		// under a namespace the producer controls, and nothing else.
		// Their status never changes and they are never enqueued.
		if dep.Independent() {
			if len(terminal.Metadata) > 0 {
				ns := map[string]any{terminal.JobFunction: terminal.Metadata}
				if err := r.jobs.MergeJobParams(ctx, dep.ID, ns); err != nil {
					errs = append(errs, fmt.Errorf("pipeline: merge params into independent %s: %w", dep.ID, err))
				}
			}
			continue
		}

		if e.Type.Unfulfillable(terminal.Status) {
			skipFrontier = append(skipFrontier, dep.ID)
			continue
		}
		if !e.Type.Met(terminal.Status) {
			continue
		}

		if terminal.Status == job.StatusSucceeded && len(terminal.Metadata) > 0 {
			if err := r.jobs.MergeJobParams(ctx, dep.ID, terminal.Metadata); err != nil {
				errs = append(errs, fmt.Errorf("pipeline: merge params into %s: %w", dep.ID, err))
				continue
			}
		}

		ready, err := r.allPrerequisitesMet(ctx, dep.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ready {
			continue
		}

		// Enqueue strictly after the transition commits. If the guard
		// fails, another producer already queued (or skipped) this
		// dependent.
		queued, err := r.jobs.TransitionJob(ctx, dep.ID, []job.Status{job.StatusPending}, job.StatusQueued, nil)
		if errors.Is(err, cascade.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("pipeline: queue %s: %w", dep.ID, err))
			continue
		}
		if err := r.queue.Enqueue(ctx, queued.ID); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: enqueue %s: %w", queued.ID, err))
			continue
		}
		r.logger.InfoContext(ctx, "dependent queued",
			slog.String("job_id", queued.ID.String()),
			slog.String("after", terminal.ID.String()),
			slog.String("correlation_id", queued.CorrelationID))
		r.emitter.EmitJobQueued(ctx, queued)
	}

	if err := r.cascadeSkip(ctx, skipFrontier); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// allPrerequisitesMet reports whether every edge into the job is
// satisfied. A dependent with several producers only runs once the
// last of them lands.
func (r *Resolver) allPrerequisitesMet(ctx context.Context, jobID id.ID) (bool, error) {
	edges, err := r.pipelines.ListPrerequisites(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("pipeline: list prerequisites of %s: %w", jobID, err)
	}
	for _, e := range edges {
		prereq, err := r.jobs.GetJob(ctx, e.DependsOnJobID)
		if err != nil {
			return false, fmt.Errorf("pipeline: load prerequisite %s: %w", e.DependsOnJobID, err)
		}
		if !e.Type.Met(prereq.Status) {
			return false, nil
		}
	}
	return true, nil
}

// cascadeSkip walks the dependency graph breadth-first from the given
// jobs, skipping each and then its own dependents. The visited set
// guarantees termination even if graph-construction invariants were
// ever violated and a cycle slipped in.
func (r *Resolver) cascadeSkip(ctx context.Context, frontier []id.ID) error {
	var errs []error
	visited := make(map[id.ID]struct{}, len(frontier))

	for len(frontier) > 0 {
		jobID := frontier[0]
		frontier = frontier[1:]
		if _, seen := visited[jobID]; seen {
			continue
		}
		visited[jobID] = struct{}{}

		skipped, err := r.jobs.TransitionJob(ctx, jobID, []job.Status{job.StatusPending}, job.StatusSkipped, nil)
		if errors.Is(err, cascade.ErrInvalidTransition) {
			// Already queued, running, or terminal. Skip only applies
			// to jobs that have not started.
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("pipeline: skip %s: %w", jobID, err))
			continue
		}
		r.logger.InfoContext(ctx, "dependent skipped",
			slog.String("job_id", skipped.ID.String()),
			slog.String("correlation_id", skipped.CorrelationID))
		r.emitter.EmitJobSkipped(ctx, skipped)

		// A SKIPPED prerequisite is unfulfillable for every edge kind,
		// so every pipeline dependent joins the frontier.
		edges, err := r.pipelines.ListDependents(ctx, jobID)
		if err != nil {
			errs = append(errs, fmt.Errorf("pipeline: list dependents of %s: %w", jobID, err))
			continue
		}
		for _, e := range edges {
			dep, err := r.jobs.GetJob(ctx, e.JobID)
			if err != nil {
				errs = append(errs, fmt.Errorf("pipeline: load dependent %s: %w", e.JobID, err))
				continue
			}
			if dep.Independent() {
				continue
			}
			frontier = append(frontier, dep.ID)
		}
	}
	return errors.Join(errs...)
}
