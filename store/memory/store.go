// Package memory is a fully in-memory store backend. Safe for
// concurrent access; intended for unit testing and single-process
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/cron"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/pipeline"
)

// Compile-time interface checks. The composite store.Store cannot be
// named here (import cycle), so each subsystem is verified instead.
var (
	_ job.Store      = (*Store)(nil)
	_ pipeline.Store = (*Store)(nil)
	_ cron.Store     = (*Store)(nil)
)

// Store holds everything in maps under one mutex. Every read returns a
// deep copy so callers can mutate without racing the store; every
// write goes through the mutex, which is what stands in for the row
// isolation of the relational backends.
type Store struct {
	mu sync.RWMutex

	jobs      map[string]*job.Job
	pipelines map[string]*pipeline.Pipeline
	edges     []*pipeline.DependencyEdge
	crons     map[string]*cron.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:      make(map[string]*job.Job),
		pipelines: make(map[string]*pipeline.Pipeline),
		crons:     make(map[string]*cron.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job store
// ──────────────────────────────────────────────────

// CreateJob persists a new job.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return cascade.ErrJobAlreadyExists
	}
	m.jobs[key] = cloneJob(j)
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.ID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, cascade.ErrJobNotFound
	}
	return cloneJob(j), nil
}

// UpdateJob persists changes to an existing job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return cascade.ErrJobNotFound
	}
	cp := cloneJob(j)
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = cp
	return nil
}

// TransitionJob atomically moves a job to a new status if its current
// status is in the from set.
func (m *Store) TransitionJob(_ context.Context, jobID id.ID, from []job.Status, to job.Status, mut func(*job.Job)) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, cascade.ErrJobNotFound
	}

	allowed := false
	for _, s := range from {
		if j.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return cloneJob(j), cascade.ErrInvalidTransition
	}

	now := time.Now().UTC()
	j.Status = to
	switch {
	case to == job.StatusRunning:
		j.StartedAt = &now
	case to.Terminal():
		j.FinishedAt = &now
	}
	if mut != nil {
		mut(j)
	}
	j.UpdatedAt = now
	return cloneJob(j), nil
}

// MergeJobParams merges params into the job's params map.
func (m *Store) MergeJobParams(_ context.Context, jobID id.ID, params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return cascade.ErrJobNotFound
	}
	j.MergeParams(params)
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// MergeJobMetadata merges meta into the job's metadata map.
func (m *Store) MergeJobMetadata(_ context.Context, jobID id.ID, meta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return cascade.ErrJobNotFound
	}
	j.MergeMetadata(meta)
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateJobProgress records progress without touching status. Current
// never moves backwards.
func (m *Store) UpdateJobProgress(_ context.Context, jobID id.ID, current, total int64, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return cascade.ErrJobNotFound
	}
	if current < j.Progress.Current {
		current = j.Progress.Current
	}
	j.Progress = job.Progress{Current: current, Total: total, Message: message}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// ListJobsByPipeline returns the pipeline's member jobs ordered by
// creation time.
func (m *Store) ListJobsByPipeline(_ context.Context, pipelineID id.ID) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.PipelineID == pipelineID {
			result = append(result, cloneJob(j))
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result, nil
}

// ListJobsByStatus returns jobs in the given status.
func (m *Store) ListJobsByStatus(_ context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*job.Job
	for _, j := range m.jobs {
		if j.Status == status {
			result = append(result, cloneJob(j))
		}
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// CountJobs returns the number of jobs matching opts.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
		if !opts.PipelineID.IsNil() && j.PipelineID != opts.PipelineID {
			continue
		}
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		n++
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Pipeline store
// ──────────────────────────────────────────────────

// CreatePipeline persists a new pipeline.
func (m *Store) CreatePipeline(_ context.Context, p *pipeline.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.ID.String()
	if _, exists := m.pipelines[key]; exists {
		return cascade.ErrPipelineAlreadyExists
	}
	m.pipelines[key] = clonePipeline(p)
	return nil
}

// GetPipeline retrieves a pipeline by ID.
func (m *Store) GetPipeline(_ context.Context, pipelineID id.ID) (*pipeline.Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pipelines[pipelineID.String()]
	if !ok {
		return nil, cascade.ErrPipelineNotFound
	}
	return clonePipeline(p), nil
}

// SetPipelineStatus conditionally writes the pipeline's status.
func (m *Store) SetPipelineStatus(_ context.Context, pipelineID id.ID, status pipeline.Status) (*pipeline.Pipeline, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pipelines[pipelineID.String()]
	if !ok {
		return nil, false, cascade.ErrPipelineNotFound
	}
	if p.Status == status {
		return clonePipeline(p), false, nil
	}

	now := time.Now().UTC()
	if p.Status == pipeline.StatusPending && p.StartedAt == nil {
		p.StartedAt = &now
	}
	p.Status = status
	if status.Terminal() {
		p.FinishedAt = &now
	}
	p.UpdatedAt = now
	return clonePipeline(p), true, nil
}

// ListPipelines returns pipelines matching opts ordered by creation
// time.
func (m *Store) ListPipelines(_ context.Context, opts pipeline.ListOpts) ([]*pipeline.Pipeline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*pipeline.Pipeline
	for _, p := range m.pipelines {
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		result = append(result, clonePipeline(p))
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// CreateDependency persists a dependency edge.
func (m *Store) CreateDependency(_ context.Context, e *pipeline.DependencyEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *e
	m.edges = append(m.edges, &cp)
	return nil
}

// ListDependents returns every edge whose prerequisite is the given
// job.
func (m *Store) ListDependents(_ context.Context, dependsOnJobID id.ID) ([]*pipeline.DependencyEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*pipeline.DependencyEdge
	for _, e := range m.edges {
		if e.DependsOnJobID == dependsOnJobID {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

// ListPrerequisites returns every edge the given job waits on.
func (m *Store) ListPrerequisites(_ context.Context, jobID id.ID) ([]*pipeline.DependencyEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*pipeline.DependencyEdge
	for _, e := range m.edges {
		if e.JobID == jobID {
			cp := *e
			result = append(result, &cp)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Cron store
// ──────────────────────────────────────────────────

// CreateEntry persists a new cron entry.
func (m *Store) CreateEntry(_ context.Context, entry *cron.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.crons {
		if existing.Name == entry.Name {
			return cascade.ErrDuplicateCron
		}
	}
	m.crons[entry.ID.String()] = cloneEntry(entry)
	return nil
}

// GetEntry retrieves a cron entry by ID.
func (m *Store) GetEntry(_ context.Context, entryID id.ID) (*cron.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.crons[entryID.String()]
	if !ok {
		return nil, cascade.ErrCronNotFound
	}
	return cloneEntry(e), nil
}

// ListEntries returns all cron entries.
func (m *Store) ListEntries(_ context.Context) ([]*cron.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*cron.Entry, 0, len(m.crons))
	for _, e := range m.crons {
		result = append(result, cloneEntry(e))
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].Name < result[k].Name
	})
	return result, nil
}

// UpdateEntry persists changes to a cron entry.
func (m *Store) UpdateEntry(_ context.Context, entry *cron.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entry.ID.String()
	if _, ok := m.crons[key]; !ok {
		return cascade.ErrCronNotFound
	}
	cp := cloneEntry(entry)
	cp.UpdatedAt = time.Now().UTC()
	m.crons[key] = cp
	return nil
}

// DeleteEntry removes a cron entry by ID.
func (m *Store) DeleteEntry(_ context.Context, entryID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryID.String()
	if _, ok := m.crons[key]; !ok {
		return cascade.ErrCronNotFound
	}
	delete(m.crons, key)
	return nil
}

// AcquireEntryLock takes the per-entry lock if free or expired.
func (m *Store) AcquireEntryLock(_ context.Context, entryID id.ID, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.crons[entryID.String()]
	if !ok {
		return false, cascade.ErrCronNotFound
	}

	now := time.Now().UTC()
	if e.LockedBy != "" && e.LockedBy != owner && e.LockedUntil != nil && e.LockedUntil.After(now) {
		return false, nil
	}
	until := now.Add(ttl)
	e.LockedBy = owner
	e.LockedUntil = &until
	return true, nil
}

// ReleaseEntryLock releases the per-entry lock if owner holds it.
func (m *Store) ReleaseEntryLock(_ context.Context, entryID id.ID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.crons[entryID.String()]
	if !ok {
		return cascade.ErrCronNotFound
	}
	if e.LockedBy == owner {
		e.LockedBy = ""
		e.LockedUntil = nil
	}
	return nil
}

// MarkEntryRun records a fire.
func (m *Store) MarkEntryRun(_ context.Context, entryID id.ID, at, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.crons[entryID.String()]
	if !ok {
		return cascade.ErrCronNotFound
	}
	atCp, nextCp := at, next
	e.LastRunAt = &atCp
	e.NextRunAt = &nextCp
	e.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// Clone helpers
// ──────────────────────────────────────────────────

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneJob(j *job.Job) *job.Job {
	cp := *j
	cp.Params = cloneMap(j.Params)
	cp.Metadata = cloneMap(j.Metadata)
	cp.ErrorDetails = cloneMap(j.ErrorDetails)
	return &cp
}

func clonePipeline(p *pipeline.Pipeline) *pipeline.Pipeline {
	cp := *p
	return &cp
}

func cloneEntry(e *cron.Entry) *cron.Entry {
	cp := *e
	cp.Params = cloneMap(e.Params)
	return &cp
}
