package job

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xraph/cascade/id"
)

// Enqueuer is the slice of the queue contract the Manager needs: job
// bodies may submit further work (e.g. sub-jobs they spawned records
// for) without holding the full queue handle.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID id.ID) error
}

// Manager is the per-execution context handed to a running job body.
// It bundles persistence access, queue access, and progress reporting
// for exactly one job. Constructed by the execution wrapper, one per
// invocation, never shared between jobs.
type Manager struct {
	store  Store
	queue  Enqueuer
	jobID  id.ID
	logger *slog.Logger

	mu       sync.Mutex
	progress Progress
}

// NewManager creates a manager bound to the job currently executing.
func NewManager(store Store, queue Enqueuer, jobID id.ID, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		queue:  queue,
		jobID:  jobID,
		logger: logger.With(slog.String("job_id", jobID.String())),
	}
}

// JobID returns the ID of the executing job.
func (m *Manager) JobID() id.ID { return m.jobID }

// Logger returns a logger pre-scoped to the executing job.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// Job re-reads the executing job's current record.
func (m *Manager) Job(ctx context.Context) (*Job, error) {
	return m.store.GetJob(ctx, m.jobID)
}

// UpdateProgress durably records a monotonically non-decreasing
// progress indicator and a human-readable status line against the job,
// without altering its status. Persistence failures propagate to the
// caller.
func (m *Manager) UpdateProgress(ctx context.Context, current, total int64, message string) error {
	m.mu.Lock()
	if current < m.progress.Current {
		current = m.progress.Current
	}
	m.progress = Progress{Current: current, Total: total, Message: message}
	m.mu.Unlock()

	return m.store.UpdateJobProgress(ctx, m.jobID, current, total, message)
}

// IncrementProgress advances progress by delta, keeping total and
// message.
func (m *Manager) IncrementProgress(ctx context.Context, delta int64) error {
	m.mu.Lock()
	p := m.progress
	m.mu.Unlock()
	return m.UpdateProgress(ctx, p.Current+delta, p.Total, p.Message)
}

// SetMessage updates the human-readable status line, keeping the
// current counters.
func (m *Manager) SetMessage(ctx context.Context, message string) error {
	m.mu.Lock()
	p := m.progress
	m.mu.Unlock()
	return m.UpdateProgress(ctx, p.Current, p.Total, message)
}

// MergeMetadata merges meta into the executing job's metadata map.
func (m *Manager) MergeMetadata(ctx context.Context, meta map[string]any) error {
	return m.store.MergeJobMetadata(ctx, m.jobID, meta)
}

// Enqueue submits another job for asynchronous pickup.
func (m *Manager) Enqueue(ctx context.Context, jobID id.ID) error {
	return m.queue.Enqueue(ctx, jobID)
}
