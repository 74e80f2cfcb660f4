package job_test

import (
	"context"
	"sync"
	"testing"

	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
)

// progressStore records progress and metadata writes; the other Store
// methods are unused by the Manager under test.
type progressStore struct {
	mu       sync.Mutex
	progress job.Progress
	meta     map[string]any
}

func (s *progressStore) CreateJob(context.Context, *job.Job) error { return nil }
func (s *progressStore) GetJob(context.Context, id.ID) (*job.Job, error) {
	return &job.Job{}, nil
}
func (s *progressStore) UpdateJob(context.Context, *job.Job) error { return nil }
func (s *progressStore) TransitionJob(context.Context, id.ID, []job.Status, job.Status, func(*job.Job)) (*job.Job, error) {
	return nil, nil
}
func (s *progressStore) MergeJobParams(context.Context, id.ID, map[string]any) error { return nil }
func (s *progressStore) MergeJobMetadata(_ context.Context, _ id.ID, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		s.meta = make(map[string]any)
	}
	for k, v := range meta {
		s.meta[k] = v
	}
	return nil
}
func (s *progressStore) UpdateJobProgress(_ context.Context, _ id.ID, current, total int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = job.Progress{Current: current, Total: total, Message: message}
	return nil
}
func (s *progressStore) ListJobsByPipeline(context.Context, id.ID) ([]*job.Job, error) {
	return nil, nil
}
func (s *progressStore) ListJobsByStatus(context.Context, job.Status, job.ListOpts) ([]*job.Job, error) {
	return nil, nil
}
func (s *progressStore) CountJobs(context.Context, job.CountOpts) (int64, error) { return 0, nil }

type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []id.ID
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, jobID id.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, jobID)
	return nil
}

func TestManagerUpdateProgress(t *testing.T) {
	t.Parallel()

	store := &progressStore{}
	m := job.NewManager(store, &recordingEnqueuer{}, id.NewJobID(), nil)
	ctx := context.Background()

	if err := m.UpdateProgress(ctx, 10, 100, "ingesting"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if store.progress.Current != 10 || store.progress.Total != 100 {
		t.Fatalf("progress = %+v, want 10/100", store.progress)
	}
	if store.progress.Message != "ingesting" {
		t.Fatalf("message = %q, want %q", store.progress.Message, "ingesting")
	}
}

func TestManagerProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	store := &progressStore{}
	m := job.NewManager(store, &recordingEnqueuer{}, id.NewJobID(), nil)
	ctx := context.Background()

	if err := m.UpdateProgress(ctx, 50, 100, "halfway"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	// A lower value must clamp to the previous high-water mark.
	if err := m.UpdateProgress(ctx, 20, 100, "rewound"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if store.progress.Current != 50 {
		t.Fatalf("Current = %d, want 50 (no backsliding)", store.progress.Current)
	}
	if store.progress.Message != "rewound" {
		t.Fatalf("message not updated: %q", store.progress.Message)
	}
}

func TestManagerIncrementAndMessage(t *testing.T) {
	t.Parallel()

	store := &progressStore{}
	m := job.NewManager(store, &recordingEnqueuer{}, id.NewJobID(), nil)
	ctx := context.Background()

	if err := m.UpdateProgress(ctx, 1, 10, "start"); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := m.IncrementProgress(ctx, 3); err != nil {
		t.Fatalf("IncrementProgress: %v", err)
	}
	if store.progress.Current != 4 || store.progress.Total != 10 {
		t.Fatalf("progress = %+v, want 4/10", store.progress)
	}

	if err := m.SetMessage(ctx, "resolving identifiers"); err != nil {
		t.Fatalf("SetMessage: %v", err)
	}
	if store.progress.Current != 4 {
		t.Fatalf("SetMessage moved progress: %+v", store.progress)
	}
	if store.progress.Message != "resolving identifiers" {
		t.Fatalf("message = %q", store.progress.Message)
	}
}

func TestManagerMergeMetadataAndEnqueue(t *testing.T) {
	t.Parallel()

	store := &progressStore{}
	enq := &recordingEnqueuer{}
	m := job.NewManager(store, enq, id.NewJobID(), nil)
	ctx := context.Background()

	if err := m.MergeMetadata(ctx, map[string]any{"mapped_count": 7}); err != nil {
		t.Fatalf("MergeMetadata: %v", err)
	}
	if store.meta["mapped_count"] != 7 {
		t.Fatalf("meta = %v", store.meta)
	}

	child := id.NewJobID()
	if err := m.Enqueue(ctx, child); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(enq.ids) != 1 || enq.ids[0] != child {
		t.Fatalf("enqueued = %v, want [%v]", enq.ids, child)
	}
}
