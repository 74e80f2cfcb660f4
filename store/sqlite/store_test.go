package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/cron"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func newJob(t *testing.T, s *sqlite.Store, status job.Status) *job.Job {
	t.Helper()
	j := job.New("ingest", "create_variants", map[string]any{"source": "upload"}, job.Options{MaxRetries: 3})
	j.Status = status
	if err := s.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return j
}

func TestCreateAndGetJob(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	j := newJob(t, s, job.StatusPending)

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ID != j.ID || got.JobFunction != "create_variants" {
		t.Errorf("got %s %s, want %s create_variants", got.ID, got.JobFunction, j.ID)
	}
	if got.Params["source"] != "upload" {
		t.Errorf("params not round-tripped: %v", got.Params)
	}

	if err := s.CreateJob(ctx, j); !errors.Is(err, cascade.ErrJobAlreadyExists) {
		t.Errorf("duplicate create: got %v, want ErrJobAlreadyExists", err)
	}
	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, cascade.ErrJobNotFound) {
		t.Errorf("missing job: got %v, want ErrJobNotFound", err)
	}
}

func TestTransitionJobGuard(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	j := newJob(t, s, job.StatusQueued)

	got, err := s.TransitionJob(ctx, j.ID, []job.Status{job.StatusQueued}, job.StatusRunning, func(r *job.Job) {
		r.WorkerID = id.NewWorkerID()
	})
	if err != nil {
		t.Fatalf("TransitionJob: %v", err)
	}
	if got.Status != job.StatusRunning || got.StartedAt == nil || got.WorkerID.IsNil() {
		t.Errorf("transition not applied: %+v", got)
	}

	// A redelivered claim must lose the guard and leave the row alone.
	again, err := s.TransitionJob(ctx, j.ID, []job.Status{job.StatusQueued}, job.StatusRunning, nil)
	if !errors.Is(err, cascade.ErrInvalidTransition) {
		t.Fatalf("redelivery: got %v, want ErrInvalidTransition", err)
	}
	if again.Status != job.StatusRunning {
		t.Errorf("redelivery changed status to %s", again.Status)
	}
}

func TestMergeJobParamsIsAdditive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	j := newJob(t, s, job.StatusPending)

	if err := s.MergeJobParams(ctx, j.ID, map[string]any{"score_set": "urn:1"}); err != nil {
		t.Fatalf("MergeJobParams: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Params["source"] != "upload" || got.Params["score_set"] != "urn:1" {
		t.Errorf("merge dropped keys: %v", got.Params)
	}
}

func TestUpdateJobProgressMonotonic(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	j := newJob(t, s, job.StatusRunning)

	if err := s.UpdateJobProgress(ctx, j.ID, 40, 100, "forty"); err != nil {
		t.Fatalf("UpdateJobProgress: %v", err)
	}
	if err := s.UpdateJobProgress(ctx, j.ID, 10, 100, "ten"); err != nil {
		t.Fatalf("UpdateJobProgress: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Progress.Current != 40 {
		t.Errorf("progress moved backwards: %d", got.Progress.Current)
	}
	if got.Progress.Message != "ten" {
		t.Errorf("message not updated: %q", got.Progress.Message)
	}
}

func TestCronEntryLockLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	e := cron.NewEntry("nightly-report", "0 3 * * *", "generate_report", nil)
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	dup := cron.NewEntry("nightly-report", "0 4 * * *", "generate_report", nil)
	if err := s.CreateEntry(ctx, dup); !errors.Is(err, cascade.ErrDuplicateCron) {
		t.Errorf("duplicate name: got %v, want ErrDuplicateCron", err)
	}

	ok, err := s.AcquireEntryLock(ctx, e.ID, "wkr-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = s.AcquireEntryLock(ctx, e.ID, "wkr-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("contended acquire: ok=%v err=%v", ok, err)
	}

	if err := s.ReleaseEntryLock(ctx, e.ID, "wkr-a"); err != nil {
		t.Fatalf("ReleaseEntryLock: %v", err)
	}
	ok, err = s.AcquireEntryLock(ctx, e.ID, "wkr-b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}

	now := time.Now().UTC()
	next := now.Add(24 * time.Hour)
	if err := s.MarkEntryRun(ctx, e.ID, now, next); err != nil {
		t.Fatalf("MarkEntryRun: %v", err)
	}
	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.LastRunAt == nil || got.NextRunAt == nil {
		t.Fatalf("run not recorded: %+v", got)
	}
}
