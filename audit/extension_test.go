package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/cascade/audit"
	"github.com/xraph/cascade/hook"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/pipeline"
)

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
	err    error
}

func (m *mockRecorder) Record(_ context.Context, evt *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return m.err
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

func testJob() *job.Job {
	j := job.New("ingest", "create_variants", map[string]any{"source": "upload"}, job.Options{MaxRetries: 3})
	j.CorrelationID = "corr-123"
	return j
}

func TestJobLifecycleEvents(t *testing.T) {
	rec := &mockRecorder{}
	ext := audit.New(rec)
	ctx := context.Background()
	j := testJob()

	if err := ext.OnJobQueued(ctx, j); err != nil {
		t.Fatalf("OnJobQueued: %v", err)
	}
	if err := ext.OnJobSucceeded(ctx, j, 250*time.Millisecond); err != nil {
		t.Fatalf("OnJobSucceeded: %v", err)
	}
	if err := ext.OnJobFailed(ctx, j, errors.New("mapping service unavailable")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}

	queued := rec.findByAction(audit.ActionJobQueued)
	if queued == nil {
		t.Fatal("no job.queued event recorded")
	}
	if queued.Severity != audit.SeverityInfo || queued.Outcome != audit.OutcomeSuccess {
		t.Errorf("queued severity/outcome: %s/%s", queued.Severity, queued.Outcome)
	}
	if queued.ResourceID != j.ID.String() || queued.CorrelationID != "corr-123" {
		t.Errorf("queued identity: %s %s", queued.ResourceID, queued.CorrelationID)
	}
	if queued.Metadata["job_function"] != "create_variants" {
		t.Errorf("queued metadata: %v", queued.Metadata)
	}

	succeeded := rec.findByAction(audit.ActionJobSucceeded)
	if succeeded == nil || succeeded.Metadata["elapsed_ms"] != int64(250) {
		t.Errorf("succeeded event: %+v", succeeded)
	}

	failed := rec.findByAction(audit.ActionJobFailed)
	if failed == nil {
		t.Fatal("no job.failed event recorded")
	}
	if failed.Severity != audit.SeverityCritical || failed.Outcome != audit.OutcomeFailure {
		t.Errorf("failed severity/outcome: %s/%s", failed.Severity, failed.Outcome)
	}
	if failed.Reason != "mapping service unavailable" {
		t.Errorf("failed reason: %q", failed.Reason)
	}
}

func TestPipelineStatusSeverity(t *testing.T) {
	rec := &mockRecorder{}
	ext := audit.New(rec)
	ctx := context.Background()

	p := pipeline.New("score-set-ingest", "")
	p.Status = pipeline.StatusRunning
	if err := ext.OnPipelineStatusChanged(ctx, p); err != nil {
		t.Fatalf("OnPipelineStatusChanged: %v", err)
	}
	p.Status = pipeline.StatusFailed
	if err := ext.OnPipelineStatusChanged(ctx, p); err != nil {
		t.Fatalf("OnPipelineStatusChanged: %v", err)
	}

	if rec.count() != 2 {
		t.Fatalf("got %d events, want 2", rec.count())
	}
	running, failed := rec.events[0], rec.events[1]
	if running.Severity != audit.SeverityInfo {
		t.Errorf("running severity: %s", running.Severity)
	}
	if failed.Severity != audit.SeverityCritical || failed.Metadata["status"] != "FAILED" {
		t.Errorf("failed event: %+v", failed)
	}
}

func TestWithActionsFilters(t *testing.T) {
	rec := &mockRecorder{}
	ext := audit.New(rec, audit.WithActions(audit.ActionJobFailed))
	ctx := context.Background()
	j := testJob()

	_ = ext.OnJobQueued(ctx, j)
	_ = ext.OnJobStarted(ctx, j)
	_ = ext.OnJobFailed(ctx, j, errors.New("boom"))

	if rec.count() != 1 {
		t.Fatalf("got %d events, want 1", rec.count())
	}
	if rec.events[0].Action != audit.ActionJobFailed {
		t.Errorf("wrong action passed filter: %s", rec.events[0].Action)
	}
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	rec := &mockRecorder{err: errors.New("backend down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ext := audit.New(rec, audit.WithLogger(logger))

	if err := ext.OnJobQueued(context.Background(), testJob()); err != nil {
		t.Fatalf("recorder error leaked: %v", err)
	}
}

func TestCronFired(t *testing.T) {
	rec := &mockRecorder{}
	ext := audit.New(rec)
	jobID := id.NewJobID()

	if err := ext.OnCronFired(context.Background(), "nightly-report", jobID); err != nil {
		t.Fatalf("OnCronFired: %v", err)
	}

	evt := rec.findByAction(audit.ActionCronFired)
	if evt == nil || evt.ResourceID != "nightly-report" || evt.Metadata["job_id"] != jobID.String() {
		t.Errorf("cron event: %+v", evt)
	}
}

func TestRegistersWithHookRegistry(t *testing.T) {
	rec := &mockRecorder{}
	reg := hook.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg.Register(audit.New(rec))

	reg.EmitJobQueued(context.Background(), testJob())

	if rec.count() != 1 {
		t.Fatalf("got %d events through registry, want 1", rec.count())
	}
}
