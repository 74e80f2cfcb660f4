package cron_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xraph/cascade/cron"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/store/memory"
)

// countingCreate records every job creation the scheduler requests.
type countingCreate struct {
	mu    sync.Mutex
	fires []string
}

func (c *countingCreate) create(_ context.Context, function string, _ map[string]any) (id.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fires = append(c.fires, function)
	return id.NewJobID(), nil
}

func (c *countingCreate) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fires)
}

type firedRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *firedRecorder) EmitCronFired(_ context.Context, entryName string, _ id.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, entryName)
}

func dueEntry(t *testing.T, s *memory.Store, name string) *cron.Entry {
	t.Helper()
	e := cron.NewEntry(name, "@every 1h", "refresh_stats", map[string]any{"scope": name})
	past := time.Now().UTC().Add(-time.Minute)
	e.NextRunAt = &past
	if err := s.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	return e
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"0 3 * * *", "*/5 * * * *", "@every 30m", "@hourly"} {
		if _, err := cron.ParseSchedule(expr); err != nil {
			t.Errorf("ParseSchedule(%q): %v", expr, err)
		}
	}
	if _, err := cron.ParseSchedule("not a schedule"); err == nil {
		t.Error("ParseSchedule accepted garbage")
	}
}

func TestTickFiresDueEntry(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	created := &countingCreate{}
	fired := &firedRecorder{}
	e := dueEntry(t, s, "nightly-refresh")

	sched := cron.NewScheduler(s, created.create, fired, "wkr-test", nil)
	sched.Tick(ctx)

	if created.count() != 1 {
		t.Fatalf("created %d jobs, want 1", created.count())
	}
	if len(fired.names) != 1 || fired.names[0] != "nightly-refresh" {
		t.Fatalf("fired = %v", fired.names)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.LastRunAt == nil {
		t.Fatal("LastRunAt not stamped")
	}
	if got.NextRunAt == nil || !got.NextRunAt.After(time.Now().UTC()) {
		t.Fatalf("NextRunAt not advanced: %v", got.NextRunAt)
	}

	// The entry is no longer due; a second tick must not fire it again.
	sched.Tick(ctx)
	if created.count() != 1 {
		t.Fatalf("entry fired again after NextRunAt advanced: %d", created.count())
	}
}

func TestTickSkipsDisabledAndNotDue(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	created := &countingCreate{}

	disabled := dueEntry(t, s, "disabled")
	disabled.Enabled = false
	if err := s.UpdateEntry(ctx, disabled); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}

	future := cron.NewEntry("future", "@every 1h", "refresh_stats", nil)
	later := time.Now().UTC().Add(time.Hour)
	future.NextRunAt = &later
	if err := s.CreateEntry(ctx, future); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	unstamped := cron.NewEntry("unstamped", "@every 1h", "refresh_stats", nil)
	if err := s.CreateEntry(ctx, unstamped); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	sched := cron.NewScheduler(s, created.create, nil, "wkr-test", nil)
	sched.Tick(ctx)

	if created.count() != 0 {
		t.Fatalf("created %d jobs, want 0", created.count())
	}
}

func TestTickFiresOncePerEntryAcrossInstances(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	created := &countingCreate{}
	dueEntry(t, s, "contended")

	a := cron.NewScheduler(s, created.create, nil, "wkr-a", nil)
	b := cron.NewScheduler(s, created.create, nil, "wkr-b", nil)

	var wg sync.WaitGroup
	for _, sched := range []*cron.Scheduler{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Tick(ctx)
		}()
	}
	wg.Wait()

	if created.count() != 1 {
		t.Fatalf("entry fired %d times across two instances, want 1", created.count())
	}
}

func TestTickHeldLockBlocksFire(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	created := &countingCreate{}
	e := dueEntry(t, s, "locked")

	if ok, err := s.AcquireEntryLock(ctx, e.ID, "other-instance", time.Minute); err != nil || !ok {
		t.Fatalf("pre-acquire: ok=%v err=%v", ok, err)
	}

	sched := cron.NewScheduler(s, created.create, nil, "wkr-test", nil)
	sched.Tick(ctx)

	if created.count() != 0 {
		t.Fatalf("fired %d times under a foreign lock, want 0", created.count())
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	created := &countingCreate{}
	dueEntry(t, s, "looped")

	sched := cron.NewScheduler(s, created.create, nil, "wkr-test", nil,
		cron.WithTickInterval(5*time.Millisecond))
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for created.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("tick loop never fired the due entry")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
