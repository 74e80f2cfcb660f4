package worker_test

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/cascade/hook"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/pipeline"
	"github.com/xraph/cascade/queue"
	memqueue "github.com/xraph/cascade/queue/memory"
	"github.com/xraph/cascade/store/memory"
	"github.com/xraph/cascade/worker"
)

type poolFixture struct {
	store    *memory.Store
	queue    *memqueue.Queue
	registry *job.Registry
	executor *worker.Executor
}

func newPoolFixture(t *testing.T) *poolFixture {
	t.Helper()

	s := memory.New()
	q := memqueue.New(64)
	t.Cleanup(func() { q.Close() })

	reg := job.NewRegistry()
	resolver := pipeline.NewResolver(s, s, q, nil, nil)
	coordinator := pipeline.NewCoordinator(s, s, nil, nil)
	exec := worker.NewExecutor(reg, s, q, resolver, coordinator,
		hook.NewRegistry(slog.Default()), nil,
		func(int) time.Duration { return time.Millisecond },
		id.NewWorkerID(), slog.Default())

	return &poolFixture{store: s, queue: q, registry: reg, executor: exec}
}

func (f *poolFixture) submit(t *testing.T, function string) *job.Job {
	t.Helper()
	ctx := context.Background()
	j := job.New(function, function, nil, job.DefaultOptions())
	j.Status = job.StatusQueued
	if err := f.store.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := f.queue.Enqueue(ctx, j.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return j
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPoolExecutesDeliveries(t *testing.T) {
	t.Parallel()

	f := newPoolFixture(t)
	ctx := context.Background()

	var ran atomic.Int64
	job.Register(f.registry, job.NewDefinition("count",
		func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
			ran.Add(1)
			return job.OK(nil), nil
		}))

	pool := worker.NewPool(f.queue, f.executor, slog.Default(), worker.WithPoolConcurrency(3))
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	const n = 10
	jobs := make([]*job.Job, 0, n)
	for range n {
		jobs = append(jobs, f.submit(t, "count"))
	}

	waitFor(t, func() bool { return ran.Load() == n })

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for _, j := range jobs {
		got, err := f.store.GetJob(ctx, j.ID)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if got.Status != job.StatusSucceeded {
			t.Fatalf("job %s = %s, want SUCCEEDED", got.ID, got.Status)
		}
	}
}

func TestPoolRetriesThroughQueue(t *testing.T) {
	t.Parallel()

	f := newPoolFixture(t)
	ctx := context.Background()

	// Fails twice, then succeeds. The retry re-enters through the
	// delayed queue, so success proves the full loop works.
	var attempts atomic.Int64
	job.Register(f.registry, job.NewDefinition("third-time",
		func(_ context.Context, _ *job.Manager, _ struct{}) (*job.Result, error) {
			if attempts.Add(1) < 3 {
				return nil, context.DeadlineExceeded
			}
			return job.OK(nil), nil
		}))

	pool := worker.NewPool(f.queue, f.executor, slog.Default(), worker.WithPoolConcurrency(1))
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer pool.Stop(ctx) //nolint:errcheck

	j := f.submit(t, "third-time")

	waitFor(t, func() bool {
		got, err := f.store.GetJob(ctx, j.ID)
		return err == nil && got.Status == job.StatusSucceeded
	})

	final, _ := f.store.GetJob(ctx, j.ID)
	if final.RetryCount != 2 {
		t.Fatalf("RetryCount = %d, want 2", final.RetryCount)
	}
}

func TestPoolStopIsIdempotentAndUnblocks(t *testing.T) {
	t.Parallel()

	f := newPoolFixture(t)
	ctx := context.Background()

	pool := worker.NewPool(f.queue, f.executor, slog.Default(),
		worker.WithPoolConcurrency(2),
		worker.WithLimiter(queue.NewLimiter(2, 0, 0)))
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := pool.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestPoolWorkerID(t *testing.T) {
	t.Parallel()

	f := newPoolFixture(t)
	wid := id.NewWorkerID()
	pool := worker.NewPool(f.queue, f.executor, slog.Default(), worker.WithWorkerID(wid))
	if pool.WorkerID() != wid {
		t.Fatalf("WorkerID = %s", pool.WorkerID())
	}
}
