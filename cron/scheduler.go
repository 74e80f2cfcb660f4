package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/cascade/id"
)

// CreateFunc is the callback the scheduler uses to create and enqueue
// a job on each fire. The engine provides the implementation; the
// callback breaks the import cycle between cron and engine.
type CreateFunc func(ctx context.Context, function string, params map[string]any) (id.ID, error)

// Emitter emits cron lifecycle events. hook.Registry satisfies this
// interface.
type Emitter interface {
	EmitCronFired(ctx context.Context, entryName string, jobID id.ID)
}

// cronParser supports standard 5-field cron and descriptors such as
// "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression. Exported for use by the
// engine when registering entries, so NextRunAt can be stamped up
// front.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due
// entries (default 30s).
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLockTTL sets the TTL for per-entry locks (default 30s).
func WithLockTTL(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.lockTTL = d }
}

// WithFireConcurrency caps how many due entries fire in parallel per
// tick (default 4).
func WithFireConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) { s.fireConcurrency = n }
}

// Scheduler fires due cron entries on a tick loop. Several instances
// may run against the same store; the per-entry lock guarantees each
// due entry creates exactly one job per fire.
type Scheduler struct {
	store   Store
	create  CreateFunc
	emitter Emitter
	owner   string
	logger  *slog.Logger

	tickInterval    time.Duration
	lockTTL         time.Duration
	fireConcurrency int

	parsedMu sync.RWMutex
	parsed   map[string]cronlib.Schedule

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. owner identifies this instance in
// entry locks, typically a worker ID.
func NewScheduler(store Store, create CreateFunc, emitter Emitter, owner string, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:           store,
		create:          create,
		emitter:         emitter,
		owner:           owner,
		logger:          logger,
		tickInterval:    30 * time.Second,
		lockTTL:         30 * time.Second,
		fireConcurrency: 4,
		parsed:          make(map[string]cronlib.Schedule),
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the tick goroutine.
func (s *Scheduler) Start(_ context.Context) error {
	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("cron scheduler started",
		slog.String("owner", s.owner),
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for the loop to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Tick fires every enabled entry that is due. Exported so tests and
// embedded deployments can drive the scheduler without the loop.
func (s *Scheduler) Tick(ctx context.Context) {
	entries, err := s.store.ListEntries(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list cron entries error", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fireConcurrency)

	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		if entry.NextRunAt == nil || entry.NextRunAt.After(now) {
			continue
		}
		g.Go(func() error {
			s.fire(gctx, entry, now)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // fire logs its own errors
}

func (s *Scheduler) fire(ctx context.Context, entry *Entry, now time.Time) {
	acquired, err := s.store.AcquireEntryLock(ctx, entry.ID, s.owner, s.lockTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "acquire cron lock error",
			slog.String("cron_id", entry.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if !acquired {
		// Another scheduler instance got it.
		return
	}
	defer func() {
		if err := s.store.ReleaseEntryLock(ctx, entry.ID, s.owner); err != nil {
			s.logger.ErrorContext(ctx, "release cron lock error",
				slog.String("cron_id", entry.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	// Re-read under the lock: a concurrent instance may have fired the
	// entry between the list and the claim.
	entry, err = s.store.GetEntry(ctx, entry.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "reload cron entry error",
			slog.String("cron_id", entry.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if !entry.Enabled || entry.NextRunAt == nil || entry.NextRunAt.After(now) {
		return
	}

	jobID, err := s.create(ctx, entry.Function, entry.Params)
	if err != nil {
		s.logger.ErrorContext(ctx, "cron job create error",
			slog.String("cron_name", entry.Name),
			slog.String("function", entry.Function),
			slog.String("error", err.Error()),
		)
		return
	}

	sched, err := s.schedule(entry.Schedule)
	next := now.Add(s.tickInterval)
	if err != nil {
		s.logger.ErrorContext(ctx, "parse cron schedule error",
			slog.String("cron_name", entry.Name),
			slog.String("schedule", entry.Schedule),
			slog.String("error", err.Error()),
		)
	} else {
		next = sched.Next(now)
	}
	if err := s.store.MarkEntryRun(ctx, entry.ID, now, next); err != nil {
		s.logger.ErrorContext(ctx, "mark cron run error",
			slog.String("cron_id", entry.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	if s.emitter != nil {
		s.emitter.EmitCronFired(ctx, entry.Name, jobID)
	}
	s.logger.InfoContext(ctx, "cron fired",
		slog.String("cron_name", entry.Name),
		slog.String("function", entry.Function),
		slog.String("job_id", jobID.String()),
	)
}

// schedule caches parsed cron expressions.
func (s *Scheduler) schedule(expr string) (cronlib.Schedule, error) {
	s.parsedMu.RLock()
	sched, ok := s.parsed[expr]
	s.parsedMu.RUnlock()
	if ok {
		return sched, nil
	}

	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	s.parsedMu.Lock()
	s.parsed[expr] = sched
	s.parsedMu.Unlock()
	return sched, nil
}
