package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/alert"
	"github.com/xraph/cascade/backoff"
	"github.com/xraph/cascade/cron"
	"github.com/xraph/cascade/hook"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
	mw "github.com/xraph/cascade/middleware"
	"github.com/xraph/cascade/pipeline"
	"github.com/xraph/cascade/queue"
	"github.com/xraph/cascade/worker"
)

// Engine wraps an Orchestrator with typed subsystem access. Use
// Build() to create one.
type Engine struct {
	o        *cascade.Orchestrator
	hooks    *hook.Registry
	registry *job.Registry

	jobs      job.Store
	pipelines pipeline.Store
	crons     cron.Store
	queue     queue.Queue

	resolver    *pipeline.Resolver
	coordinator *pipeline.Coordinator
	pool        *worker.Pool
	scheduler   *cron.Scheduler

	alerts alert.Sink
	bo     backoff.Strategy
	mws    []mw.Middleware
	logger *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers a lifecycle extension with the engine.
func WithExtension(e hook.Extension) Option {
	return func(eng *Engine) {
		eng.hooks.Register(e)
	}
}

// WithMiddleware appends middleware to the engine's execution chain,
// inside the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy. If not set,
// backoff.Default() (exponential with full jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithAlertSink sets the operator alert sink for terminal job failures
// and failed pipelines. If not set, alerts are logged only.
func WithAlertSink(s alert.Sink) Option {
	return func(eng *Engine) {
		eng.alerts = s
	}
}

// WithTracerProvider sets a custom OTel TracerProvider. When set, the
// tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, the
// metrics middleware uses this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an Orchestrator. The Orchestrator's
// store must implement job.Store, pipeline.Store, and cron.Store, and
// its queue must implement queue.Queue.
func Build(o *cascade.Orchestrator, opts ...Option) (*Engine, error) {
	logger := o.Logger()

	store := o.Store()
	if store == nil {
		return nil, cascade.ErrNoStore
	}
	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("cascade: store does not implement job.Store")
	}
	ps, ok := store.(pipeline.Store)
	if !ok {
		return nil, fmt.Errorf("cascade: store does not implement pipeline.Store")
	}
	cs, ok := store.(cron.Store)
	if !ok {
		return nil, fmt.Errorf("cascade: store does not implement cron.Store")
	}

	if o.Queue() == nil {
		return nil, cascade.ErrNoQueue
	}
	q, ok := o.Queue().(queue.Queue)
	if !ok {
		return nil, fmt.Errorf("cascade: transport does not implement queue.Queue")
	}

	eng := &Engine{
		o:         o,
		hooks:     hook.NewRegistry(logger),
		registry:  job.NewRegistry(),
		jobs:      js,
		pipelines: ps,
		crons:     cs,
		queue:     q,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		eng.bo = backoff.Default()
	}
	if eng.alerts == nil {
		eng.alerts = alert.NewLogSink(logger)
	}
	eng.hooks.Register(alert.NewExtension(eng.alerts, logger))

	// hook.Registry satisfies pipeline.Emitter and cron.Emitter
	// structurally, so the subsystems get lifecycle events without
	// importing the hook package.
	eng.resolver = pipeline.NewResolver(js, ps, q, eng.hooks, logger)
	eng.coordinator = pipeline.NewCoordinator(js, ps, eng.hooks, logger)

	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/cascade"))
	} else {
		tracingMw = mw.Tracing()
	}
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/cascade"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default stack: recover → tracing → metrics → logging →
	// correlation → timeout, then user middleware.
	allMws := append([]mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Correlation(),
		mw.Timeout(logger),
	}, eng.mws...)

	cfg := o.Config()
	workerID := id.NewWorkerID()
	executor := worker.NewExecutor(eng.registry, js, q, eng.resolver, eng.coordinator,
		eng.hooks, eng.alerts, eng.bo, workerID, logger, allMws...)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(cfg.Concurrency),
		worker.WithWorkerID(workerID),
	}
	if cfg.RateLimit > 0 || cfg.Concurrency > 0 {
		poolOpts = append(poolOpts,
			worker.WithLimiter(queue.NewLimiter(cfg.Concurrency, cfg.RateLimit, cfg.RateBurst)))
	}
	eng.pool = worker.NewPool(q, executor, logger, poolOpts...)

	createJob := func(ctx context.Context, function string, params map[string]any) (id.ID, error) {
		j, err := eng.CreateJob(ctx, function, params)
		if err != nil {
			return id.Nil, err
		}
		return j.ID, nil
	}
	schedOpts := []cron.SchedulerOption{}
	if cfg.CronTickInterval > 0 {
		schedOpts = append(schedOpts, cron.WithTickInterval(cfg.CronTickInterval))
	}
	eng.scheduler = cron.NewScheduler(cs, createJob, eng.hooks, workerID.String(), logger, schedOpts...)

	o.AddRunner(eng.pool)
	o.AddRunner(eng.scheduler)
	o.SetHooks(eng.hooks)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T any](eng *Engine, def *job.Definition[T]) {
	// Definitions that left the retry budget alone inherit the
	// orchestrator's configured default.
	if d := eng.o.Config().DefaultMaxRetries; d > 0 && !def.Opts.MaxRetriesSet() {
		def.Opts.MaxRetries = d
	}
	job.Register(eng.registry, def)
}

// Submit creates and queues a job with typed params.
func Submit[T any](ctx context.Context, eng *Engine, function string, params T) (*job.Job, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("cascade: marshal params for %q: %w", function, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("cascade: params for %q are not an object: %w", function, err)
	}
	return eng.CreateJob(ctx, function, m)
}

// CreateJob creates an independent job and queues it immediately. The
// job's retry budget, priority, and timeout come from the registered
// definition; the correlation ID comes from ctx, minted fresh when
// absent.
func (eng *Engine) CreateJob(ctx context.Context, function string, params map[string]any) (*job.Job, error) {
	opts, ok := eng.registry.Options(function)
	if !ok {
		return nil, fmt.Errorf("%w: %s", cascade.ErrNoHandler, function)
	}

	ctx, correlationID := cascade.EnsureCorrelationID(ctx)

	j := job.New(opts.Type, function, params, opts)
	j.CorrelationID = correlationID

	if err := eng.jobs.CreateJob(ctx, j); err != nil {
		return nil, fmt.Errorf("cascade: create job %q: %w", function, err)
	}
	return eng.queueJob(ctx, j.ID)
}

// CreatePipeline validates and persists a pipeline graph without
// starting it. Run-scoped params and correlation come in through build
// options; per-function options are resolved against the registry.
func (eng *Engine) CreatePipeline(ctx context.Context, spec pipeline.Spec, buildOpts ...pipeline.BuildOption) (*pipeline.Graph, error) {
	ctx, correlationID := cascade.EnsureCorrelationID(ctx)

	buildOpts = append([]pipeline.BuildOption{
		pipeline.WithCorrelationID(correlationID),
		pipeline.WithOptionsLookup(eng.registry.Options),
	}, buildOpts...)

	g, err := pipeline.Build(spec, buildOpts...)
	if err != nil {
		return nil, err
	}

	if err := eng.pipelines.CreatePipeline(ctx, g.Pipeline); err != nil {
		return nil, fmt.Errorf("cascade: create pipeline %q: %w", spec.Name, err)
	}
	for _, j := range g.Jobs {
		if err := eng.jobs.CreateJob(ctx, j); err != nil {
			return nil, fmt.Errorf("cascade: create pipeline job %q: %w", j.JobFunction, err)
		}
	}
	for _, e := range g.Edges {
		if err := eng.pipelines.CreateDependency(ctx, e); err != nil {
			return nil, fmt.Errorf("cascade: create dependency edge: %w", err)
		}
	}

	eng.logger.InfoContext(ctx, "pipeline created",
		slog.String("pipeline_id", g.Pipeline.ID.String()),
		slog.String("name", g.Pipeline.Name),
		slog.Int("jobs", len(g.Jobs)),
		slog.String("correlation_id", correlationID))
	return g, nil
}

// StartPipeline queues every root job of a persisted pipeline, that
// is, the members with no prerequisite edges. Safe to call twice: roots
// already queued lose the conditional transition and are left alone.
func (eng *Engine) StartPipeline(ctx context.Context, pipelineID id.ID) error {
	members, err := eng.jobs.ListJobsByPipeline(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("cascade: list jobs of %s: %w", pipelineID, err)
	}
	if len(members) == 0 {
		return cascade.ErrPipelineNotFound
	}

	var errs []error
	for _, j := range members {
		prereqs, err := eng.pipelines.ListPrerequisites(ctx, j.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(prereqs) > 0 {
			continue
		}
		if _, err := eng.queueJob(ctx, j.ID); err != nil && !errors.Is(err, cascade.ErrInvalidTransition) {
			errs = append(errs, err)
		}
	}

	if _, err := eng.coordinator.Recompute(ctx, pipelineID); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunPipeline creates a pipeline and starts it in one call.
func (eng *Engine) RunPipeline(ctx context.Context, spec pipeline.Spec, buildOpts ...pipeline.BuildOption) (*pipeline.Graph, error) {
	g, err := eng.CreatePipeline(ctx, spec, buildOpts...)
	if err != nil {
		return nil, err
	}
	if err := eng.StartPipeline(ctx, g.Pipeline.ID); err != nil {
		return nil, err
	}
	return g, nil
}

// RegisterCron validates the schedule, stamps the first NextRunAt, and
// persists a cron entry that creates a job from function and params on
// each fire. Re-registration of the same name is idempotent.
func (eng *Engine) RegisterCron(ctx context.Context, name, schedule, function string, params map[string]any) error {
	sched, err := cron.ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("cascade: invalid cron schedule %q: %w", schedule, err)
	}
	if _, ok := eng.registry.Options(function); !ok {
		return fmt.Errorf("%w: %s", cascade.ErrNoHandler, function)
	}

	entry := cron.NewEntry(name, schedule, function, params)
	next := sched.Next(time.Now().UTC())
	entry.NextRunAt = &next

	if err := eng.crons.CreateEntry(ctx, entry); err != nil {
		if errors.Is(err, cascade.ErrDuplicateCron) {
			return nil
		}
		return fmt.Errorf("cascade: register cron %q: %w", name, err)
	}

	eng.logger.InfoContext(ctx, "cron registered",
		slog.String("name", name),
		slog.String("schedule", schedule),
		slog.String("function", function),
		slog.Time("next_run_at", next))
	return nil
}

// queueJob commits the PENDING→QUEUED transition and then submits the
// job to the queue, strictly in that order.
func (eng *Engine) queueJob(ctx context.Context, jobID id.ID) (*job.Job, error) {
	queued, err := eng.jobs.TransitionJob(ctx, jobID, []job.Status{job.StatusPending}, job.StatusQueued, nil)
	if err != nil {
		return queued, err
	}
	if err := eng.queue.Enqueue(ctx, queued.ID); err != nil {
		return nil, fmt.Errorf("cascade: enqueue job %s: %w", queued.ID, err)
	}
	eng.hooks.EmitJobQueued(ctx, queued)
	return queued, nil
}

// GetJob retrieves a job by ID.
func (eng *Engine) GetJob(ctx context.Context, jobID id.ID) (*job.Job, error) {
	return eng.jobs.GetJob(ctx, jobID)
}

// GetPipeline retrieves a pipeline by ID.
func (eng *Engine) GetPipeline(ctx context.Context, pipelineID id.ID) (*pipeline.Pipeline, error) {
	return eng.pipelines.GetPipeline(ctx, pipelineID)
}

// PipelineJobs returns a pipeline's member jobs.
func (eng *Engine) PipelineJobs(ctx context.Context, pipelineID id.ID) ([]*job.Job, error) {
	return eng.jobs.ListJobsByPipeline(ctx, pipelineID)
}

// Start begins job processing and cron scheduling.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.o.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (eng *Engine) Stop(ctx context.Context) error {
	return eng.o.Stop(ctx)
}

// Hooks returns the extension registry.
func (eng *Engine) Hooks() *hook.Registry { return eng.hooks }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Orchestrator returns the underlying Orchestrator.
func (eng *Engine) Orchestrator() *cascade.Orchestrator { return eng.o }

// Resolver returns the dependency resolver.
func (eng *Engine) Resolver() *pipeline.Resolver { return eng.resolver }

// Coordinator returns the pipeline status coordinator.
func (eng *Engine) Coordinator() *pipeline.Coordinator { return eng.coordinator }

// Scheduler returns the cron scheduler.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }
