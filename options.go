package cascade

import (
	"context"
	"log/slog"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// Storer is the minimal store interface held by the Orchestrator.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Transport is the minimal queue interface held by the Orchestrator.
// The full Enqueuer/Consumer contracts live in the queue package.
type Transport interface {
	Close() error
}

// runner is an internal interface for component lifecycle (worker pool,
// cron scheduler).
type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// hookEmitter is an internal interface for shutdown notification.
type hookEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Orchestrator is the central coordinator for job processing, pipeline
// coordination, and cron scheduling.
//
// Create one with New() and functional options. The Orchestrator holds
// references to subsystem components via internal interfaces to avoid
// import cycles. Use engine.Build to wire everything together.
type Orchestrator struct {
	config Config
	logger *slog.Logger
	store  Storer
	queue  Transport
	hooks  hookEmitter

	runners []runner
	started bool
}

// New creates a new Orchestrator with the given options.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Logger returns the orchestrator's logger.
func (o *Orchestrator) Logger() *slog.Logger { return o.logger }

// Store returns the orchestrator's store.
func (o *Orchestrator) Store() Storer { return o.store }

// Queue returns the orchestrator's queue transport.
func (o *Orchestrator) Queue() Transport { return o.queue }

// Config returns a copy of the orchestrator's configuration.
func (o *Orchestrator) Config() Config { return o.config }

// AddRunner registers a lifecycle component (called by the engine).
func (o *Orchestrator) AddRunner(r runner) { o.runners = append(o.runners, r) }

// SetHooks sets the hook emitter (called by the engine).
func (o *Orchestrator) SetHooks(h hookEmitter) { o.hooks = h }

// Start begins job processing and cron scheduling.
func (o *Orchestrator) Start(ctx context.Context) error {
	if len(o.runners) == 0 {
		return ErrNoQueue
	}
	for _, r := range o.runners {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}
	o.started = true
	return nil
}

// Stop gracefully shuts down the orchestrator.
func (o *Orchestrator) Stop(ctx context.Context) error {
	// Bound the shutdown when the caller did not. In-flight jobs get
	// ShutdownTimeout to drain before runners give up waiting.
	if o.config.ShutdownTimeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.config.ShutdownTimeout)
			defer cancel()
		}
	}
	if o.started {
		for _, r := range o.runners {
			if err := r.Stop(ctx); err != nil {
				o.logger.Error("runner stop error", "error", err)
			}
		}
	}
	if o.hooks != nil {
		o.hooks.EmitShutdown(ctx)
	}
	if o.queue != nil {
		if err := o.queue.Close(); err != nil {
			o.logger.Error("queue close error", "error", err)
		}
	}
	if o.store != nil {
		return o.store.Close()
	}
	return nil
}

// WithConfig replaces the orchestrator's configuration wholesale.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) error {
		o.config = cfg
		return nil
	}
}

// WithConcurrency sets the maximum number of concurrent job processors.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) error {
		o.config.Concurrency = n
		return nil
	}
}

// WithLogger sets the structured logger for the orchestrator.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) error {
		o.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the orchestrator.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(o *Orchestrator) error {
		o.store = s
		return nil
	}
}

// WithQueue sets the queue transport for the orchestrator. Typically it
// will implement both queue.Enqueuer and queue.Consumer.
func WithQueue(q Transport) Option {
	return func(o *Orchestrator) error {
		o.queue = q
		return nil
	}
}
