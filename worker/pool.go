package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/queue"
)

// Pool manages a set of concurrent consumer goroutines that block on
// the queue and run deliveries through the Executor.
type Pool struct {
	consumer    queue.Consumer
	executor    *Executor
	limiter     *queue.Limiter
	concurrency int
	workerID    id.ID
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of consumer goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithLimiter caps concurrent and per-second executions across all
// consumer goroutines.
func WithLimiter(l *queue.Limiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// WithWorkerID sets the pool's worker identity. Defaults to a fresh
// worker ID.
func WithWorkerID(workerID id.ID) PoolOption {
	return func(p *Pool) { p.workerID = workerID }
}

// NewPool creates a worker pool.
func NewPool(consumer queue.Consumer, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		consumer:    consumer,
		executor:    executor,
		concurrency: 4,
		workerID:    id.NewWorkerID(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.ID { return p.workerID }

// Start launches the consumer goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency))

	for range p.concurrency {
		p.wg.Add(1)
		go p.consumeLoop(loopCtx)
	}
	return nil
}

// Stop cancels the consumer loops and waits for in-flight executions
// to finish or the context to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out")
		return ctx.Err()
	}
}

// consumeLoop is run by each consumer goroutine. The limiter slot is
// acquired before claiming a delivery so a rate-limited worker never
// sits on an unacknowledged message.
func (p *Pool) consumeLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		if p.limiter != nil {
			if err := p.limiter.Acquire(ctx); err != nil {
				return
			}
		}

		jobID, err := p.consumer.Next(ctx)
		if err != nil {
			if p.limiter != nil {
				p.limiter.Release()
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, cascade.ErrQueueClosed) {
				return
			}
			p.logger.Error("queue consume error", slog.String("error", err.Error()))
			continue
		}

		// Executions run under their own context so a pool shutdown
		// does not sever a job mid-flight; Stop's deadline bounds the
		// wait instead.
		if err := p.executor.Execute(context.WithoutCancel(ctx), jobID); err != nil {
			p.logger.Error("job execution error",
				slog.String("job_id", jobID.String()),
				slog.String("error", err.Error()))
		}

		if p.limiter != nil {
			p.limiter.Release()
		}
	}
}
