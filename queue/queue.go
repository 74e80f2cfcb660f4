package queue

import (
	"context"
	"time"

	"github.com/xraph/cascade/id"
)

// Enqueuer submits jobs for asynchronous pickup by a worker pool.
// Delivery is at-least-once; ordering across unrelated jobs is not
// guaranteed, and a single job may be delivered more than once. The
// execution wrapper's idempotency check absorbs duplicates.
type Enqueuer interface {
	// Enqueue submits a job for immediate pickup.
	Enqueue(ctx context.Context, jobID id.ID) error

	// EnqueueIn submits a job for pickup after the given delay. Used
	// for retry backoff.
	EnqueueIn(ctx context.Context, jobID id.ID, delay time.Duration) error
}

// Consumer is the worker side of the queue.
type Consumer interface {
	// Next blocks until a job is delivered, the context is cancelled,
	// or the queue is closed (cascade.ErrQueueClosed).
	Next(ctx context.Context) (id.ID, error)
}

// Queue is a full transport: both ends plus shutdown.
type Queue interface {
	Enqueuer
	Consumer

	// Close releases transport resources. In-flight Next calls return
	// cascade.ErrQueueClosed.
	Close() error
}
