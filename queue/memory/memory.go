// Package memory provides an in-process queue transport for tests and
// single-binary deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
)

// DefaultBuffer is the ready-channel capacity when none is configured.
const DefaultBuffer = 1024

// Queue is an in-process queue.Queue. Immediate deliveries go through
// a buffered channel; delayed deliveries arm a timer that feeds the
// same channel.
type Queue struct {
	ready chan id.ID
	done  chan struct{}

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// New creates an in-process queue with the given buffer capacity.
// Zero or negative means DefaultBuffer.
func New(buffer int) *Queue {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Queue{
		ready:  make(chan id.ID, buffer),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Enqueue submits a job for immediate pickup.
func (q *Queue) Enqueue(ctx context.Context, jobID id.ID) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return cascade.ErrQueueClosed
	}

	select {
	case q.ready <- jobID:
		return nil
	case <-q.done:
		return cascade.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueIn submits a job for pickup after delay.
func (q *Queue) EnqueueIn(ctx context.Context, jobID id.ID, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, jobID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return cascade.ErrQueueClosed
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		select {
		case q.ready <- jobID:
		case <-q.done:
		}
	})
	q.timers[timer] = struct{}{}
	return nil
}

// Next blocks until a job is delivered, the context is cancelled, or
// the queue is closed.
func (q *Queue) Next(ctx context.Context) (id.ID, error) {
	select {
	case jobID := <-q.ready:
		return jobID, nil
	case <-q.done:
		// Drain what was buffered before close.
		select {
		case jobID := <-q.ready:
			return jobID, nil
		default:
			return id.Nil, cascade.ErrQueueClosed
		}
	case <-ctx.Done():
		return id.Nil, ctx.Err()
	}
}

// Len returns the number of jobs ready for pickup.
func (q *Queue) Len() int {
	return len(q.ready)
}

// Close stops pending timers and unblocks consumers. Idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
	close(q.done)
	return nil
}
