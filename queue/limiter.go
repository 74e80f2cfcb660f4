package queue

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates how fast and how concurrently a worker pool consumes
// deliveries: a token-bucket rate limiter plus an active-count gate.
// It is safe for concurrent use.
type Limiter struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewLimiter creates a limiter. concurrency caps simultaneous in-
// flight jobs (zero means unlimited); ratePerSec caps sustained
// dequeue rate (zero disables rate limiting; burst defaults to 1 when
// unset).
func NewLimiter(concurrency int, ratePerSec float64, burst int) *Limiter {
	l := &Limiter{}
	if concurrency > 0 {
		l.sem = make(chan struct{}, concurrency)
	}
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return l
}

// Acquire blocks until a concurrency slot and a rate token are
// available, or the context is cancelled. The caller must call Release
// when the job completes.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			if l.sem != nil {
				<-l.sem
			}
			return err
		}
	}
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (l *Limiter) Release() {
	if l.sem != nil {
		<-l.sem
	}
}
