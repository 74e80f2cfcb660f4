// Package redis implements the queue contract on Redis for distributed
// worker pools. Ready jobs live in a list consumed with BRPOP; delayed
// jobs (retry backoff) live in a sorted set scored by their due time
// and are promoted onto the list as they come due.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	q := redisqueue.New(client)
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/queue"
)

// Compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

const (
	defaultKeyPrefix    = "cascade:queue"
	defaultPollInterval = time.Second

	// promoteBatch bounds how many due delayed jobs move per poll.
	promoteBatch = 128
)

// Option configures the Queue.
type Option func(*Queue)

// WithKeyPrefix sets the Redis key prefix (default "cascade:queue").
func WithKeyPrefix(prefix string) Option {
	return func(q *Queue) { q.ready = prefix + ":ready"; q.delayed = prefix + ":delayed" }
}

// WithPollInterval sets how long each BRPOP blocks before the delayed
// set is re-checked (default 1s).
func WithPollInterval(d time.Duration) Option {
	return func(q *Queue) { q.pollInterval = d }
}

// Queue is a Redis-backed queue.Queue. The caller owns the Redis
// client lifecycle.
type Queue struct {
	client       goredis.Cmdable
	ready        string
	delayed      string
	pollInterval time.Duration
	closed       atomic.Bool
}

// New creates a Redis-backed queue.
func New(client goredis.Cmdable, opts ...Option) *Queue {
	q := &Queue{
		client:       client,
		ready:        defaultKeyPrefix + ":ready",
		delayed:      defaultKeyPrefix + ":delayed",
		pollInterval: defaultPollInterval,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue submits a job for immediate pickup.
func (q *Queue) Enqueue(ctx context.Context, jobID id.ID) error {
	if q.closed.Load() {
		return cascade.ErrQueueClosed
	}
	if err := q.client.LPush(ctx, q.ready, jobID.String()).Err(); err != nil {
		return fmt.Errorf("cascade/redis: enqueue %s: %w", jobID, err)
	}
	return nil
}

// EnqueueIn submits a job for pickup after delay.
func (q *Queue) EnqueueIn(ctx context.Context, jobID id.ID, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, jobID)
	}
	if q.closed.Load() {
		return cascade.ErrQueueClosed
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	err := q.client.ZAdd(ctx, q.delayed, goredis.Z{Score: due, Member: jobID.String()}).Err()
	if err != nil {
		return fmt.Errorf("cascade/redis: enqueue delayed %s: %w", jobID, err)
	}
	return nil
}

// Next blocks until a job is delivered. Each poll first promotes due
// delayed jobs onto the ready list, then blocks on BRPOP for at most
// the poll interval so newly due jobs are never starved.
func (q *Queue) Next(ctx context.Context) (id.ID, error) {
	for {
		if q.closed.Load() {
			return id.Nil, cascade.ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return id.Nil, err
		}

		if err := q.promote(ctx); err != nil {
			return id.Nil, err
		}

		res, err := q.client.BRPop(ctx, q.pollInterval, q.ready).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return id.Nil, ctx.Err()
			}
			return id.Nil, fmt.Errorf("cascade/redis: next: %w", err)
		}
		// BRPOP returns [key, value].
		jobID, err := id.Parse(res[1])
		if err != nil {
			return id.Nil, fmt.Errorf("cascade/redis: next: bad job id %q: %w", res[1], err)
		}
		return jobID, nil
	}
}

// promote moves due delayed jobs onto the ready list. ZREM is the
// claim: with concurrent consumers promoting the same member, only the
// remover that actually removed it pushes, so a delayed job is
// promoted once.
func (q *Queue) promote(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	due, err := q.client.ZRangeByScore(ctx, q.delayed, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: promote: %w", err)
	}

	for _, member := range due {
		removed, err := q.client.ZRem(ctx, q.delayed, member).Result()
		if err != nil {
			return fmt.Errorf("cascade/redis: promote remove: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.ready, member).Err(); err != nil {
			return fmt.Errorf("cascade/redis: promote push: %w", err)
		}
	}
	return nil
}

// Close marks the queue closed. The caller owns the Redis client
// lifecycle, so no connections are torn down here.
func (q *Queue) Close() error {
	q.closed.Store(true)
	return nil
}
