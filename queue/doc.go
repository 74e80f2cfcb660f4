// Package queue defines the work-queue contract between the
// orchestrator and its transport.
//
// The contract is deliberately thin: [Enqueuer] submits job IDs,
// [Consumer] blocks for the next delivery. Semantics are at-least-once
// with no cross-job ordering; duplicate deliveries are expected and
// absorbed by the execution wrapper's conditional status transition.
//
// Two transports ship with the module:
//
//   - queue/memory: in-process, for tests and single-binary
//     deployments.
//   - queue/redis: a Redis list plus a sorted set for delayed retries,
//     for distributed worker pools.
//
// [Limiter] gates consumption with a token-bucket rate limit
// (golang.org/x/time/rate) and a concurrency cap; the worker pool
// acquires it before each delivery.
package queue
