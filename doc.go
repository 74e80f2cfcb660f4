// Package cascade provides a dependency-aware job pipeline orchestrator
// for Go. Long, failure-prone operations run as a directed acyclic graph
// of queued jobs with retry semantics, progress reporting, skip cascading,
// and pipeline-level status aggregation.
//
// Cascade is designed as a library, not a service. Import it, configure a
// store and a queue, register job functions as ordinary Go functions, and
// build pipelines from declarative graph specs.
//
// # Quick Start
//
//	orc, err := cascade.New(
//	    cascade.WithStore(pgStore),
//	    cascade.WithConcurrency(20),
//	)
//
// # Architecture
//
// Cascade follows a composable store pattern where each subsystem (job,
// pipeline, cron) defines its own store interface. A single backend
// implements all of them. Queue transport is a separate, minimal contract:
// at-least-once delivery of job IDs. Workers tolerate redelivery because
// every status transition is conditional, so a job that already reached a
// terminal state is never re-executed.
//
// All entity IDs are type-prefixed, K-sortable TypeIDs and carry a
// URN rendering for
// human-readable references.
package cascade
