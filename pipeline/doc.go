// Package pipeline models dependency graphs of jobs and drives them to
// completion.
//
// A pipeline is a set of jobs connected by dependency edges. Each edge
// declares what the dependent needs from its prerequisite: SuccessRequired
// edges wait for SUCCEEDED, CompletionRequired edges accept FAILED too.
// Build validates a declarative Spec (unique keys, known prerequisites,
// acyclic) and produces the records to persist.
//
// At runtime two components react to terminal jobs. The Resolver walks the
// edges leaving a terminal job: it merges the producer's output into
// dependents, queues dependents whose prerequisites are all met, and
// cascades SKIPPED through subtrees whose prerequisites can no longer be
// satisfied. The Coordinator recomputes the pipeline's aggregate status
// from its members and persists it idempotently.
//
// Both are driven by conditional status transitions in the store, so
// concurrent producers of the same dependent, or redelivered queue
// messages, resolve to exactly one effective action.
package pipeline
