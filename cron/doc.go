// Package cron creates jobs on a schedule.
//
// An [Entry] is a template: on each due tick the [Scheduler] creates a
// fresh independent job from the entry's function and params, through
// a callback the engine provides. Entries use standard 5-field cron
// expressions or descriptors like "@every 30m"
// (github.com/robfig/cron/v3 parsing).
//
// Several scheduler instances may run against the same store. A
// per-entry lock with a TTL, claimed in the store, guarantees a due
// entry fires exactly once per scheduled time; the claim is re-checked
// under the lock so the losing instances back off cleanly.
package cron
