// Package postgres provides a PostgreSQL-backed store for Cascade
// using pgx/v5.
//
// Conditional job transitions and pipeline status writes run inside a
// transaction holding a FOR UPDATE row lock, so concurrent workers see
// a serialized read-check-write. Params and metadata merges use jsonb
// concatenation, which preserves keys absent from the patch. Cron
// entry locks are conditional single-row updates with an expiry
// column.
//
// Call Migrate once on startup to apply the embedded schema.
package postgres
