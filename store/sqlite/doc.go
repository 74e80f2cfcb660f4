// Package sqlite provides a SQLite-backed store for Cascade over
// database/sql and mattn/go-sqlite3.
//
// The store keeps a single writer connection, so conditional job
// transitions and pipeline status writes are plain read-check-write
// transactions. Params and metadata merges happen key-by-key in Go.
// Suited to single-node deployments, development, and tests; the
// postgres store is the clustered counterpart.
package sqlite
