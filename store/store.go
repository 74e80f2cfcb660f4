// Package store defines the aggregate persistence interface. Each
// subsystem (job, pipeline, cron) defines its own store interface; the
// composite Store composes them all. Backends: Postgres, SQLite, and
// Memory.
package store

import (
	"context"

	"github.com/xraph/cascade/cron"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/pipeline"
)

// Store is the aggregate persistence interface. Each subsystem store
// is a composable interface; a single backend implements all of them.
type Store interface {
	job.Store
	pipeline.Store
	cron.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
