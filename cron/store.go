package cron

import (
	"context"
	"time"

	"github.com/xraph/cascade/id"
)

// Store defines the persistence contract for cron entries.
type Store interface {
	// CreateEntry persists a new entry. Returns cascade.ErrDuplicateCron
	// if the name is taken.
	CreateEntry(ctx context.Context, entry *Entry) error

	// GetEntry retrieves an entry by ID. Returns cascade.ErrCronNotFound
	// if absent.
	GetEntry(ctx context.Context, entryID id.ID) (*Entry, error)

	// ListEntries returns all entries.
	ListEntries(ctx context.Context) ([]*Entry, error)

	// UpdateEntry persists changes to an entry (Enabled, NextRunAt, ...).
	UpdateEntry(ctx context.Context, entry *Entry) error

	// DeleteEntry removes an entry by ID.
	DeleteEntry(ctx context.Context, entryID id.ID) error

	// AcquireEntryLock attempts to take the per-entry lock that keeps
	// concurrent scheduler instances from double-firing. Returns true
	// if taken. The lock expires after ttl.
	AcquireEntryLock(ctx context.Context, entryID id.ID, owner string, ttl time.Duration) (bool, error)

	// ReleaseEntryLock releases the per-entry lock if owner holds it.
	ReleaseEntryLock(ctx context.Context, entryID id.ID, owner string) error

	// MarkEntryRun records a fire: LastRunAt = at, NextRunAt = next.
	MarkEntryRun(ctx context.Context, entryID id.ID, at, next time.Time) error
}
