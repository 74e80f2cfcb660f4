package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/cron"
	"github.com/xraph/cascade/id"
)

const cronColumns = `
	id, name, schedule, function, params, enabled,
	last_run_at, next_run_at, locked_by, locked_until,
	created_at, updated_at`

// CreateEntry persists a new cron entry.
func (s *Store) CreateEntry(ctx context.Context, entry *cron.Entry) error {
	params, err := marshalMap(entry.Params)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cascade_crons (`+cronColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID.String(), entry.Name, entry.Schedule, entry.Function,
		params, entry.Enabled,
		entry.LastRunAt, entry.NextRunAt, entry.LockedBy, entry.LockedUntil,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrDuplicateCron
		}
		return fmt.Errorf("cascade/postgres: create cron entry: %w", err)
	}
	return nil
}

// GetEntry retrieves a cron entry by ID.
func (s *Store) GetEntry(ctx context.Context, entryID id.ID) (*cron.Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+cronColumns+` FROM cascade_crons WHERE id = $1`,
		entryID.String(),
	)

	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrCronNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get cron entry: %w", err)
	}
	return e, nil
}

// ListEntries returns all cron entries ordered by name.
func (s *Store) ListEntries(ctx context.Context) ([]*cron.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+cronColumns+` FROM cascade_crons ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: list cron entries: %w", err)
	}
	defer rows.Close()

	var entries []*cron.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("cascade/postgres: scan cron entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate cron entries: %w", err)
	}
	return entries, nil
}

// UpdateEntry persists changes to a cron entry.
func (s *Store) UpdateEntry(ctx context.Context, entry *cron.Entry) error {
	params, err := marshalMap(entry.Params)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_crons SET
			name = $2, schedule = $3, function = $4, params = $5,
			enabled = $6, last_run_at = $7, next_run_at = $8,
			locked_by = $9, locked_until = $10, updated_at = NOW()
		WHERE id = $1`,
		entry.ID.String(), entry.Name, entry.Schedule, entry.Function,
		params, entry.Enabled, entry.LastRunAt, entry.NextRunAt,
		entry.LockedBy, entry.LockedUntil,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrDuplicateCron
		}
		return fmt.Errorf("cascade/postgres: update cron entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrCronNotFound
	}
	return nil
}

// DeleteEntry removes a cron entry by ID.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.ID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cascade_crons WHERE id = $1`,
		entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: delete cron entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrCronNotFound
	}
	return nil
}

// AcquireEntryLock takes the per-entry lock if free, expired, or
// already held by owner. A single conditional update makes the acquire
// race-free across scheduler instances.
func (s *Store) AcquireEntryLock(ctx context.Context, entryID id.ID, owner string, ttl time.Duration) (bool, error) {
	until := time.Now().UTC().Add(ttl)

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_crons SET
			locked_by = $2, locked_until = $3, updated_at = NOW()
		WHERE id = $1
		  AND (locked_by = '' OR locked_by = $2
		       OR locked_until IS NULL OR locked_until < NOW())`,
		entryID.String(), owner, until,
	)
	if err != nil {
		return false, fmt.Errorf("cascade/postgres: acquire cron lock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cascade_crons WHERE id = $1)`,
		entryID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("cascade/postgres: check cron entry: %w", err)
	}
	if !exists {
		return false, cascade.ErrCronNotFound
	}
	return false, nil
}

// ReleaseEntryLock releases the per-entry lock if owner holds it.
func (s *Store) ReleaseEntryLock(ctx context.Context, entryID id.ID, owner string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_crons SET
			locked_by = '', locked_until = NULL, updated_at = NOW()
		WHERE id = $1 AND locked_by = $2`,
		entryID.String(), owner,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: release cron lock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cascade_crons WHERE id = $1)`,
		entryID.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("cascade/postgres: check cron entry: %w", err)
	}
	if !exists {
		return cascade.ErrCronNotFound
	}
	return nil
}

// MarkEntryRun records a fire.
func (s *Store) MarkEntryRun(ctx context.Context, entryID id.ID, at, next time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_crons SET
			last_run_at = $2, next_run_at = $3, updated_at = NOW()
		WHERE id = $1`,
		entryID.String(), at, next,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: mark cron run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrCronNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (*cron.Entry, error) {
	var (
		e      cron.Entry
		params []byte
	)

	err := row.Scan(
		&e.ID, &e.Name, &e.Schedule, &e.Function, &params, &e.Enabled,
		&e.LastRunAt, &e.NextRunAt, &e.LockedBy, &e.LockedUntil,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if e.Params, err = unmarshalMap(params); err != nil {
		return nil, err
	}
	return &e, nil
}
