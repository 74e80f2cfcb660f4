package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cascade_crons (`+cronColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.Name, entry.Schedule, entry.Function,
		params, entry.Enabled,
		timePtr(entry.LastRunAt), timePtr(entry.NextRunAt),
		entry.LockedBy, timePtr(entry.LockedUntil),
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrDuplicateCron
		}
		return fmt.Errorf("cascade/sqlite: create cron entry: %w", err)
	}
	return nil
}

// GetEntry retrieves a cron entry by ID.
func (s *Store) GetEntry(ctx context.Context, entryID id.ID) (*cron.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cronColumns+` FROM cascade_crons WHERE id = ?`,
		entryID.String(),
	)

	e, err := scanEntry(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrCronNotFound
		}
		return nil, fmt.Errorf("cascade/sqlite: get cron entry: %w", err)
	}
	return e, nil
}

// ListEntries returns all cron entries ordered by name.
func (s *Store) ListEntries(ctx context.Context) ([]*cron.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cronColumns+` FROM cascade_crons ORDER BY name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list cron entries: %w", err)
	}
	defer rows.Close()

	var entries []*cron.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("cascade/sqlite: scan cron entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: iterate cron entries: %w", err)
	}
	return entries, nil
}

// UpdateEntry persists changes to a cron entry.
func (s *Store) UpdateEntry(ctx context.Context, entry *cron.Entry) error {
	params, err := marshalMap(entry.Params)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE cascade_crons SET
			name = ?, schedule = ?, function = ?, params = ?,
			enabled = ?, last_run_at = ?, next_run_at = ?,
			locked_by = ?, locked_until = ?, updated_at = ?
		WHERE id = ?`,
		entry.Name, entry.Schedule, entry.Function, params,
		entry.Enabled, timePtr(entry.LastRunAt), timePtr(entry.NextRunAt),
		entry.LockedBy, timePtr(entry.LockedUntil), time.Now().UTC(),
		entry.ID.String(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrDuplicateCron
		}
		return fmt.Errorf("cascade/sqlite: update cron entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: update cron entry: %w", err)
	}
	if n == 0 {
		return cascade.ErrCronNotFound
	}
	return nil
}

// DeleteEntry removes a cron entry by ID.
func (s *Store) DeleteEntry(ctx context.Context, entryID id.ID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cascade_crons WHERE id = ?`,
		entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: delete cron entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: delete cron entry: %w", err)
	}
	if n == 0 {
		return cascade.ErrCronNotFound
	}
	return nil
}

// AcquireEntryLock takes the per-entry lock if free, expired, or
// already held by owner.
func (s *Store) AcquireEntryLock(ctx context.Context, entryID id.ID, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	until := now.Add(ttl)

	res, err := s.db.ExecContext(ctx, `
		UPDATE cascade_crons SET
			locked_by = ?, locked_until = ?, updated_at = ?
		WHERE id = ?
		  AND (locked_by = '' OR locked_by = ?
		       OR locked_until IS NULL OR locked_until < ?)`,
		owner, until, now, entryID.String(), owner, now,
	)
	if err != nil {
		return false, fmt.Errorf("cascade/sqlite: acquire cron lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cascade/sqlite: acquire cron lock: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	if err := s.entryExists(ctx, entryID); err != nil {
		return false, err
	}
	return false, nil
}

// ReleaseEntryLock releases the per-entry lock if owner holds it.
func (s *Store) ReleaseEntryLock(ctx context.Context, entryID id.ID, owner string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cascade_crons SET
			locked_by = '', locked_until = NULL, updated_at = ?
		WHERE id = ? AND locked_by = ?`,
		time.Now().UTC(), entryID.String(), owner,
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: release cron lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: release cron lock: %w", err)
	}
	if n == 1 {
		return nil
	}
	return s.entryExists(ctx, entryID)
}

// MarkEntryRun records a fire.
func (s *Store) MarkEntryRun(ctx context.Context, entryID id.ID, at, next time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cascade_crons SET
			last_run_at = ?, next_run_at = ?, updated_at = ?
		WHERE id = ?`,
		at, next, time.Now().UTC(), entryID.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: mark cron run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: mark cron run: %w", err)
	}
	if n == 0 {
		return cascade.ErrCronNotFound
	}
	return nil
}

// entryExists maps a missing entry to cascade.ErrCronNotFound.
func (s *Store) entryExists(ctx context.Context, entryID id.ID) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM cascade_crons WHERE id = ?`,
		entryID.String(),
	).Scan(&one)
	if isNoRows(err) {
		return cascade.ErrCronNotFound
	}
	if err != nil {
		return fmt.Errorf("cascade/sqlite: check cron entry: %w", err)
	}
	return nil
}

func scanEntry(row queryRow) (*cron.Entry, error) {
	var (
		e       cron.Entry
		params  sql.NullString
		lastRun sql.NullTime
		nextRun sql.NullTime
		locked  sql.NullTime
	)

	err := row.Scan(
		&e.ID, &e.Name, &e.Schedule, &e.Function, &params, &e.Enabled,
		&lastRun, &nextRun, &e.LockedBy, &locked,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.LastRunAt = nullTimePtr(lastRun)
	e.NextRunAt = nullTimePtr(nextRun)
	e.LockedUntil = nullTimePtr(locked)
	if e.Params, err = unmarshalMap(params); err != nil {
		return nil, err
	}
	return &e, nil
}
