package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/job"
)

const jobColumns = `
	id, urn, job_type, job_function, params, max_retries, retry_count,
	status, priority, timeout, pipeline_id, metadata, correlation_id,
	progress_current, progress_total, progress_message,
	error_message, error_details, worker_id,
	started_at, finished_at, created_at, updated_at`

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	params, err := marshalMap(j.Params)
	if err != nil {
		return err
	}
	metadata, err := marshalMap(j.Metadata)
	if err != nil {
		return err
	}
	details, err := marshalMap(j.ErrorDetails)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cascade_jobs (`+jobColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), j.URN, j.JobType, j.JobFunction, params,
		j.MaxRetries, j.RetryCount,
		string(j.Status), j.Priority, j.Timeout.Nanoseconds(),
		j.PipelineID, metadata, j.CorrelationID,
		j.Progress.Current, j.Progress.Total, j.Progress.Message,
		j.ErrorMessage, details, j.WorkerID,
		timePtr(j.StartedAt), timePtr(j.FinishedAt), j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrJobAlreadyExists
		}
		return fmt.Errorf("cascade/sqlite: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.ID) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM cascade_jobs WHERE id = ?`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrJobNotFound
		}
		return nil, fmt.Errorf("cascade/sqlite: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	tag, err := execUpdateJob(ctx, s.db, j)
	if err != nil {
		return err
	}
	if tag == 0 {
		return cascade.ErrJobNotFound
	}
	return nil
}

// TransitionJob atomically moves a job to a new status if its current
// status is in the from set. SQLite serializes writers, so the
// read-check-write inside one transaction is race-free.
func (s *Store) TransitionJob(ctx context.Context, jobID id.ID, from []job.Status, to job.Status, mut func(*job.Job)) (*job.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM cascade_jobs WHERE id = ?`,
		jobID.String(),
	)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrJobNotFound
		}
		return nil, fmt.Errorf("cascade/sqlite: read job: %w", err)
	}

	allowed := false
	for _, st := range from {
		if j.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return j, cascade.ErrInvalidTransition
	}

	now := time.Now().UTC()
	j.Status = to
	switch {
	case to == job.StatusRunning:
		j.StartedAt = &now
	case to.Terminal():
		j.FinishedAt = &now
	}
	if mut != nil {
		mut(j)
	}
	j.UpdatedAt = now

	if _, err := execUpdateJob(ctx, tx, j); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: commit transition: %w", err)
	}
	return j, nil
}

// MergeJobParams merges params into the job's params map. Existing
// keys absent from params are preserved.
func (s *Store) MergeJobParams(ctx context.Context, jobID id.ID, params map[string]any) error {
	return s.mergeColumn(ctx, jobID, "params", params)
}

// MergeJobMetadata merges meta into the job's metadata map.
func (s *Store) MergeJobMetadata(ctx context.Context, jobID id.ID, meta map[string]any) error {
	return s.mergeColumn(ctx, jobID, "metadata", meta)
}

// mergeColumn performs the key-level merge in Go inside a transaction.
func (s *Store) mergeColumn(ctx context.Context, jobID id.ID, column string, patch map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: begin merge: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT `+column+` FROM cascade_jobs WHERE id = ?`,
		jobID.String(),
	).Scan(&current)
	if err != nil {
		if isNoRows(err) {
			return cascade.ErrJobNotFound
		}
		return fmt.Errorf("cascade/sqlite: read %s: %w", column, err)
	}

	merged, err := unmarshalMap(current)
	if err != nil {
		return err
	}
	if merged == nil {
		merged = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		merged[k] = v
	}

	value, err := marshalMap(merged)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE cascade_jobs SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: merge %s: %w", column, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cascade/sqlite: commit merge: %w", err)
	}
	return nil
}

// UpdateJobProgress records progress without touching status. Current
// never moves backwards.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID id.ID, current, total int64, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cascade_jobs SET
			progress_current = MAX(progress_current, ?),
			progress_total = ?, progress_message = ?, updated_at = ?
		WHERE id = ?`,
		current, total, message, time.Now().UTC(), jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: update progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cascade/sqlite: update progress: %w", err)
	}
	if n == 0 {
		return cascade.ErrJobNotFound
	}
	return nil
}

// ListJobsByPipeline returns the pipeline's member jobs ordered by
// creation time.
func (s *Store) ListJobsByPipeline(ctx context.Context, pipelineID id.ID) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM cascade_jobs
		 WHERE pipeline_id = ? ORDER BY created_at ASC`,
		pipelineID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list pipeline jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobsByStatus returns jobs in the given status ordered by
// creation time.
func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM cascade_jobs
	      WHERE status = ? ORDER BY created_at ASC`
	args := []any{string(status)}
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			q += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list jobs by status: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching opts.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := `SELECT COUNT(*) FROM cascade_jobs WHERE 1=1`
	var args []any
	if !opts.PipelineID.IsNil() {
		q += " AND pipeline_id = ?"
		args = append(args, opts.PipelineID.String())
	}
	if opts.Status != "" {
		q += " AND status = ?"
		args = append(args, string(opts.Status))
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("cascade/sqlite: count jobs: %w", err)
	}
	return count, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execUpdateJob(ctx context.Context, db execer, j *job.Job) (int64, error) {
	params, err := marshalMap(j.Params)
	if err != nil {
		return 0, err
	}
	metadata, err := marshalMap(j.Metadata)
	if err != nil {
		return 0, err
	}
	details, err := marshalMap(j.ErrorDetails)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE cascade_jobs SET
			urn = ?, job_type = ?, job_function = ?, params = ?,
			max_retries = ?, retry_count = ?, status = ?,
			priority = ?, timeout = ?, pipeline_id = ?,
			metadata = ?, correlation_id = ?,
			progress_current = ?, progress_total = ?, progress_message = ?,
			error_message = ?, error_details = ?, worker_id = ?,
			started_at = ?, finished_at = ?, updated_at = ?
		WHERE id = ?`,
		j.URN, j.JobType, j.JobFunction, params,
		j.MaxRetries, j.RetryCount, string(j.Status),
		j.Priority, j.Timeout.Nanoseconds(), j.PipelineID,
		metadata, j.CorrelationID,
		j.Progress.Current, j.Progress.Total, j.Progress.Message,
		j.ErrorMessage, details, j.WorkerID,
		timePtr(j.StartedAt), timePtr(j.FinishedAt), j.UpdatedAt,
		j.ID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("cascade/sqlite: update job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cascade/sqlite: update job: %w", err)
	}
	return n, nil
}

// queryRow is satisfied by *sql.Row and *sql.Rows.
type queryRow interface {
	Scan(dest ...any) error
}

// scanJob reads one job row. The column order must match jobColumns.
func scanJob(row queryRow) (*job.Job, error) {
	var (
		j         job.Job
		status    string
		timeoutNs int64
		params    sql.NullString
		metadata  sql.NullString
		details   sql.NullString
		started   sql.NullTime
		finished  sql.NullTime
	)

	err := row.Scan(
		&j.ID, &j.URN, &j.JobType, &j.JobFunction, &params,
		&j.MaxRetries, &j.RetryCount,
		&status, &j.Priority, &timeoutNs,
		&j.PipelineID, &metadata, &j.CorrelationID,
		&j.Progress.Current, &j.Progress.Total, &j.Progress.Message,
		&j.ErrorMessage, &details, &j.WorkerID,
		&started, &finished, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(status)
	j.Timeout = time.Duration(timeoutNs)
	j.StartedAt = nullTimePtr(started)
	j.FinishedAt = nullTimePtr(finished)
	if j.Params, err = unmarshalMap(params); err != nil {
		return nil, err
	}
	if j.Metadata, err = unmarshalMap(metadata); err != nil {
		return nil, err
	}
	if j.ErrorDetails, err = unmarshalMap(details); err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows *sql.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("cascade/sqlite: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: iterate jobs: %w", err)
	}
	return jobs, nil
}

// timePtr converts a *time.Time to a NULL-able driver value.
func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
