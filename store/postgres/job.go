package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO cascade_jobs (`+jobColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16,
			$17, $18, $19,
			$20, $21, $22, $23
		)`,
		j.ID.String(), j.URN, j.JobType, j.JobFunction, params,
		j.MaxRetries, j.RetryCount,
		string(j.Status), j.Priority, j.Timeout.Nanoseconds(),
		j.PipelineID, metadata, j.CorrelationID,
		j.Progress.Current, j.Progress.Total, j.Progress.Message,
		j.ErrorMessage, details, j.WorkerID,
		j.StartedAt, j.FinishedAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrJobAlreadyExists
		}
		return fmt.Errorf("cascade/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.ID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM cascade_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrJobNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
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

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_jobs SET
			urn = $2, job_type = $3, job_function = $4, params = $5,
			max_retries = $6, retry_count = $7, status = $8,
			priority = $9, timeout = $10, pipeline_id = $11,
			metadata = $12, correlation_id = $13,
			progress_current = $14, progress_total = $15,
			progress_message = $16, error_message = $17,
			error_details = $18, worker_id = $19,
			started_at = $20, finished_at = $21, updated_at = NOW()
		WHERE id = $1`,
		j.ID.String(), j.URN, j.JobType, j.JobFunction, params,
		j.MaxRetries, j.RetryCount, string(j.Status),
		j.Priority, j.Timeout.Nanoseconds(), j.PipelineID,
		metadata, j.CorrelationID,
		j.Progress.Current, j.Progress.Total,
		j.Progress.Message, j.ErrorMessage,
		details, j.WorkerID,
		j.StartedAt, j.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrJobNotFound
	}
	return nil
}

// TransitionJob atomically moves a job to a new status if its current
// status is in the from set. The row lock is held across the read,
// the guard check, and the write.
func (s *Store) TransitionJob(ctx context.Context, jobID id.ID, from []job.Status, to job.Status, mut func(*job.Job)) (*job.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM cascade_jobs WHERE id = $1 FOR UPDATE`,
		jobID.String(),
	)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrJobNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: lock job: %w", err)
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

	if err := updateJobTx(ctx, tx, j); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("cascade/postgres: commit transition: %w", err)
	}
	return j, nil
}

// updateJobTx writes the full job row inside the transition transaction.
func updateJobTx(ctx context.Context, tx pgx.Tx, j *job.Job) error {
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

	_, err = tx.Exec(ctx, `
		UPDATE cascade_jobs SET
			params = $2, max_retries = $3, retry_count = $4, status = $5,
			metadata = $6, error_message = $7, error_details = $8,
			worker_id = $9, started_at = $10, finished_at = $11,
			updated_at = $12
		WHERE id = $1`,
		j.ID.String(), params, j.MaxRetries, j.RetryCount, string(j.Status),
		metadata, j.ErrorMessage, details,
		j.WorkerID, j.StartedAt, j.FinishedAt,
		j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: write transition: %w", err)
	}
	return nil
}

// MergeJobParams merges params into the job's params map. Key-level
// merge via jsonb concatenation: existing keys absent from params are
// preserved.
func (s *Store) MergeJobParams(ctx context.Context, jobID id.ID, params map[string]any) error {
	return s.mergeColumn(ctx, jobID, "params", params)
}

// MergeJobMetadata merges meta into the job's metadata map.
func (s *Store) MergeJobMetadata(ctx context.Context, jobID id.ID, meta map[string]any) error {
	return s.mergeColumn(ctx, jobID, "metadata", meta)
}

func (s *Store) mergeColumn(ctx context.Context, jobID id.ID, column string, m map[string]any) error {
	patch, err := marshalMap(m)
	if err != nil {
		return err
	}
	if patch == nil {
		patch = []byte(`{}`)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_jobs
		SET `+column+` = COALESCE(`+column+`, '{}'::jsonb) || $2::jsonb,
		    updated_at = NOW()
		WHERE id = $1`,
		jobID.String(), patch,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: merge %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrJobNotFound
	}
	return nil
}

// UpdateJobProgress records progress without touching status. Current
// never moves backwards.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID id.ID, current, total int64, message string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE cascade_jobs SET
			progress_current = GREATEST(progress_current, $2),
			progress_total = $3, progress_message = $4, updated_at = NOW()
		WHERE id = $1`,
		jobID.String(), current, total, message,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cascade.ErrJobNotFound
	}
	return nil
}

// ListJobsByPipeline returns the pipeline's member jobs ordered by
// creation time.
func (s *Store) ListJobsByPipeline(ctx context.Context, pipelineID id.ID) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM cascade_jobs
		 WHERE pipeline_id = $1 ORDER BY created_at ASC`,
		pipelineID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: list pipeline jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// ListJobsByStatus returns jobs in the given status ordered by
// creation time.
func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM cascade_jobs
	      WHERE status = $1 ORDER BY created_at ASC`
	args := []any{string(status)}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: list jobs by status: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching opts.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := `SELECT COUNT(*) FROM cascade_jobs WHERE 1=1`
	var args []any
	if !opts.PipelineID.IsNil() {
		args = append(args, opts.PipelineID.String())
		q += fmt.Sprintf(" AND pipeline_id = $%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var count int64
	if err := s.pool.QueryRow(ctx, q, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("cascade/postgres: count jobs: %w", err)
	}
	return count, nil
}

// scanJob reads one job row. The column order must match jobColumns.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		status    string
		timeoutNs int64
		params    []byte
		metadata  []byte
		details   []byte
	)

	err := row.Scan(
		&j.ID, &j.URN, &j.JobType, &j.JobFunction, &params,
		&j.MaxRetries, &j.RetryCount,
		&status, &j.Priority, &timeoutNs,
		&j.PipelineID, &metadata, &j.CorrelationID,
		&j.Progress.Current, &j.Progress.Total, &j.Progress.Message,
		&j.ErrorMessage, &details, &j.WorkerID,
		&j.StartedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.Status = job.Status(status)
	j.Timeout = time.Duration(timeoutNs)
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

func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("cascade/postgres: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate jobs: %w", err)
	}
	return jobs, nil
}
