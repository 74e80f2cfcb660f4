package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/pipeline"
)

const pipelineColumns = `
	id, urn, name, description, status, correlation_id,
	started_at, finished_at, created_at, updated_at`

// CreatePipeline persists a new pipeline.
func (s *Store) CreatePipeline(ctx context.Context, p *pipeline.Pipeline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cascade_pipelines (`+pipelineColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.URN, p.Name, p.Description, string(p.Status),
		p.CorrelationID, timePtr(p.StartedAt), timePtr(p.FinishedAt),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrPipelineAlreadyExists
		}
		return fmt.Errorf("cascade/sqlite: create pipeline: %w", err)
	}
	return nil
}

// GetPipeline retrieves a pipeline by ID.
func (s *Store) GetPipeline(ctx context.Context, pipelineID id.ID) (*pipeline.Pipeline, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pipelineColumns+` FROM cascade_pipelines WHERE id = ?`,
		pipelineID.String(),
	)

	p, err := scanPipeline(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrPipelineNotFound
		}
		return nil, fmt.Errorf("cascade/sqlite: get pipeline: %w", err)
	}
	return p, nil
}

// SetPipelineStatus conditionally writes the pipeline's status,
// stamping StartedAt on the first move out of PENDING and FinishedAt
// on a terminal status. A redundant write is a no-op.
func (s *Store) SetPipelineStatus(ctx context.Context, pipelineID id.ID, status pipeline.Status) (*pipeline.Pipeline, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("cascade/sqlite: begin status write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+pipelineColumns+` FROM cascade_pipelines WHERE id = ?`,
		pipelineID.String(),
	)
	p, err := scanPipeline(row)
	if err != nil {
		if isNoRows(err) {
			return nil, false, cascade.ErrPipelineNotFound
		}
		return nil, false, fmt.Errorf("cascade/sqlite: read pipeline: %w", err)
	}

	if p.Status == status {
		return p, false, nil
	}

	now := time.Now().UTC()
	if p.Status == pipeline.StatusPending && p.StartedAt == nil {
		p.StartedAt = &now
	}
	p.Status = status
	if status.Terminal() {
		p.FinishedAt = &now
	}
	p.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		UPDATE cascade_pipelines SET
			status = ?, started_at = ?, finished_at = ?, updated_at = ?
		WHERE id = ?`,
		string(p.Status), timePtr(p.StartedAt), timePtr(p.FinishedAt),
		p.UpdatedAt, p.ID.String(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("cascade/sqlite: write pipeline status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("cascade/sqlite: commit pipeline status: %w", err)
	}
	return p, true, nil
}

// ListPipelines returns pipelines matching opts ordered by creation
// time.
func (s *Store) ListPipelines(ctx context.Context, opts pipeline.ListOpts) ([]*pipeline.Pipeline, error) {
	q := `SELECT ` + pipelineColumns + ` FROM cascade_pipelines WHERE 1=1`
	var args []any
	if opts.Status != "" {
		q += " AND status = ?"
		args = append(args, string(opts.Status))
	}
	q += " ORDER BY created_at ASC"
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
		return nil, fmt.Errorf("cascade/sqlite: list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []*pipeline.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("cascade/sqlite: scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: iterate pipelines: %w", err)
	}
	return pipelines, nil
}

// CreateDependency persists a dependency edge.
func (s *Store) CreateDependency(ctx context.Context, e *pipeline.DependencyEdge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO cascade_dependencies (
			job_id, depends_on_job_id, dependency_type, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?)`,
		e.JobID.String(), e.DependsOnJobID.String(), string(e.Type),
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/sqlite: create dependency: %w", err)
	}
	return nil
}

// ListDependents returns every edge whose prerequisite is the given
// job.
func (s *Store) ListDependents(ctx context.Context, dependsOnJobID id.ID) ([]*pipeline.DependencyEdge, error) {
	return s.listEdges(ctx, "depends_on_job_id", dependsOnJobID)
}

// ListPrerequisites returns every edge the given job waits on.
func (s *Store) ListPrerequisites(ctx context.Context, jobID id.ID) ([]*pipeline.DependencyEdge, error) {
	return s.listEdges(ctx, "job_id", jobID)
}

func (s *Store) listEdges(ctx context.Context, column string, jobID id.ID) ([]*pipeline.DependencyEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, depends_on_job_id, dependency_type, created_at, updated_at
		FROM cascade_dependencies
		WHERE `+column+` = ?
		ORDER BY created_at ASC`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: list edges: %w", err)
	}
	defer rows.Close()

	var edges []*pipeline.DependencyEdge
	for rows.Next() {
		var (
			e   pipeline.DependencyEdge
			typ string
		)
		err := rows.Scan(&e.JobID, &e.DependsOnJobID, &typ, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("cascade/sqlite: scan edge: %w", err)
		}
		e.Type = pipeline.DependencyType(typ)
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: iterate edges: %w", err)
	}
	return edges, nil
}

func scanPipeline(row queryRow) (*pipeline.Pipeline, error) {
	var (
		p        pipeline.Pipeline
		status   string
		started  sql.NullTime
		finished sql.NullTime
	)

	err := row.Scan(
		&p.ID, &p.URN, &p.Name, &p.Description, &status, &p.CorrelationID,
		&started, &finished, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = pipeline.Status(status)
	p.StartedAt = nullTimePtr(started)
	p.FinishedAt = nullTimePtr(finished)
	return &p, nil
}
