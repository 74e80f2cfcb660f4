package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/cascade"
	"github.com/xraph/cascade/id"
	"github.com/xraph/cascade/pipeline"
)

const pipelineColumns = `
	id, urn, name, description, status, correlation_id,
	started_at, finished_at, created_at, updated_at`

// CreatePipeline persists a new pipeline.
func (s *Store) CreatePipeline(ctx context.Context, p *pipeline.Pipeline) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cascade_pipelines (`+pipelineColumns+`
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID.String(), p.URN, p.Name, p.Description, string(p.Status),
		p.CorrelationID, p.StartedAt, p.FinishedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return cascade.ErrPipelineAlreadyExists
		}
		return fmt.Errorf("cascade/postgres: create pipeline: %w", err)
	}
	return nil
}

// GetPipeline retrieves a pipeline by ID.
func (s *Store) GetPipeline(ctx context.Context, pipelineID id.ID) (*pipeline.Pipeline, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pipelineColumns+` FROM cascade_pipelines WHERE id = $1`,
		pipelineID.String(),
	)

	p, err := scanPipeline(row)
	if err != nil {
		if isNoRows(err) {
			return nil, cascade.ErrPipelineNotFound
		}
		return nil, fmt.Errorf("cascade/postgres: get pipeline: %w", err)
	}
	return p, nil
}

// SetPipelineStatus conditionally writes the pipeline's status under a
// row lock, stamping StartedAt on the first move out of PENDING and
// FinishedAt on a terminal status. A redundant write is a no-op.
func (s *Store) SetPipelineStatus(ctx context.Context, pipelineID id.ID, status pipeline.Status) (*pipeline.Pipeline, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("cascade/postgres: begin status write: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+pipelineColumns+` FROM cascade_pipelines WHERE id = $1 FOR UPDATE`,
		pipelineID.String(),
	)
	p, err := scanPipeline(row)
	if err != nil {
		if isNoRows(err) {
			return nil, false, cascade.ErrPipelineNotFound
		}
		return nil, false, fmt.Errorf("cascade/postgres: lock pipeline: %w", err)
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

	_, err = tx.Exec(ctx, `
		UPDATE cascade_pipelines SET
			status = $2, started_at = $3, finished_at = $4, updated_at = $5
		WHERE id = $1`,
		p.ID.String(), string(p.Status), p.StartedAt, p.FinishedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("cascade/postgres: write pipeline status: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("cascade/postgres: commit pipeline status: %w", err)
	}
	return p, true, nil
}

// ListPipelines returns pipelines matching opts ordered by creation
// time.
func (s *Store) ListPipelines(ctx context.Context, opts pipeline.ListOpts) ([]*pipeline.Pipeline, error) {
	q := `SELECT ` + pipelineColumns + ` FROM cascade_pipelines WHERE 1=1`
	var args []any
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		q += fmt.Sprintf(" AND status = $%d", len(args))
	}
	q += " ORDER BY created_at ASC"
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
		return nil, fmt.Errorf("cascade/postgres: list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []*pipeline.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("cascade/postgres: scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate pipelines: %w", err)
	}
	return pipelines, nil
}

// CreateDependency persists a dependency edge.
func (s *Store) CreateDependency(ctx context.Context, e *pipeline.DependencyEdge) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cascade_dependencies (
			job_id, depends_on_job_id, dependency_type, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, depends_on_job_id) DO NOTHING`,
		e.JobID.String(), e.DependsOnJobID.String(), string(e.Type),
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("cascade/postgres: create dependency: %w", err)
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
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, depends_on_job_id, dependency_type, created_at, updated_at
		FROM cascade_dependencies
		WHERE `+column+` = $1
		ORDER BY created_at ASC`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: list edges: %w", err)
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
			return nil, fmt.Errorf("cascade/postgres: scan edge: %w", err)
		}
		e.Type = pipeline.DependencyType(typ)
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cascade/postgres: iterate edges: %w", err)
	}
	return edges, nil
}

func scanPipeline(row pgx.Row) (*pipeline.Pipeline, error) {
	var (
		p      pipeline.Pipeline
		status string
	)

	err := row.Scan(
		&p.ID, &p.URN, &p.Name, &p.Description, &status, &p.CorrelationID,
		&p.StartedAt, &p.FinishedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = pipeline.Status(status)
	return &p, nil
}
