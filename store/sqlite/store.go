package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver

	"github.com/xraph/cascade/cron"
	"github.com/xraph/cascade/job"
	"github.com/xraph/cascade/pipeline"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ job.Store      = (*Store)(nil)
	_ pipeline.Store = (*Store)(nil)
	_ cron.Store     = (*Store)(nil)
)

// Store is a SQLite implementation of store.Store over database/sql.
// SQLite serializes writers, so conditional transitions run as a plain
// read-check-write inside a transaction. Suited to single-node
// deployments and tests; use the postgres store for clustered workers.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens a SQLite database at the given DSN, e.g. "cascade.db" or
// ":memory:". Busy timeout and foreign keys are enabled through the
// DSN when not already set by the caller.
func New(dsn string, opts ...Option) (*Store, error) {
	if !strings.Contains(dsn, "_busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: open: %w", err)
	}

	// A single writer connection sidesteps SQLITE_BUSY under
	// concurrent transactions.
	db.SetMaxOpenConns(1)

	return NewFromDB(db, opts...), nil
}

// NewFromDB creates a Store from an existing *sql.DB. The caller owns
// the db lifecycle.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("cascade/sqlite: migrate: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("cascade/sqlite: ping: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ── helpers ──────────────────────────────────────────────────────

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a SQLite error is a unique constraint violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// marshalMap renders a params/metadata map as a TEXT column value. A
// nil or empty map stores NULL.
func marshalMap(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil //nolint:nilnil // NULL column value
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("cascade/sqlite: marshal map: %w", err)
	}
	return string(data), nil
}

// unmarshalMap decodes a TEXT column back into a map. NULL yields nil.
func unmarshalMap(data sql.NullString) (map[string]any, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data.String), &m); err != nil {
		return nil, fmt.Errorf("cascade/sqlite: unmarshal map: %w", err)
	}
	return m, nil
}
