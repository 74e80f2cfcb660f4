package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// marshalMap renders a params/metadata map as JSONB input. A nil or
// empty map stores NULL so the column stays distinguishable from "{}".
func marshalMap(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil //nolint:nilnil // NULL column value
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("cascade/postgres: marshal map: %w", err)
	}
	return data, nil
}

// unmarshalMap decodes a JSONB column back into a map. NULL yields nil.
func unmarshalMap(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cascade/postgres: unmarshal map: %w", err)
	}
	return m, nil
}
