// Package sqlexec provides the default QueryExecutor for sql nodes: a
// sqlite database opened through the pure-Go driver. Rows come back as
// column-name maps so extract rules can path into them.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"testflow/engine/pkg/flow/node/nsql"
)

type SQLiteExecutor struct {
	db *sql.DB
}

func NewSQLiteExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db}
}

// Open opens (or creates) a sqlite database at path. Use ":memory:" for an
// ephemeral database.
func Open(path string) (*SQLiteExecutor, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite executor: %w", err)
	}
	return NewSQLiteExecutor(db), nil
}

func (e *SQLiteExecutor) Close() error {
	return e.db.Close()
}

// DB exposes the underlying handle, mainly for test seeding.
func (e *SQLiteExecutor) DB() *sql.DB {
	return e.db
}

// Query runs the statement and materializes every row into a
// map[column]value. Statements without result rows (INSERT, UPDATE) work
// too and yield zero rows.
func (e *SQLiteExecutor) Query(ctx context.Context, query string, args ...any) (nsql.QueryResult, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nsql.QueryResult{}, err
	}
	defer rows.Close() //nolint:errcheck

	columns, err := rows.Columns()
	if err != nil {
		return nsql.QueryResult{}, err
	}

	var result nsql.QueryResult
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nsql.QueryResult{}, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	return result, rows.Err()
}

// normalizeValue converts driver byte slices to strings so row values
// behave in templates and expressions.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
