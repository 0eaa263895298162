// Package srun persists run history: one row per scenario run plus its
// ordered step results, append-only. Backed by sqlite through the pure-Go
// driver so the engine stays cgo-free.
package srun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"testflow/engine/pkg/flow/report"
	"testflow/engine/pkg/idwrap"
)

var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            BLOB PRIMARY KEY,
	scenario_id   BLOB NOT NULL,
	scenario_name TEXT NOT NULL,
	state         TEXT NOT NULL,
	allure_url    TEXT NOT NULL DEFAULT '',
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_steps (
	run_id       BLOB NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	execution_id BLOB,
	node_id      BLOB NOT NULL,
	name         TEXT NOT NULL,
	state        TEXT NOT NULL,
	started_at   INTEGER NOT NULL DEFAULT 0,
	duration_ms  INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	output       TEXT NOT NULL DEFAULT '',
	extracted    TEXT NOT NULL DEFAULT '',
	log          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, seq)
);
`

// Run is one persisted scenario run.
type Run struct {
	ID           idwrap.IDWrap
	ScenarioID   idwrap.IDWrap
	ScenarioName string
	State        string
	AllureURL    string
	StartedAt    time.Time
	FinishedAt   time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) a sqlite-backed store at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	s := NewStore(db)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate run store: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes the run row and its steps in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, steps []report.StepResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, scenario_id, scenario_name, state, allure_url, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.Bytes(), run.ScenarioID.Bytes(), run.ScenarioName, run.State, run.AllureURL,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_steps (run_id, seq, execution_id, node_id, name, state, started_at, duration_ms, error, output, extracted, log)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close() //nolint:errcheck

	for i, step := range steps {
		var startedAt int64
		if !step.StartedAt.IsZero() {
			startedAt = step.StartedAt.UnixMilli()
		}
		_, err = stmt.ExecContext(ctx,
			run.ID.Bytes(), i, step.ExecutionID.Bytes(), step.NodeID.Bytes(),
			step.Name, step.State, startedAt, step.DurationMS, step.Error,
			marshalColumn(step.Output), marshalColumn(step.Extracted), marshalColumn(step.Log))
		if err != nil {
			return fmt.Errorf("insert run step %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// marshalColumn renders a step field as a JSON text column; empty values
// store as the empty string so the column stays NOT NULL friendly.
func marshalColumn(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]any:
		if len(t) == 0 {
			return ""
		}
	case []string:
		if len(t) == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// GetRun loads one run row by id.
func (s *Store) GetRun(ctx context.Context, id idwrap.IDWrap) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scenario_id, scenario_name, state, allure_url, started_at, finished_at
		 FROM runs WHERE id = ?`, id.Bytes())

	var run Run
	var startedAt, finishedAt int64
	err := row.Scan(&run.ID, &run.ScenarioID, &run.ScenarioName, &run.State, &run.AllureURL, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(startedAt)
	run.FinishedAt = time.UnixMilli(finishedAt)
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scenario_id, scenario_name, state, allure_url, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, finishedAt int64
		if err := rows.Scan(&run.ID, &run.ScenarioID, &run.ScenarioName, &run.State, &run.AllureURL, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		run.StartedAt = time.UnixMilli(startedAt)
		run.FinishedAt = time.UnixMilli(finishedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StepsForRun returns a run's step results in execution order.
func (s *Store) StepsForRun(ctx context.Context, runID idwrap.IDWrap) ([]report.StepResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT execution_id, node_id, name, state, started_at, duration_ms, error, output, extracted, log
		 FROM run_steps WHERE run_id = ? ORDER BY seq`, runID.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var steps []report.StepResult
	for rows.Next() {
		var step report.StepResult
		var startedAt int64
		var outputJSON, extractedJSON, logJSON string
		if err := rows.Scan(&step.ExecutionID, &step.NodeID, &step.Name, &step.State, &startedAt, &step.DurationMS, &step.Error, &outputJSON, &extractedJSON, &logJSON); err != nil {
			return nil, err
		}
		if startedAt > 0 {
			step.StartedAt = time.UnixMilli(startedAt)
		}
		if outputJSON != "" {
			var output any
			if err := json.Unmarshal([]byte(outputJSON), &output); err == nil {
				step.Output = output
			}
		}
		if extractedJSON != "" {
			var extracted map[string]any
			if err := json.Unmarshal([]byte(extractedJSON), &extracted); err == nil {
				step.Extracted = extracted
			}
		}
		if logJSON != "" {
			var log []string
			if err := json.Unmarshal([]byte(logJSON), &log); err == nil {
				step.Log = log
			}
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
