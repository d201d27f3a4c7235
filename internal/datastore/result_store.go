package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Run statuses stored in probe_runs.
const (
	RunStatusStarted   = "STARTED"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// ErrRunNotFound is returned when a run ID has no probe_runs row.
var ErrRunNotFound = errors.New("run not found")

// OperationResult is the outcome of one logical operation, written once the
// operation has concluded. Retry state itself is never persisted.
type OperationResult struct {
	ID                 int64
	RunID              string
	Target             string
	Method             string
	StatusCode         int
	Outcome            string
	Attempts           int
	CumulativeDelay    time.Duration
	Duration           time.Duration
	Error              string
	RateLimitRemaining *int
	FinishedAt         time.Time
}

// Run summarizes one CLI invocation.
type Run struct {
	RunID        string
	TargetSource string
	NumTargets   int
	Status       string
	Succeeded    int
	Failed       int
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// ResultStore records operation outcomes in a SQLite database.
type ResultStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewResultStore opens (or creates) the database at dataSourceName and ensures the schema.
func NewResultStore(dataSourceName string, logger zerolog.Logger) (*ResultStore, error) {
	logger = logger.With().Str("component", "ResultStore").Logger()

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error().Err(err).Str("directory", dbDir).Msg("Failed to create results database directory")
		return nil, fmt.Errorf("failed to create results database directory %s: %w", dbDir, err)
	}

	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		logger.Error().Err(err).Str("db_path", dataSourceName).Msg("Failed to open results database")
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}
	// Concurrent writers would otherwise hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &ResultStore{db: db, logger: logger}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug().Str("path", dataSourceName).Msg("Results database initialized")
	return store, nil
}

// Close closes the database connection.
func (s *ResultStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *ResultStore) initSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS probe_runs (
		run_id TEXT PRIMARY KEY,
		target_source TEXT NOT NULL,
		num_targets INTEGER NOT NULL,
		status TEXT NOT NULL,
		succeeded INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS operation_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		target TEXT NOT NULL,
		method TEXT NOT NULL,
		status_code INTEGER,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		cumulative_delay_ms INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT,
		ratelimit_remaining INTEGER,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_operation_results_run ON operation_results(run_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		s.logger.Error().Err(err).Msg("Failed to initialize schema")
		return err
	}
	return nil
}

// RecordRunStart inserts a probe_runs row with status STARTED.
func (s *ResultStore) RecordRunStart(ctx context.Context, runID, targetSource string, numTargets int, startTime time.Time) error {
	const query = `INSERT INTO probe_runs (run_id, target_source, num_targets, status, started_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, runID, targetSource, numTargets, RunStatusStarted, startTime.UnixNano()); err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to record run start")
		return fmt.Errorf("failed to insert run start record: %w", err)
	}
	return nil
}

// UpdateRunCompletion stores the final counters of a run.
func (s *ResultStore) UpdateRunCompletion(ctx context.Context, runID string, endTime time.Time, status string, succeeded, failed int) error {
	const query = `UPDATE probe_runs SET finished_at = ?, status = ?, succeeded = ?, failed = ? WHERE run_id = ?`
	res, err := s.db.ExecContext(ctx, query, endTime.UnixNano(), status, succeeded, failed, runID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("Failed to update run completion")
		return fmt.Errorf("failed to update run completion for %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun loads a run by ID.
func (s *ResultStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	const query = `SELECT run_id, target_source, num_targets, status, succeeded, failed, started_at, finished_at FROM probe_runs WHERE run_id = ?`

	var (
		run        Run
		startedAt  int64
		finishedAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.RunID, &run.TargetSource, &run.NumTargets, &run.Status,
		&run.Succeeded, &run.Failed, &startedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	run.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		t := time.Unix(0, finishedAt.Int64)
		run.FinishedAt = &t
	}
	return &run, nil
}

// RecordResult inserts one finished operation and returns its row ID.
func (s *ResultStore) RecordResult(ctx context.Context, result OperationResult) (int64, error) {
	const query = `INSERT INTO operation_results
		(run_id, target, method, status_code, outcome, attempts, cumulative_delay_ms, duration_ms, error, ratelimit_remaining, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	finishedAt := result.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	var remaining sql.NullInt64
	if result.RateLimitRemaining != nil {
		remaining = sql.NullInt64{Int64: int64(*result.RateLimitRemaining), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, query,
		result.RunID,
		result.Target,
		result.Method,
		sql.NullInt64{Int64: int64(result.StatusCode), Valid: result.StatusCode != 0},
		result.Outcome,
		result.Attempts,
		result.CumulativeDelay.Milliseconds(),
		result.Duration.Milliseconds(),
		sql.NullString{String: result.Error, Valid: result.Error != ""},
		remaining,
		finishedAt.UnixNano(),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("target", result.Target).Msg("Failed to record operation result")
		return 0, fmt.Errorf("failed to insert operation result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// ListResults returns all results of a run in insertion order.
func (s *ResultStore) ListResults(ctx context.Context, runID string) ([]OperationResult, error) {
	const query = `SELECT id, run_id, target, method, status_code, outcome, attempts, cumulative_delay_ms, duration_ms, error, ratelimit_remaining, finished_at
		FROM operation_results WHERE run_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var results []OperationResult
	for rows.Next() {
		var (
			r          OperationResult
			statusCode sql.NullInt64
			delayMs    int64
			durationMs int64
			errText    sql.NullString
			remaining  sql.NullInt64
			finishedAt int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Target, &r.Method, &statusCode, &r.Outcome, &r.Attempts,
			&delayMs, &durationMs, &errText, &remaining, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation result: %w", err)
		}

		r.StatusCode = int(statusCode.Int64)
		r.CumulativeDelay = time.Duration(delayMs) * time.Millisecond
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Error = errText.String
		if remaining.Valid {
			v := int(remaining.Int64)
			r.RateLimitRemaining = &v
		}
		r.FinishedAt = time.Unix(0, finishedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}
