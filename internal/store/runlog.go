package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/capstone-impacta/engagement-cli/internal/db"
)

// PostgresRunLog provides read/write access to backfill_runs and backfill_files.
type PostgresRunLog struct {
	pool db.Pool
}

// NewPostgresRunLog creates a run log backed by the given connection pool.
func NewPostgresRunLog(pool db.Pool) *PostgresRunLog {
	return &PostgresRunLog{pool: pool}
}

// Start records the beginning of a backfill run and returns its ID.
func (l *PostgresRunLog) Start(ctx context.Context, prefix string) (string, error) {
	id := uuid.New().String()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO backfill_runs (id, prefix, status, started_at)
		 VALUES ($1, $2, $3, now())`,
		id, prefix, RunRunning,
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start run for %s", prefix)
	}
	return id, nil
}

// RecordFile records one object's outcome.
func (l *PostgresRunLog) RecordFile(ctx context.Context, runID string, f FileEntry) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO backfill_files (run_id, object_key, table_name, outcome, rows, error)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, f.Key, nullable(f.Table), f.Outcome, f.Rows, nullable(f.Error),
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: record file %s", f.Key)
	}
	return nil
}

// Finish marks a run as complete or aborted with its totals.
func (l *PostgresRunLog) Finish(ctx context.Context, runID string, res RunResult) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE backfill_runs
		 SET status = $1, completed_at = now(), files = $2, loaded = $3, failed = $4, rows_upserted = $5, error = $6
		 WHERE id = $7`,
		res.Status, res.Files, res.Loaded, res.Failed, res.Rows, nullable(res.Error), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: finish run %s", runID)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (l *PostgresRunLog) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, prefix, status, started_at, completed_at, files, loaded, failed, rows_upserted, error
		 FROM backfill_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var completedAt *time.Time
		var errStr *string
		if err := rows.Scan(&e.ID, &e.Prefix, &e.Status, &e.StartedAt, &completedAt, &e.Files, &e.Loaded, &e.Failed, &e.Rows, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		e.CompletedAt = completedAt
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
