package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/capstone-impacta/engagement-cli/internal/model"
	"github.com/capstone-impacta/engagement-cli/internal/route"
)

// SQLiteStore implements FactStore and RunLog using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteTimeLayout is fixed-width so timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// Dates are stored as YYYY-MM-DD text so they sort and compare lexically.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS gold_video_views_dia_rede_social (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	data_postagem     TEXT    NOT NULL,
	rede_social       TEXT    NOT NULL,
	total_views       INTEGER NOT NULL DEFAULT 0 CHECK (total_views >= 0),
	total_likes       INTEGER NOT NULL DEFAULT 0 CHECK (total_likes >= 0),
	total_comentarios INTEGER NOT NULL DEFAULT 0 CHECK (total_comentarios >= 0),
	total_videos      INTEGER NOT NULL DEFAULT 0 CHECK (total_videos >= 0),
	UNIQUE (data_postagem, rede_social)
);

CREATE TABLE IF NOT EXISTS gold_video_views_dia_faculdade (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	data_postagem     TEXT    NOT NULL,
	faculdade         TEXT    NOT NULL,
	total_views       INTEGER NOT NULL DEFAULT 0 CHECK (total_views >= 0),
	total_likes       INTEGER NOT NULL DEFAULT 0 CHECK (total_likes >= 0),
	total_comentarios INTEGER NOT NULL DEFAULT 0 CHECK (total_comentarios >= 0),
	total_videos      INTEGER NOT NULL DEFAULT 0 CHECK (total_videos >= 0),
	UNIQUE (data_postagem, faculdade)
);

CREATE TABLE IF NOT EXISTS backfill_runs (
	id            TEXT PRIMARY KEY,
	prefix        TEXT    NOT NULL,
	status        TEXT    NOT NULL DEFAULT 'running',
	started_at    TEXT    NOT NULL,
	completed_at  TEXT,
	files         INTEGER NOT NULL DEFAULT 0,
	loaded        INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	rows_upserted INTEGER NOT NULL DEFAULT 0,
	error         TEXT
);

CREATE TABLE IF NOT EXISTS backfill_files (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL REFERENCES backfill_runs(id) ON DELETE CASCADE,
	object_key  TEXT    NOT NULL,
	table_name  TEXT,
	outcome     TEXT    NOT NULL,
	rows        INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	recorded_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE INDEX IF NOT EXISTS idx_backfill_runs_started_at ON backfill_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_backfill_files_run_id ON backfill_files(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteUpsertSQL(dest route.Destination) string {
	cols := dest.Table.Columns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	sets := []string{}
	for _, c := range cols[2:] {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s, %s) DO UPDATE SET %s",
		dest.TableName, strings.Join(cols, ", "), placeholders,
		model.ColDate, dest.CategoryColumn, strings.Join(sets, ", "),
	)
}

// UpsertFacts applies recs to dest in one transaction.
func (s *SQLiteStore) UpsertFacts(ctx context.Context, dest route.Destination, recs []model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertSQL(dest))
	if err != nil {
		return 0, classifySQLite(dest.TableName, eris.Wrapf(err, "sqlite: prepare upsert %s", dest.TableName))
	}
	defer stmt.Close() //nolint:errcheck

	var affected int64
	for i, r := range recs {
		res, err := stmt.ExecContext(ctx,
			r.Date.Format(time.DateOnly), r.Category, r.Views, r.Likes, r.Comments, r.VideoCount,
		)
		if err != nil {
			return 0, classifySQLite(dest.TableName, &RecordError{Table: dest.TableName, Index: i, Record: r, Err: err})
		}
		n, _ := res.RowsAffected()
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrapf(err, "sqlite: commit %s", dest.TableName)
	}
	return affected, nil
}

// LoadFacts returns every row of t ordered by date then category.
func (s *SQLiteStore) LoadFacts(ctx context.Context, t model.Table) ([]model.FactRow, error) {
	q := fmt.Sprintf(
		`SELECT %s, %s, %s, %s, %s, %s FROM %s ORDER BY %s, %s`,
		model.ColDate, t.CategoryColumn(), model.ColViews, model.ColLikes, model.ColComments, model.ColVideos,
		t.Name(), model.ColDate, t.CategoryColumn(),
	)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load %s", t.Name())
	}
	defer rows.Close() //nolint:errcheck

	var out []model.FactRow
	for rows.Next() {
		var f model.FactRow
		var date string
		if err := rows.Scan(&date, &f.Category, &f.Views, &f.Likes, &f.Comments, &f.VideoCount); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", t.Name())
		}
		f.Date, err = time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse date %q in %s", date, t.Name())
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate rows")
}

func classifySQLite(table string, err error) error {
	if err != nil && strings.Contains(err.Error(), "constraint failed") {
		return &ConstraintViolation{Table: table, Err: err}
	}
	return err
}

// Start records the beginning of a backfill run and returns its ID.
func (s *SQLiteStore) Start(ctx context.Context, prefix string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backfill_runs (id, prefix, status, started_at) VALUES (?, ?, ?, ?)`,
		id, prefix, RunRunning, time.Now().UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: start run for %s", prefix)
	}
	return id, nil
}

// RecordFile records one object's outcome.
func (s *SQLiteStore) RecordFile(ctx context.Context, runID string, f FileEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backfill_files (run_id, object_key, table_name, outcome, rows, error) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, f.Key, nullable(f.Table), f.Outcome, f.Rows, nullable(f.Error),
	)
	return eris.Wrapf(err, "sqlite: record file %s", f.Key)
}

// Finish marks a run as complete or aborted with its totals.
func (s *SQLiteStore) Finish(ctx context.Context, runID string, res RunResult) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE backfill_runs
		 SET status = ?, completed_at = ?, files = ?, loaded = ?, failed = ?, rows_upserted = ?, error = ?
		 WHERE id = ?`,
		res.Status, time.Now().UTC().Format(sqliteTimeLayout), res.Files, res.Loaded, res.Failed, res.Rows, nullable(res.Error), runID,
	)
	return eris.Wrapf(err, "sqlite: finish run %s", runID)
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prefix, status, started_at, completed_at, files, loaded, failed, rows_upserted, error
		 FROM backfill_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var startedAt string
		var completedAt, errStr sql.NullString
		if err := rows.Scan(&e.ID, &e.Prefix, &e.Status, &startedAt, &completedAt, &e.Files, &e.Loaded, &e.Failed, &e.Rows, &errStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		e.StartedAt, _ = time.Parse(sqliteTimeLayout, startedAt)
		if completedAt.Valid {
			t, _ := time.Parse(sqliteTimeLayout, completedAt.String)
			e.CompletedAt = &t
		}
		e.Error = errStr.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}
