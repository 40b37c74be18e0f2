package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/capstone-impacta/engagement-cli/internal/db"
	"github.com/capstone-impacta/engagement-cli/internal/model"
	"github.com/capstone-impacta/engagement-cli/internal/resilience"
	"github.com/capstone-impacta/engagement-cli/internal/route"
)

// PostgresStore implements FactStore using pgxpool.
type PostgresStore struct {
	pool db.Pool
	bulk bool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
	// Bulk stages each file through a temp table and COPY instead of
	// one INSERT per record.
	Bulk bool `yaml:"bulk" mapstructure:"bulk"`
}

// NewPostgres creates a PostgresStore with a connection pool. Pool creation
// and the initial ping are retried; a store that stays unreachable yields a
// *resilience.ConnectivityError.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, retry resilience.RetryConfig) (*PostgresStore, error) {
	pgxCfg, bulk, err := newPoolConfig(connString, poolCfg, 1)
	if err != nil {
		return nil, err
	}

	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("postgres: connect")
	}
	pool, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, &resilience.ConnectivityError{Op: "postgres: connect", Err: err}
	}
	return &PostgresStore{pool: pool, bulk: bulk}, nil
}

// OpenPostgres creates a PostgresStore whose pool connects on first use.
// It never dials, so an unreachable server surfaces on the first query
// instead of here.
func OpenPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, bulk, err := newPoolConfig(connString, poolCfg, 0)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool, bulk: bulk}, nil
}

func newPoolConfig(connString string, poolCfg *PoolConfig, minConns int32) (*pgxpool.Config, bool, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	bulk := false
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
		bulk = poolCfg.Bulk
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	return pgxCfg, bulk, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool, bulk bool) *PostgresStore {
	return &PostgresStore{pool: pool, bulk: bulk}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// RunLog returns the backfill run log backed by the same pool.
func (s *PostgresStore) RunLog() *PostgresRunLog {
	return NewPostgresRunLog(s.pool)
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return classifyPg("", migratePostgres(ctx, s.pool))
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func upsertConfig(dest route.Destination) db.UpsertConfig {
	return db.UpsertConfig{
		Table:        dest.TableName,
		Columns:      dest.Table.Columns(),
		ConflictKeys: []string{model.ColDate, dest.CategoryColumn},
	}
}

// UpsertFacts applies recs to dest in one transaction.
func (s *PostgresStore) UpsertFacts(ctx context.Context, dest route.Destination, recs []model.Record) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	cfg := upsertConfig(dest)

	if s.bulk {
		// A single INSERT ... SELECT cannot touch the same row twice.
		recs = dedupe(recs)
		rows := make([][]any, len(recs))
		for i, r := range recs {
			rows[i] = r.Values()
		}
		n, err := db.BulkUpsert(ctx, s.pool, cfg, rows)
		if err != nil {
			return 0, classifyPg(dest.TableName, err)
		}
		return n, nil
	}

	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = r.Values()
	}
	n, err := db.UpsertRows(ctx, s.pool, cfg, rows)
	if err != nil {
		var re *db.RowError
		if errors.As(err, &re) && re.Index < len(recs) {
			err = &RecordError{Table: dest.TableName, Index: re.Index, Record: recs[re.Index], Err: re.Err}
		}
		return 0, classifyPg(dest.TableName, err)
	}
	return n, nil
}

// LoadFacts returns every row of t ordered by date then category.
func (s *PostgresStore) LoadFacts(ctx context.Context, t model.Table) ([]model.FactRow, error) {
	sql := fmt.Sprintf(
		`SELECT %s, %s, %s, %s, %s, %s FROM %s ORDER BY %s, %s`,
		model.ColDate, t.CategoryColumn(), model.ColViews, model.ColLikes, model.ColComments, model.ColVideos,
		t.Name(), model.ColDate, t.CategoryColumn(),
	)
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, classifyPg(t.Name(), eris.Wrapf(err, "postgres: load %s", t.Name()))
	}
	defer rows.Close()

	var out []model.FactRow
	for rows.Next() {
		var f model.FactRow
		if err := rows.Scan(&f.Date, &f.Category, &f.Views, &f.Likes, &f.Comments, &f.VideoCount); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", t.Name())
		}
		f.Date = f.Date.UTC()
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPg(t.Name(), eris.Wrapf(err, "postgres: load %s", t.Name()))
	}
	return out, nil
}

// classifyPg maps integrity-class SQLSTATEs to *ConstraintViolation and
// network failures to *resilience.ConnectivityError.
func classifyPg(table string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		return &ConstraintViolation{Table: table, Constraint: pgErr.ConstraintName, Err: err}
	}
	if resilience.IsConnectivity(err) {
		return resilience.AsConnectivity("postgres", err)
	}
	return err
}
