package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/capstone-impacta/engagement-cli/internal/config"
	"github.com/capstone-impacta/engagement-cli/internal/fetcher"
	"github.com/capstone-impacta/engagement-cli/internal/resilience"
	"github.com/capstone-impacta/engagement-cli/internal/store"
)

// backend is an opened fact store and the run log kept next to it.
type backend struct {
	facts store.FactStore
	runs  store.RunLog
}

func (b *backend) Close() error {
	return b.facts.Close()
}

// openBackend opens the configured store and applies migrations.
func openBackend(ctx context.Context, c *config.Config) (*backend, error) {
	b, err := openStore(ctx, c, false)
	if err != nil {
		return nil, err
	}
	if err := b.facts.Migrate(ctx); err != nil {
		b.Close() //nolint:errcheck
		return nil, err
	}
	return b, nil
}

// openReadBackend opens the configured store for the dashboard. It neither
// migrates nor waits for Postgres to answer, so an unreachable server shows
// up as a failed dataset load.
func openReadBackend(ctx context.Context, c *config.Config) (*backend, error) {
	return openStore(ctx, c, true)
}

func openStore(ctx context.Context, c *config.Config, lazy bool) (*backend, error) {
	switch c.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(c.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &backend{facts: st, runs: st}, nil
	case "postgres":
		dsn, err := c.Database.DSN()
		if err != nil {
			return nil, err
		}
		poolCfg := &store.PoolConfig{
			MaxConns: c.Database.MaxConns,
			Bulk:     c.Backfill.Bulk,
		}
		var pg *store.PostgresStore
		if lazy {
			pg, err = store.OpenPostgres(ctx, dsn, poolCfg)
		} else {
			pg, err = store.NewPostgres(ctx, dsn, poolCfg, resilience.DefaultRetryConfig())
		}
		if err != nil {
			return nil, err
		}
		return &backend{facts: pg, runs: pg.RunLog()}, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// openObjectStore builds the S3 client from config.
func openObjectStore(c *config.Config) (*fetcher.S3Store, error) {
	return fetcher.NewS3Store(fetcher.S3Options{
		Bucket:    c.ObjectStore.Bucket,
		Region:    c.ObjectStore.Region,
		Endpoint:  c.ObjectStore.Endpoint,
		AccessKey: c.ObjectStore.AccessKey,
		SecretKey: c.ObjectStore.SecretKey,
		PageSize:  c.ObjectStore.PageSize,
		MaxRPS:    c.ObjectStore.MaxRPS,
	})
}
