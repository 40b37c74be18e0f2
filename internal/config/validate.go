package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration needed by the given command is
// present. Modes: backfill, migrate, serve, export, status.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "backfill":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateObjectStore()...)
	case "migrate", "status":
		errs = append(errs, c.validateStore()...)
	case "serve":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateDashboard()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "export":
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateDashboard()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "postgres":
		var errs []string
		if c.Database.Host == "" {
			errs = append(errs, "DB_HOST is required")
		}
		if c.Database.Name == "" {
			errs = append(errs, "DB_NAME is required")
		}
		if c.Database.User == "" {
			errs = append(errs, "DB_USER is required")
		}
		if c.Database.Port <= 0 {
			errs = append(errs, "DB_PORT must be > 0")
		}
		switch c.Database.SSLMode {
		case "", "require", "verify-ca", "verify-full":
		default:
			errs = append(errs, "DB_SSLMODE must be require, verify-ca or verify-full")
		}
		return errs
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required for the sqlite driver"}
		}
		return nil
	default:
		return []string{"store.driver must be postgres or sqlite"}
	}
}

func (c *Config) validateObjectStore() []string {
	var errs []string
	if c.ObjectStore.Bucket == "" {
		errs = append(errs, "objectstore.bucket is required")
	}
	if c.ObjectStore.PageSize < 0 || c.ObjectStore.PageSize > 1000 {
		errs = append(errs, "objectstore.page_size must be between 0 and 1000")
	}
	if c.ObjectStore.MaxRPS < 0 {
		errs = append(errs, "objectstore.max_rps must be >= 0")
	}
	return errs
}

func (c *Config) validateDashboard() []string {
	if c.Dashboard.CacheTTLSecs <= 0 {
		return []string{"dashboard.cache_ttl_secs must be > 0"}
	}
	return nil
}
