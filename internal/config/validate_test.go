package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Database = DatabaseConfig{Host: "h", Port: 5432, Name: "n", User: "u", SSLMode: "require"}
	cfg.Store.Driver = "postgres"
	cfg.Store.SQLitePath = "engagement.db"
	cfg.ObjectStore.Bucket = "capstone-impacta"
	cfg.ObjectStore.PageSize = 1000
	cfg.Dashboard.CacheTTLSecs = 600
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"backfill", "migrate", "status", "serve", "export"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateBackfill_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Database = DatabaseConfig{Port: 5432}
	cfg.ObjectStore.Bucket = ""

	err := cfg.Validate("backfill")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST is required")
	assert.Contains(t, err.Error(), "DB_NAME is required")
	assert.Contains(t, err.Error(), "DB_USER is required")
	assert.Contains(t, err.Error(), "objectstore.bucket is required")
}

func TestValidate_PlaintextTransportRejected(t *testing.T) {
	for _, mode := range []string{"disable", "allow", "prefer", "bogus"} {
		t.Run(mode, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Database.SSLMode = mode

			err := cfg.Validate("migrate")
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "DB_SSLMODE")
		})
	}
}

func TestValidate_EncryptedTransportAccepted(t *testing.T) {
	for _, mode := range []string{"", "require", "verify-ca", "verify-full"} {
		t.Run(mode, func(t *testing.T) {
			cfg := validDefaults()
			cfg.Database.SSLMode = mode

			assert.NoError(t, cfg.Validate("migrate"))
		})
	}
}

func TestValidate_SQLiteSkipsDatabase(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Database = DatabaseConfig{}

	assert.NoError(t, cfg.Validate("backfill"))

	cfg.Store.SQLitePath = ""
	err := cfg.Validate("backfill")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.sqlite_path")
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateServe_CacheTTL(t *testing.T) {
	cfg := validDefaults()
	cfg.Dashboard.CacheTTLSecs = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dashboard.cache_ttl_secs")
}

func TestValidateBackfill_ObjectStoreBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.ObjectStore.PageSize = 5000
	cfg.ObjectStore.MaxRPS = -1

	err := cfg.Validate("backfill")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "objectstore.page_size")
	assert.Contains(t, err.Error(), "objectstore.max_rps")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
