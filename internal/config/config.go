package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultDBPort is used when no layer supplies a port.
const DefaultDBPort = 5432

// Config holds the full application configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database" mapstructure:"database"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore" mapstructure:"objectstore"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Backfill    BackfillConfig    `yaml:"backfill" mapstructure:"backfill"`
	Dashboard   DashboardConfig   `yaml:"dashboard" mapstructure:"dashboard"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Name     string `yaml:"name" mapstructure:"name"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// CredentialsConfig locates the fallback credential layers.
type CredentialsConfig struct {
	SecretsDir string `yaml:"secrets_dir" mapstructure:"secrets_dir"`
	File       string `yaml:"file" mapstructure:"file"`
	Profile    string `yaml:"profile" mapstructure:"profile"`
}

// ObjectStoreConfig configures the S3 bucket the backfill reads from.
type ObjectStoreConfig struct {
	Bucket    string  `yaml:"bucket" mapstructure:"bucket"`
	Prefix    string  `yaml:"prefix" mapstructure:"prefix"`
	Suffix    string  `yaml:"suffix" mapstructure:"suffix"`
	Region    string  `yaml:"region" mapstructure:"region"`
	Endpoint  string  `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string  `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string  `yaml:"secret_key" mapstructure:"secret_key"`
	PageSize  int64   `yaml:"page_size" mapstructure:"page_size"`
	MaxRPS    float64 `yaml:"max_rps" mapstructure:"max_rps"`
}

// StoreConfig selects the fact store backend.
type StoreConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// BackfillConfig configures the loader.
type BackfillConfig struct {
	Bulk bool `yaml:"bulk" mapstructure:"bulk"`
}

// DashboardConfig configures the dashboard dataset cache.
type DashboardConfig struct {
	CacheTTLSecs        int `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// CacheTTL returns the cache window as a duration.
func (d DashboardConfig) CacheTTL() time.Duration {
	return time.Duration(d.CacheTTLSecs) * time.Second
}

// BreakerCooldown returns how long the store breaker stays open.
func (d DashboardConfig) BreakerCooldown() time.Duration {
	return time.Duration(d.BreakerCooldownSecs) * time.Second
}

// ServerConfig configures the dashboard HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MetricsConfig configures Prometheus push for batch runs.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads .env, config.yaml and the environment, then fills missing
// database credentials from the secret store and credentials file.
func Load() (*Config, error) {
	// .env never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENGAGEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"database.host":     "DB_HOST",
		"database.port":     "DB_PORT",
		"database.name":     "DB_NAME",
		"database.user":     "DB_USER",
		"database.password": "DB_PASSWORD",
		"database.sslmode":  "DB_SSLMODE",
	} {
		if err := v.BindEnv(key, env, "ENGAGEMENT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", env)
		}
	}

	// Defaults
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("credentials.secrets_dir", "/run/secrets")
	v.SetDefault("credentials.file", "credentials.yaml")
	v.SetDefault("credentials.profile", "capstone")
	v.SetDefault("objectstore.bucket", "capstone-impacta")
	v.SetDefault("objectstore.prefix", "Capstone/gold/")
	v.SetDefault("objectstore.suffix", ".csv")
	v.SetDefault("objectstore.region", "us-east-1")
	v.SetDefault("objectstore.page_size", 1000)
	v.SetDefault("objectstore.max_rps", 0)
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "engagement.db")
	v.SetDefault("backfill.bulk", false)
	v.SetDefault("dashboard.cache_ttl_secs", 600)
	v.SetDefault("dashboard.breaker_threshold", 3)
	v.SetDefault("dashboard.breaker_cooldown_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("metrics.job", "engagement_backfill")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := ResolveCredentials(&cfg); err != nil {
		return nil, err
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}

	return &cfg, nil
}

// DSN assembles the Postgres connection string.
func (d DatabaseConfig) DSN() (string, error) {
	var missing []string
	if d.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if d.Name == "" {
		missing = append(missing, "DB_NAME")
	}
	if d.User == "" {
		missing = append(missing, "DB_USER")
	}
	if len(missing) > 0 {
		return "", eris.Errorf("config: database: %s required", strings.Join(missing, ", "))
	}

	port := d.Port
	if port == 0 {
		port = DefaultDBPort
	}
	mode := d.SSLMode
	if mode == "" {
		mode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {mode}}.Encode(),
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	return u.String(), nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
