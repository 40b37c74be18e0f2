package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// credentialProfile is one named entry in the credentials file.
type credentialProfile struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ResolveCredentials fills empty database fields from the secret store,
// then from the credentials file. Values already set are never replaced.
func ResolveCredentials(cfg *Config) error {
	db := &cfg.Database

	if dir := cfg.Credentials.SecretsDir; dir != "" {
		for name, dst := range map[string]*string{
			"db_host":     &db.Host,
			"db_name":     &db.Name,
			"db_user":     &db.User,
			"db_password": &db.Password,
		} {
			if *dst != "" {
				continue
			}
			val, err := readSecret(dir, name)
			if err != nil {
				return err
			}
			*dst = val
		}
		if db.Port == 0 {
			val, err := readSecret(dir, "db_port")
			if err != nil {
				return err
			}
			if val != "" {
				port, err := strconv.Atoi(val)
				if err != nil {
					return eris.Wrapf(err, "config: secret db_port")
				}
				db.Port = port
			}
		}
	}

	if cfg.Credentials.File == "" || complete(db) {
		return nil
	}
	profile, err := readProfile(cfg.Credentials.File, cfg.Credentials.Profile)
	if err != nil || profile == nil {
		return err
	}
	fill(&db.Host, profile.Host)
	fill(&db.Name, profile.Database)
	fill(&db.User, profile.Username)
	fill(&db.Password, profile.Password)
	if db.Port == 0 {
		db.Port = profile.Port
	}
	zap.L().Debug("config: database credentials read from file",
		zap.String("file", cfg.Credentials.File),
		zap.String("profile", cfg.Credentials.Profile),
	)
	return nil
}

// readSecret returns the trimmed content of dir/name, or "" if it does not exist.
func readSecret(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "config: read secret %s", name)
	}
	return strings.TrimSpace(string(b)), nil
}

// readProfile loads one profile from a YAML credentials file. A missing file
// or profile is not an error.
func readProfile(path, name string) (*credentialProfile, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "config: read credentials file %s", path)
	}

	var profiles map[string]credentialProfile
	if err := yaml.Unmarshal(b, &profiles); err != nil {
		return nil, eris.Wrapf(err, "config: parse credentials file %s", path)
	}
	p, ok := profiles[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func complete(db *DatabaseConfig) bool {
	return db.Host != "" && db.Name != "" && db.User != "" && db.Password != "" && db.Port != 0
}

func fill(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}
