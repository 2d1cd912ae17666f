// Package config loads DuckDesk settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables prefixed with DUCKDESK_ (DUCKDESK_STORAGE_DIR,
// DUCKDESK_LOG_LEVEL, DUCKDESK_S3_REGION, ...). Command flags are applied last
// by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nickyhof/DuckDesk/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "DUCKDESK_"

type S3Config struct {
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

type Config struct {
	StorageDir      string        `yaml:"storage_dir" mapstructure:"storage_dir"`
	UploadDir       string        `yaml:"upload_dir" mapstructure:"upload_dir"`
	DefaultDatabase string        `yaml:"default_database" mapstructure:"default_database"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	HTTPAddr        string        `yaml:"http_addr" mapstructure:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr" mapstructure:"grpc_addr"`
	SweepSchedule   string        `yaml:"sweep_schedule" mapstructure:"sweep_schedule"`
	SweepMaxAge     string        `yaml:"sweep_max_age" mapstructure:"sweep_max_age"`
	RowCountWorkers int           `yaml:"row_count_workers" mapstructure:"row_count_workers"`
	ImportHosts     []string      `yaml:"import_hosts,omitempty" mapstructure:"import_hosts"`
	Log             logger.Config `yaml:"log" mapstructure:"log"`
	S3              S3Config      `yaml:"s3" mapstructure:"s3"`
}

// keys lists every setting that can be overridden from the environment.
var keys = []string{
	"storage_dir",
	"upload_dir",
	"default_database",
	"max_upload_bytes",
	"http_addr",
	"grpc_addr",
	"sweep_schedule",
	"sweep_max_age",
	"row_count_workers",
	"import_hosts",
	"log.level",
	"log.format",
	"log.add_source",
	"s3.region",
	"s3.endpoint",
	"s3.access_key",
	"s3.secret_key",
}

func Default() Config {
	return Config{
		StorageDir:      "databases",
		UploadDir:       "uploads",
		DefaultDatabase: "default",
		MaxUploadBytes:  16 * 1024 * 1024,
		HTTPAddr:        ":5000",
		SweepSchedule:   "@every 10m",
		SweepMaxAge:     "1h",
		RowCountWorkers: 4,
		Log: logger.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path (skipped when empty) over the defaults and
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	v := viper.New()
	found := false
	for _, key := range keys {
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if value, ok := lookup(name); ok {
			v.Set(key, value)
			found = true
		}
	}
	if !found {
		return nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.StorageDir == "" {
		return errors.New("storage_dir must not be empty")
	}
	if c.UploadDir == "" {
		return errors.New("upload_dir must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if _, err := c.MaxAge(); err != nil {
		return err
	}
	return nil
}

// MaxAge parses SweepMaxAge.
func (c Config) MaxAge() (time.Duration, error) {
	d, err := time.ParseDuration(c.SweepMaxAge)
	if err != nil {
		return 0, fmt.Errorf("invalid sweep_max_age %q: %w", c.SweepMaxAge, err)
	}
	return d, nil
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
