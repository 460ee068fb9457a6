// Package config loads, validates, and persists tracktable settings.
// Precedence is flags over environment over config file over defaults;
// the environment prefix is TRACKTABLE.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tracktable/tracktable/pkg/dialect"
)

// Config holds runtime settings for a tracktable session.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	App      AppConfig      `mapstructure:"app" yaml:"app"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

type DatabaseConfig struct {
	Dialect  string        `mapstructure:"dialect" yaml:"dialect" validate:"required,oneof=postgres mysql"`
	Host     string        `mapstructure:"host" yaml:"host" validate:"required"`
	Port     int           `mapstructure:"port" yaml:"port" validate:"gt=0,lte=65535"`
	User     string        `mapstructure:"user" yaml:"user" validate:"required"`
	Password string        `mapstructure:"password" yaml:"password,omitempty"`
	Database string        `mapstructure:"database" yaml:"database" validate:"required"`
	SSLMode  string        `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type AppConfig struct {
	HistorySuffix       string        `mapstructure:"history_suffix" yaml:"history_suffix" validate:"required"`
	TimestampColumn     string        `mapstructure:"timestamp_column" yaml:"timestamp_column" validate:"required"`
	OperationColumn     string        `mapstructure:"operation_column" yaml:"operation_column" validate:"required"`
	UserColumn          string        `mapstructure:"user_column" yaml:"user_column" validate:"required"`
	DefaultSchema       string        `mapstructure:"default_schema" yaml:"default_schema,omitempty"`
	IncludeViews        bool          `mapstructure:"include_views" yaml:"include_views"`
	BackupBeforeChanges bool          `mapstructure:"backup_before_changes" yaml:"backup_before_changes"`
	BackupDir           string        `mapstructure:"backup_dir" yaml:"backup_dir,omitempty"`
	MaxRetries          int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryDelay          time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// Naming maps the app settings onto the synthesizer naming scheme.
func (c *Config) Naming() dialect.NamingConfig {
	return dialect.NamingConfig{
		HistorySuffix:   c.App.HistorySuffix,
		TimestampColumn: c.App.TimestampColumn,
		OperationColumn: c.App.OperationColumn,
		UserColumn:      c.App.UserColumn,
	}
}

// ConnConfig maps the database settings onto the adapter connection config.
func (c *Config) ConnConfig() dialect.ConnConfig {
	return dialect.ConnConfig{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Database: c.Database.Database,
		SSLMode:  c.Database.SSLMode,
		Timeout:  c.Database.Timeout,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dialect", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "postgres")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.timeout", 10*time.Second)

	v.SetDefault("app.history_suffix", "_hst")
	v.SetDefault("app.timestamp_column", "history_timestamp")
	v.SetDefault("app.operation_column", "history_operation")
	v.SetDefault("app.user_column", "history_user")
	v.SetDefault("app.default_schema", "")
	v.SetDefault("app.include_views", false)
	v.SetDefault("app.backup_before_changes", true)
	v.SetDefault("app.backup_dir", "")
	v.SetDefault("app.max_retries", 3)
	v.SetDefault("app.retry_delay", time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration from the given file path (optional), the
// TRACKTABLE_* environment, and built-in defaults, then validates the
// result. An empty path searches for tracktable.yaml in the working
// directory; a missing search file is not an error, a missing explicit
// file is.
func Load(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetEnvPrefix("TRACKTABLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tracktable")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var missing viper.ConfigFileNotFoundError
			if !errors.As(err, &missing) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			first := invalid[0]
			return &dialect.ValidationError{
				Field:   first.Namespace(),
				Message: fmt.Sprintf("failed %q validation", first.Tag()),
			}
		}
		return err
	}
	return nil
}

// Save writes the configuration as YAML, creating or replacing the file.
// Passwords are persisted verbatim; callers decide whether to blank them.
func Save(fs afero.Fs, path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := afero.WriteFile(fs, path, raw, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
