package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tracktable/tracktable/internal/config"
)

// AddConnectionFlags registers the connection override flags shared by
// every command that talks to a database.
func AddConnectionFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("dialect", "", "database dialect (postgres or mysql)")
	flags.String("host", "", "database host")
	flags.Int("port", 0, "database port")
	flags.String("user", "", "database user")
	flags.String("password", "", "database password")
	flags.String("database", "", "database name")
	flags.String("sslmode", "", "postgres sslmode")
	flags.Duration("timeout", 0, "connect timeout")
	flags.String("schema", "", "schema to introspect")
}

// ApplyOverrides copies explicitly set flags onto the loaded config.
// Unchanged flags leave the file/env/default value in place.
func ApplyOverrides(cmd *cobra.Command, cfg *config.Config) {
	overrideString(cmd, "dialect", &cfg.Database.Dialect)
	overrideString(cmd, "host", &cfg.Database.Host)
	overrideInt(cmd, "port", &cfg.Database.Port)
	overrideString(cmd, "user", &cfg.Database.User)
	overrideString(cmd, "password", &cfg.Database.Password)
	overrideString(cmd, "database", &cfg.Database.Database)
	overrideString(cmd, "sslmode", &cfg.Database.SSLMode)
	overrideDuration(cmd, "timeout", &cfg.Database.Timeout)
	overrideString(cmd, "schema", &cfg.App.DefaultSchema)
}

func overrideString(cmd *cobra.Command, key string, dst *string) {
	if f := cmd.Flags().Lookup(key); f != nil && f.Changed {
		if value, err := cmd.Flags().GetString(key); err == nil {
			*dst = value
		}
	}
}

func overrideInt(cmd *cobra.Command, key string, dst *int) {
	if f := cmd.Flags().Lookup(key); f != nil && f.Changed {
		if value, err := cmd.Flags().GetInt(key); err == nil {
			*dst = value
		}
	}
}

func overrideBool(cmd *cobra.Command, key string, dst *bool) {
	if f := cmd.Flags().Lookup(key); f != nil && f.Changed {
		if value, err := cmd.Flags().GetBool(key); err == nil {
			*dst = value
		}
	}
}

func overrideDuration(cmd *cobra.Command, key string, dst *time.Duration) {
	if f := cmd.Flags().Lookup(key); f != nil && f.Changed {
		if value, err := cmd.Flags().GetDuration(key); err == nil {
			*dst = value
		}
	}
}
