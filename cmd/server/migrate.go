package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pennytrail/internal/config"
	"pennytrail/internal/storage"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Run all pending migrations against the configured database.
PostgreSQL uses the versioned migrations; SQLite creates its schema on open.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn := v.GetString(config.KeyDatabase)
			if dsn == "" {
				return oops.Code("CONFIG_INVALID").Errorf("DB_CONNECTION_STRING is required")
			}

			cmd.Println("Running migrations...")
			store, err := storage.Open(cmd.Context(), dsn)
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
			}
			if err := store.Close(); err != nil {
				return err
			}

			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}
