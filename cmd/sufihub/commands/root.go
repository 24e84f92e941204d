// Package commands implements the sufihub command line.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-sufi-platform/internal/config"
	"github.com/tbourn/go-sufi-platform/internal/repo"
	"github.com/tbourn/go-sufi-platform/internal/sysutil"
)

// env is the state every subcommand starts from.
type env struct {
	cfg     config.Config
	version string
	logs    io.Closer
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Running it without a subcommand
// starts the server.
func NewRootCmd(version string) *cobra.Command {
	var envFile string
	e := &env{version: version}

	root := &cobra.Command{
		Use:   "sufihub",
		Short: "Sufi Hub API server and maintenance tasks",
		Long: `sufihub serves the content platform API: articles, comments, likes,
follows, notifications and private messages.

Configuration comes from the environment (optionally seeded from a .env
file). DATABASE_URL=postgres://... selects PostgreSQL, otherwise SQLite at
DB_PATH is used.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnv(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			closer, err := sysutil.ConfigureLogger(cfg.LogLevel, cfg.LogPretty, cfg.LogFile)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			e.cfg, e.logs = cfg, closer
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e.logs != nil {
				_ = e.logs.Close()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), e)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	root.AddCommand(
		newServeCmd(e),
		newMigrateCmd(e),
		newSweepCmd(e),
		newReconcileCmd(e),
	)
	return root
}

// loadDotEnv reads path into the environment without overriding variables
// that are already set. A missing default file is fine; a missing file the
// user asked for is not.
func loadDotEnv(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("env file: %w", err)
		}
		return nil
	}
	return godotenv.Load(path)
}

// openDB connects to the configured store and brings the schema up to date.
func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(repo.Options{
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.DBPath,
		LogLevel:    cfg.LogLevel,
		Tracing:     cfg.OTEL.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		_ = repo.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	driver := "sqlite"
	if repo.IsPostgresURL(cfg.DatabaseURL) {
		driver = "postgres"
	}
	log.Info().Str("driver", driver).Msg("database ready")
	return db, nil
}
