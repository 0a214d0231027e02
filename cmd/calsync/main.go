package main

import (
	"fmt"
	"os"

	"github.com/pysugar/calsync/internal/config"
	"github.com/pysugar/calsync/internal/db"
	"github.com/pysugar/calsync/internal/logging"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "calsync",
		Short: "Outlook calendar connection service",
		Long: `calsync connects user accounts to their Outlook calendars through the
Microsoft identity platform and keeps the stored credentials fresh.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: $CALSYNC_CONFIG or ./calsync.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newUserCommand())
	rootCmd.AddCommand(newSessionCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// bootstrap loads configuration, sets up logging and opens the database.
func bootstrap(cmd *cobra.Command) (*config.Config, *gorm.DB, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Log.Level
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = "debug"
	}
	logging.Setup(logging.Options{
		Level:      level,
		Format:     cfg.Log.Format,
		Categories: cfg.Log.Categories,
	})

	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, database, nil
}

// sessionSecret prefers the configured secret and falls back to the one
// persisted in the database.
func sessionSecret(cfg *config.Config, database *gorm.DB) (string, error) {
	if cfg.Session.Secret != "" {
		return cfg.Session.Secret, nil
	}
	return db.EnsureSessionSecret(database)
}
