package main

import (
	"fmt"
	"os"

	"payhub/internal/config"
	"payhub/internal/db"
	"payhub/internal/logger"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var Version = "dev"

// env holds the constructors commands use to reach config and the database.
type env struct {
	loadConfig func() (*config.Config, error)
	openDB     func(cfg *config.Config) (*sqlx.DB, error)
}

func defaultEnv() *env {
	return &env{
		loadConfig: config.Load,
		openDB: func(cfg *config.Config) (*sqlx.DB, error) {
			return db.Connect(cfg.DatabaseURL)
		},
	}
}

// withDB loads config, connects, and closes the connection after fn.
func (e *env) withDB(fn func(cfg *config.Config, database *sqlx.DB) error) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	database, err := e.openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(cfg, database)
}

func newRootCmd(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "payhubctl",
		Short:         "Operator tooling for the payhub wallet service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd(e))
	rootCmd.AddCommand(gatewaysCmd(e))
	rootCmd.AddCommand(ordersCmd(e))
	rootCmd.AddCommand(tokenCmd(e))

	return rootCmd
}

func main() {
	logger.Init()

	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
