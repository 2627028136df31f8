// Command hostelctl runs one-off administrative tasks against the hostel
// attendance database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hostelattendance/internal/config"
	"hostelattendance/internal/logging"
)

var configFile string

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "hostelctl",
	Short: "Administer the hostel attendance service",
	Long: `hostelctl runs maintenance tasks against the attendance database.

Available subcommands:
  migrate      - Create or update the database schema
  create-admin - Create an administrator account
  export       - Write an attendance report to a file`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file overlaid on the environment (defaults to $CONFIG_FILE)")
	rootCmd.AddCommand(migrateCmd, createAdminCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves configuration for a subcommand.
func loadConfig() (config.App, *zap.Logger, error) {
	cfg, err := config.LoadWithFile()
	if err != nil {
		return cfg, nil, err
	}
	if configFile != "" {
		if cfg, err = config.Overlay(cfg, configFile); err != nil {
			return cfg, nil, err
		}
		if err = cfg.Validate(); err != nil {
			return cfg, nil, err
		}
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}
