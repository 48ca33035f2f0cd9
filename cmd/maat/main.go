package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/maat/internal/config"
	"github.com/soaringjerry/maat/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "maat",
	Short: "MAAT runs word-valence experiments over the web",
	Long: `MAAT serves the participant run flow and the researcher API, and
provides maintenance commands for the SQLite store and exported results.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional .env file loaded before MAAT_* variables")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, exportCmd, researcherCmd, versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and builds the logger for a command.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level, cfg.LogFormat), nil
}
