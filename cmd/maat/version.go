package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "maat %s", cfg.Commit)
		if cfg.BuildTime != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " (built %s)", cfg.BuildTime)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}
