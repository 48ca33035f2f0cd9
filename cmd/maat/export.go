package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/maat/internal/services"
)

var exportCmd = &cobra.Command{
	Use:   "export [zip|workbook]",
	Short: "Bundle exported results",
	Long: `zip rebuilds all_responses.zip in MAAT_RESULTS_DIR from the export
manifest. workbook writes every response into an xlsx file (--out, default
all_responses.xlsx in the results directory).`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"zip", "workbook"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		exports := services.NewExportService(store, cfg.ResultsDir).WithLogger(logger)

		switch args[0] {
		case "zip":
			res, err := exports.ExportAllZip(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s with %d files\n", filepath.Join(exports.Dir(), res.Filename), res.Rows)
		case "workbook":
			res, err := exports.ExportWorkbook(cmd.Context())
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			if out == "" {
				if err := os.MkdirAll(exports.Dir(), 0o755); err != nil {
					return fmt.Errorf("create results dir: %w", err)
				}
				out = filepath.Join(exports.Dir(), res.Filename)
			}
			if err := os.WriteFile(out, res.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s with %d responses\n", out, res.Rows)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "Workbook destination path")
}
