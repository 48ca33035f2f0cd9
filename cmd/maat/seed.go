package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/maat/internal/seed"
	"github.com/soaringjerry/maat/internal/services"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load experiments, trials and participants from a YAML file",
	Long: `Creates the experiments (with their trials) and participants listed in
FILE. Entries whose experiment_id or subject id already exist are skipped,
so the command can be re-run safely.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		f, err := seed.LoadFile(args[0])
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := seed.Apply(cmd.Context(), f, services.NewExperimentService(store), services.NewParticipantService(store))
		if err != nil {
			return err
		}
		logger.Info("seed applied", "file", args[0], "experiments", res.Experiments, "trials", res.Trials,
			"participants", res.Participants, "skipped", res.Skipped)
		fmt.Fprintf(cmd.OutOrStdout(), "experiments=%d trials=%d participants=%d skipped=%d\n",
			res.Experiments, res.Trials, res.Participants, res.Skipped)
		return nil
	},
}
