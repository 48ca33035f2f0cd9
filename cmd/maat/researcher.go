package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/maat/internal/services"
)

var researcherCmd = &cobra.Command{
	Use:   "researcher",
	Short: "Manage researcher accounts",
}

var researcherAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a researcher account",
	Long: `Creates a researcher who can sign in at /auth/login/. The password comes
from --password, then MAAT_RESEARCHER_PASSWORD, then one line of stdin.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("MAAT_RESEARCHER_PASSWORD")
		}
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no password given")
			}
			password = strings.TrimRight(line, "\r\n")
		}

		store, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer store.Close()

		u, err := services.NewAuthService(store, nil, cfg.TokenTTL).CreateResearcher(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created researcher %s (%s)\n", u.Email, u.ID)
		return nil
	},
}

func init() {
	researcherAddCmd.Flags().String("email", "", "Researcher email")
	researcherAddCmd.Flags().String("password", "", "Researcher password (at least 8 characters)")
	_ = researcherAddCmd.MarkFlagRequired("email")
	researcherCmd.AddCommand(researcherAddCmd)
}
