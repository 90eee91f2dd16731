package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the last persisted status.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if err := cfg.ValidateState(); err != nil {
			return err
		}

		store, closeStore, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		status, found, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintln(cmd.OutOrStdout(), "no status recorded yet")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}
