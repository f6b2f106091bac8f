package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one reminder sweep and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		n, err := a.usecases.Reminders.Sweep(cmd.Context())
		if cerr := a.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "processed %d reminders\n", n)
		return nil
	},
}
