package main

import (
	"github.com/spf13/cobra"

	"github.com/felipepimentel/aibook/internal/pocket"
)

func processCmd() *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract chapter text and images without calling an AI provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateInputs(); err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			reports, err := pocket.Process(cmd.Context(), cfg, log)
			if len(reports) > 0 {
				printJSON(cmd.OutOrStdout(), reports)
			}
			return err
		},
	}
	f.bind(cmd, false)
	return cmd
}
