package main

import (
	"github.com/spf13/cobra"

	"github.com/felipepimentel/aibook/internal/pocket"
	"github.com/felipepimentel/aibook/internal/progress"
)

func summarizeCmd() *cobra.Command {
	var f jobFlags
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize an EPUB chapter by chapter into Markdown and EPUB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			// Debug logs and the bar would overwrite each other.
			sink := progress.Sink(progress.NewBar(cmd.ErrOrStderr()))
			if cfg.Verbose {
				sink = progress.Discard
			}

			reports, err := pocket.Summarize(cmd.Context(), cfg, pocket.Deps{Sink: sink, Logger: log})
			if len(reports) > 0 {
				printJSON(cmd.OutOrStdout(), reports)
			}
			return err
		},
	}
	f.bind(cmd, true)
	return cmd
}
