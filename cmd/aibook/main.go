package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "aibook",
		Short:         "Turn an EPUB into an AI-summarized pocket edition",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(processCmd())
	root.AddCommand(summarizeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
