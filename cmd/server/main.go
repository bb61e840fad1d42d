package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const VERSION = "0.4.0"

func main() {
	root := &cobra.Command{
		Use:           "server",
		Short:         "arena bot server",
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		ServeCmd(),
		SimulateCmd(),
		AASInfoCmd(),
		GenCmd(),
		SchemaCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
