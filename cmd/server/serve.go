package main

import (
	"github.com/spf13/cobra"

	"arena-bots/server/internal/app"
)

func ServeCmd() *cobra.Command {
	var configFile string
	c := &cobra.Command{
		Use:   "serve",
		Short: "run the bots in real time with the debug http surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), app.Options{ConfigPath: configFile})
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "config file (default $"+app.EnvConfig+")")
	return c
}
