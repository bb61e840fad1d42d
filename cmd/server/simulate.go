package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"arena-bots/server/internal/app"
	"arena-bots/server/internal/scenario"
	"arena-bots/server/internal/telemetry"
)

func SimulateCmd() *cobra.Command {
	var (
		configFile   string
		scenarioFile string
		ticks        uint64
	)
	c := &cobra.Command{
		Use:   "simulate",
		Short: "play a scenario headless and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configFile)
			if err != nil {
				return err
			}
			sc, err := scenario.Load(scenarioFile)
			if err != nil {
				return err
			}
			if ticks > 0 {
				sc.Ticks = ticks
			}

			router, closeRouter, err := app.OpenRouter(cfg.RouterConfig(), cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			defer closeRouter(cmd.Context())

			behaviour := cfg.Behaviour()
			metrics := telemetry.NewCounters()
			result, err := scenario.Play(cmd.Context(), sc, scenario.Options{
				Publisher: router,
				Metrics:   metrics,
				Behaviour: &behaviour,
				Engine:    &cfg.Simulation.Engine,
				Loop:      cfg.Simulation.Loop,
			})
			if err != nil {
				return err
			}

			out := struct {
				scenario.Result
				Metrics map[string]uint64 `json:"metrics"`
			}{Result: result, Metrics: metrics.Snapshot()}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	c.Flags().StringVar(&configFile, "config", "", "config file (default $"+app.EnvConfig+")")
	c.Flags().StringVar(&scenarioFile, "scenario", "", "scenario yaml file")
	c.Flags().Uint64Var(&ticks, "ticks", 0, "override the scenario tick count")
	c.MarkFlagRequired("scenario")
	return c
}
