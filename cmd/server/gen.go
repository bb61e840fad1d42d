package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/levelgen"
)

func GenCmd() *cobra.Command {
	var (
		outPath string
		cfg     = levelgen.DefaultConfig()
	)
	c := &cobra.Command{
		Use:   "gen",
		Short: "generate a grid level and write it as an area file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("gen: missing --out path")
			}
			lvl, err := levelgen.Generate(cfg)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("gen: create output dir: %w", err)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("gen: %w", err)
			}
			if err := aas.Encode(f, lvl.World); err != nil {
				f.Close()
				return fmt.Errorf("gen: encode: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("gen: %w", err)
			}
			info, err := os.Stat(outPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d areas, %d reachabilities, %s\n",
				outPath, lvl.World.NumAreas()-1, lvl.World.NumReachabilities(), humanize.Bytes(uint64(info.Size())))
			for _, item := range lvl.Items {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %v\n", item.Kind, item.Origin)
			}
			return nil
		},
	}
	c.Flags().StringVar(&outPath, "out", "", "output area file")
	c.Flags().IntVar(&cfg.Size, "size", cfg.Size, "cells per side")
	c.Flags().IntVar(&cfg.Levels, "levels", cfg.Levels, "distinct floor heights")
	c.Flags().Float64Var(&cfg.HoleRatio, "holes", cfg.HoleRatio, "noise value under which a cell is solid")
	c.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "noise seed")
	c.Flags().IntVar(&cfg.Items, "items", cfg.Items, "item placements to suggest")
	return c
}
