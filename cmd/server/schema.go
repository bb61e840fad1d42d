package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"arena-bots/server/internal/config"
)

func SchemaCmd() *cobra.Command {
	var outPath string
	c := &cobra.Command{
		Use:   "schema",
		Short: "print the JSON schema of the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(config.Schema(), "", "  ")
			if err != nil {
				return fmt.Errorf("schema: marshal schema: %w", err)
			}
			data = append(data, '\n')
			if outPath == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("schema: create output dir: %w", err)
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("schema: write schema: %w", err)
			}
			return nil
		},
	}
	c.Flags().StringVar(&outPath, "out", "", "output path (default stdout)")
	return c
}
