package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"arena-bots/server/internal/aas"
)

func AASInfoCmd() *cobra.Command {
	var extra bool
	c := &cobra.Command{
		Use:   "aasinfo <file.aas>",
		Short: "print the header and lump sizes of an area file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			world, err := aas.LoadFile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file:     %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
			fmt.Fprintf(out, "version:  %d\n", world.Version())
			fmt.Fprintf(out, "checksum: %s\n", world.Checksum())
			fmt.Fprintf(out, "bsp:      %d\n\n", world.BSPChecksum())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "lump\tcount\t")
			for lump := 0; lump < aas.NumLumps; lump++ {
				fmt.Fprintf(tw, "%s\t%s\t\n", aas.LumpName(lump), humanize.Comma(int64(world.LumpCount(lump))))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if !extra {
				return nil
			}

			summary := world.ComputeExtraAreaData(aas.NewAreaTracer(world, 8), aas.DefaultClusterConfig())
			fmt.Fprintf(out, "\nledges %d, walls %d, junk %d, ramps %d\n", summary.Ledges, summary.Walls, summary.Junk, summary.Ramps)
			fmt.Fprintf(out, "floor clusters %d, stairs clusters %d\n", summary.FloorClusters, summary.StairsClusters)
			return nil
		},
	}
	c.Flags().BoolVar(&extra, "extra", false, "also derive area flags and clusters")
	return c
}
