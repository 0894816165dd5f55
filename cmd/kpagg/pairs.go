package main

import (
	"fmt"

	"github.com/hupe1980/kpagg/pairs"
	"github.com/spf13/cobra"
)

func newPairsGPSCmd() *cobra.Command {
	var (
		positions string
		closest   int
		radius    float64
		output    string
	)

	cmd := &cobra.Command{
		Use:   "pairs-gps",
		Short: "Generate image pairs from capture positions",
		Long: `Pairs-gps pairs every image with its closest neighbours by great-circle
distance. Positions are read from a JSON array of {"name", "lat", "lon"}
objects; images at (0, 0) are treated as unlocated and skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := pairs.ReadPositionsFile(positions)
			if err != nil {
				return err
			}
			out := pairs.FromGPS(list, closest, radius)

			if output == "" {
				return pairs.Write(cmd.OutOrStdout(), out)
			}
			if err := pairs.WriteFile(output, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "found %d pairs\n", len(out))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&positions, "positions", "", "JSON file with image positions")
	fs.IntVar(&closest, "closest", 20, "number of neighbours per image")
	fs.Float64Var(&radius, "radius", 500, "maximum pair distance in meters")
	fs.StringVar(&output, "output", "", "pair list to write, stdout if empty")
	_ = cmd.MarkFlagRequired("positions")
	return cmd
}

