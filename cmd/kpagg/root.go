package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/kpagg"
	"github.com/hupe1980/kpagg/codec"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose bool
	jsonLog bool
}

func newRootCmd() *cobra.Command {
	var rf rootFlags

	cmd := &cobra.Command{
		Use:   "kpagg",
		Short: "Consolidate dense matches into canonical keypoints",
		Long: `kpagg turns per-pair dense correspondences into one canonical keypoint
set per image and a match array per image pair.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&rf.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&rf.jsonLog, "log-json", false, "log as JSON")

	cmd.AddCommand(
		newAggregateCmd(&rf),
		newInspectCmd(&rf),
		newPairsGPSCmd(),
	)
	return cmd
}

func (rf *rootFlags) logger(w io.Writer) *kpagg.Logger {
	level := slog.LevelInfo
	if rf.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if rf.jsonLog {
		return kpagg.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return kpagg.NewLogger(slog.NewTextHandler(w, opts))
}

func printJSON(w io.Writer, v any) error {
	data, err := codec.GoJSON{}.MarshalIndent(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
