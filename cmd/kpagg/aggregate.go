package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hupe1980/kpagg"
	"github.com/hupe1980/kpagg/config"
	"github.com/hupe1980/kpagg/pairs"
	"github.com/spf13/cobra"
)

type aggregateFlags struct {
	store        storeFlags
	pairsPath    string
	configPath   string
	preset       string
	maxKeypoints int
	required     string
	overwrite    bool
	strict       bool
	reportPath   string
}

func newAggregateCmd(rf *rootFlags) *cobra.Command {
	var af aggregateFlags

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate correspondences into canonical keypoints",
		Long: `Aggregate reads the correspondences of every listed pair, consolidates the
keypoints of each image and writes keypoint sets and match arrays back to the
store. Interrupted runs resume from their last checkpoint.

Examples:
  kpagg aggregate --pairs pairs.txt --data ./out --preset loftr_aachen
  kpagg aggregate --pairs pairs.txt --config kpagg.yaml --max-keypoints 4096`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAggregate(cmd, rf, &af)
		},
	}

	fs := cmd.Flags()
	af.store.register(fs)
	fs.StringVar(&af.pairsPath, "pairs", "", "pair list, one \"query ref\" pair per line")
	fs.StringVar(&af.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&af.preset, "preset", "", "named configuration: "+strings.Join(config.Presets(), ", "))
	fs.IntVar(&af.maxKeypoints, "max-keypoints", 0, "per-image keypoint budget, -1 disables truncation")
	fs.StringVar(&af.required, "required", "", "file listing the images to consolidate, one per line")
	fs.BoolVar(&af.overwrite, "overwrite", false, "re-consolidate images that already have keypoints")
	fs.BoolVar(&af.strict, "strict", false, "fail when a pair has no correspondences")
	fs.StringVar(&af.reportPath, "report", "", "write the run report as JSON to this file")
	_ = cmd.MarkFlagRequired("pairs")
	return cmd
}

func (af *aggregateFlags) resolve(cmd *cobra.Command) (*config.File, kpagg.Config, error) {
	file := &config.File{}
	if af.configPath != "" {
		var err error
		if file, err = config.Load(af.configPath); err != nil {
			return nil, kpagg.Config{}, err
		}
	}
	if af.preset != "" {
		file.Preset = af.preset
	}
	if cmd.Flags().Changed("max-keypoints") {
		file.MaxKeypoints = &af.maxKeypoints
	}
	if af.overwrite {
		file.Overwrite = true
	}
	af.store.apply(&file.Store)

	cfg, err := file.Engine()
	if err != nil {
		return nil, kpagg.Config{}, err
	}
	return file, cfg, nil
}

func runAggregate(cmd *cobra.Command, rf *rootFlags, af *aggregateFlags) error {
	file, cfg, err := af.resolve(cmd)
	if err != nil {
		return err
	}

	list, err := pairs.ReadFile(af.pairsPath)
	if err != nil {
		return fmt.Errorf("failed to read pairs: %w", err)
	}
	var required []string
	if af.required != "" {
		if required, err = readNames(af.required); err != nil {
			return fmt.Errorf("failed to read required images: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, file.Store)
	if err != nil {
		return err
	}

	opts := []kpagg.Option{
		kpagg.WithConfig(cfg),
		kpagg.WithLogger(rf.logger(cmd.ErrOrStderr())),
	}
	if file.Store.Compression != "" {
		opts = append(opts, kpagg.WithCompression(file.Store.Compression))
	}
	if af.strict {
		opts = append(opts, kpagg.WithStrict())
	}

	agg, err := kpagg.Open(ctx, backend, opts...)
	if err != nil {
		return err
	}
	defer agg.Close()

	report, runErr := agg.Aggregate(ctx, kpagg.Input{Pairs: list, Required: required})
	if report != nil {
		if err := writeReport(cmd, af.reportPath, report); err != nil {
			return err
		}
	}
	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "interrupted, run again to resume")
	}
	return runErr
}

func writeReport(cmd *cobra.Command, path string, report *kpagg.Report) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pairs: %d processed, %d resumed, %d missing\n",
		report.Processed, report.Resumed, len(report.MissingPairs))
	fmt.Fprintf(out, "images: %d finalized, %.1f keypoints on average, %d truncated\n",
		report.Finalized, report.AvgKeypoints(), len(report.Truncated))
	if report.Reassigned > 0 {
		fmt.Fprintf(out, "reassigned: %d pairs, %d without matches\n",
			report.Reassigned, len(report.EmptyAfterReassign))
	}
	if path == "" {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := printJSON(f, report); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

func readNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	names := []string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names, sc.Err()
}
