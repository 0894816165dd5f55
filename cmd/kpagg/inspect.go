package main

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kpagg"
	"github.com/hupe1980/kpagg/config"
	"github.com/spf13/cobra"
)

type inspectFlags struct {
	store storeFlags
	image string
	pair  []string
}

type matchesView struct {
	Name0   string    `json:"name0"`
	Name1   string    `json:"name1"`
	Matched int       `json:"matched"`
	Matches []int32   `json:"matches"`
	Scores  []float32 `json:"scores"`
}

func newInspectCmd(rf *rootFlags) *cobra.Command {
	var inf inspectFlags

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a stored keypoint set or match array",
		Long: `Inspect prints the keypoint set of an image or the match array of a pair as
JSON. Match arrays are printed in the orientation they are stored in.

Examples:
  kpagg inspect --data ./out --image db/1.jpg
  kpagg inspect --data ./out --pair query/1.jpg,db/1.jpg`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, rf, &inf)
		},
	}

	fs := cmd.Flags()
	inf.store.register(fs)
	fs.StringVar(&inf.image, "image", "", "image name")
	fs.StringSliceVar(&inf.pair, "pair", nil, "two image names separated by a comma")
	cmd.MarkFlagsMutuallyExclusive("image", "pair")
	cmd.MarkFlagsOneRequired("image", "pair")
	return cmd
}

func runInspect(cmd *cobra.Command, rf *rootFlags, inf *inspectFlags) error {
	if inf.pair != nil && len(inf.pair) != 2 {
		return errors.New("--pair takes exactly two image names")
	}

	ctx := cmd.Context()
	var s config.Store
	inf.store.apply(&s)
	backend, err := openBackend(ctx, s)
	if err != nil {
		return err
	}

	opts := []kpagg.Option{kpagg.WithLogger(rf.logger(cmd.ErrOrStderr()))}
	if s.Compression != "" {
		opts = append(opts, kpagg.WithCompression(s.Compression))
	}
	agg, err := kpagg.Open(ctx, backend, opts...)
	if err != nil {
		return err
	}
	defer agg.Close()

	if inf.image != "" {
		set, err := agg.Keypoints(ctx, inf.image)
		if err != nil {
			return fmt.Errorf("image %s: %w", inf.image, err)
		}
		return printJSON(cmd.OutOrStdout(), set)
	}

	m, stored, err := agg.Matches(ctx, inf.pair[0], inf.pair[1])
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), matchesView{
		Name0:   stored.Name0,
		Name1:   stored.Name1,
		Matched: m.NumMatches(),
		Matches: m.Matches,
		Scores:  m.Scores,
	})
}
