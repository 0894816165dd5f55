// Package matcher runs a dense matching model over image pairs and stores
// the raw correspondences consumed by the aggregation engine.
//
// Workers run the model on independent pairs. Results are handed through a
// bounded channel to a single consumer that writes them.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/store"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidPrediction is returned when a model output has parallel
// sequences of different lengths.
var ErrInvalidPrediction = errors.New("invalid prediction")

// Prediction is the raw model output for one pair.
type Prediction struct {
	Keypoints0 []core.Keypoint
	Keypoints1 []core.Keypoint

	// Scores may be nil, in which case every correspondence scores 1.
	Scores []float32

	// Scale0 and Scale1 map model coordinates back to the original image
	// resolution per axis. A zero scale means no resizing.
	Scale0 [2]float32
	Scale1 [2]float32
}

// Model produces dense correspondences for an image pair.
type Model interface {
	Match(ctx context.Context, name0, name1 string) (*Prediction, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, name0, name1 string) (*Prediction, error)

// Match implements Model.
func (f ModelFunc) Match(ctx context.Context, name0, name1 string) (*Prediction, error) {
	return f(ctx, name0, name1)
}

// Store is the correspondence storage used by the pool.
type Store interface {
	store.CorrespondenceReader
	store.CorrespondenceWriter
}

// Report summarizes a matching run.
type Report struct {
	Requested  int           `json:"requested"`
	Duplicates int           `json:"duplicates"`
	Existing   int           `json:"existing"`
	Matched    int           `json:"matched"`
	Flipped    int           `json:"flipped"`
	Canceled   bool          `json:"canceled"`
	Duration   time.Duration `json:"duration"`
}

// Pool matches pairs with a fixed number of workers.
type Pool struct {
	model     Model
	store     Store
	workers   int
	queueSize int
	overwrite bool
	logger    *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithWorkers sets the number of concurrent model calls.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize bounds the results waiting to be written.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithOverwrite re-matches pairs that already have correspondences.
func WithOverwrite(overwrite bool) Option {
	return func(p *Pool) {
		p.overwrite = overwrite
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a pool running model and writing into st.
func NewPool(model Model, st Store, opts ...Option) *Pool {
	p := &Pool{
		model:     model,
		store:     st,
		workers:   4,
		queueSize: 4,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type result struct {
	pair core.Pair
	c    *core.Correspondences
}

// Run matches every new pair. Pairs whose correspondences exist in either
// direction are skipped unless the pool overwrites. If the first image of a
// pair is in refs, the model runs on the flipped pair so keypoints of the
// second image are refined, and the output is flipped back.
func (p *Pool) Run(ctx context.Context, pairs []core.Pair, refs map[string]bool) (*Report, error) {
	start := time.Now()
	report := &Report{}
	defer func() { report.Duration = time.Since(start) }()

	todo, err := p.newPairs(ctx, pairs, report)
	if err != nil {
		return report, err
	}
	report.Requested = len(todo)
	if len(todo) == 0 {
		p.logger.InfoContext(ctx, "all pairs exist, skipping dense matching")
		return report, nil
	}
	p.logger.InfoContext(ctx, "performing dense matching", "pairs", len(todo), "workers", p.workers)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	jobs := make(chan core.Pair)
	results := make(chan result, p.queueSize)

	g.Go(func() error {
		defer close(jobs)
		for _, pr := range todo {
			select {
			case jobs <- pr:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	workers, wctx := errgroup.WithContext(gctx)
	for i := 0; i < p.workers; i++ {
		workers.Go(func() error {
			for pr := range jobs {
				c, flipped, err := p.match(wctx, pr, refs[pr.Name0])
				if err != nil {
					return err
				}
				if flipped {
					p.logger.DebugContext(wctx, "flipped pair to refine query keypoints", "pair", pr.Key())
				}
				select {
				case results <- result{pair: pr, c: c}:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(results)
		return workers.Wait()
	})

	// Single consumer.
	var writeErr error
	for res := range results {
		if writeErr != nil {
			continue
		}
		if err := p.store.PutCorrespondences(ctx, res.pair.Name0, res.pair.Name1, res.c); err != nil {
			writeErr = fmt.Errorf("failed to write correspondences of %s: %w", res.pair.Key(), err)
			cancel()
			continue
		}
		report.Matched++
		if refs[res.pair.Name0] {
			report.Flipped++
		}
	}

	err = g.Wait()
	if writeErr != nil {
		return report, writeErr
	}
	if ctx.Err() != nil {
		report.Canceled = true
		p.logger.InfoContext(ctx, "terminating dense matching", "matched", report.Matched)
		return report, ctx.Err()
	}
	return report, err
}

// newPairs drops repeated unordered pairs and, unless overwriting, pairs
// with stored correspondences.
func (p *Pool) newPairs(ctx context.Context, pairs []core.Pair, report *Report) ([]core.Pair, error) {
	seen := make(map[core.Pair]struct{}, len(pairs))
	var out []core.Pair
	for _, pr := range pairs {
		u := pr.Unordered()
		if _, ok := seen[u]; ok || pr.Name0 == pr.Name1 {
			report.Duplicates++
			continue
		}
		seen[u] = struct{}{}
		if !p.overwrite {
			_, ok, err := store.Find(ctx, p.store, pr)
			if err != nil {
				return nil, err
			}
			if ok {
				report.Existing++
				continue
			}
		}
		out = append(out, pr)
	}
	return out, nil
}

// match runs the model on one pair and returns correspondences in the
// listed orientation, rescaled to the original image resolution.
func (p *Pool) match(ctx context.Context, pr core.Pair, flip bool) (*core.Correspondences, bool, error) {
	name0, name1 := pr.Name0, pr.Name1
	if flip {
		name0, name1 = name1, name0
	}
	pred, err := p.model.Match(ctx, name0, name1)
	if err != nil {
		return nil, false, fmt.Errorf("failed to match %s: %w", pr.Key(), err)
	}
	if flip {
		pred = &Prediction{
			Keypoints0: pred.Keypoints1,
			Keypoints1: pred.Keypoints0,
			Scores:     pred.Scores,
			Scale0:     pred.Scale1,
			Scale1:     pred.Scale0,
		}
	}
	c, err := pred.correspondences()
	if err != nil {
		return nil, false, fmt.Errorf("pair %s: %w", pr.Key(), err)
	}
	return c, flip, nil
}

func (pred *Prediction) correspondences() (*core.Correspondences, error) {
	n := len(pred.Keypoints0)
	if len(pred.Keypoints1) != n || (pred.Scores != nil && len(pred.Scores) != n) {
		return nil, fmt.Errorf("%w: keypoints0=%d keypoints1=%d scores=%d",
			ErrInvalidPrediction, n, len(pred.Keypoints1), len(pred.Scores))
	}
	scores := pred.Scores
	if scores == nil {
		scores = make([]float32, n)
		for i := range scores {
			scores[i] = 1
		}
	}
	return &core.Correspondences{
		Keypoints0: rescale(pred.Keypoints0, pred.Scale0),
		Keypoints1: rescale(pred.Keypoints1, pred.Scale1),
		Scores:     scores,
	}, nil
}

// rescale maps pixel-center coordinates from model resolution to the
// original image.
func rescale(kps []core.Keypoint, scale [2]float32) []core.Keypoint {
	sx, sy := scale[0], scale[1]
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	out := make([]core.Keypoint, len(kps))
	for i, p := range kps {
		out[i] = core.Keypoint{X: (p.X+0.5)*sx - 0.5, Y: (p.Y+0.5)*sy - 0.5}
	}
	return out
}
