package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/kpagg/codec"
	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/quantization"
	"github.com/hupe1980/kpagg/resource"
	"github.com/hupe1980/kpagg/store"
)

// Input describes the pairs and images of a run.
type Input struct {
	// Pairs are aggregated in scheduler order. Self pairs and repeated
	// unordered pairs are dropped.
	Pairs []core.Pair

	// Required lists the images to consolidate. Nil means every image of
	// Pairs. Images with a reference set are never consolidated, and images
	// with a stored set are only consolidated with Config.Overwrite.
	Required []string

	// References are frozen canonical sets that are only looked up against.
	References map[string]*core.KeypointSet

	// Anchors are binned into the canonical set of an image before any pair.
	// Missing scores count as 1.
	Anchors map[string]*core.KeypointSet
}

// Engine aggregates pairwise correspondences into canonical keypoint sets.
type Engine struct {
	store   store.Store
	cfg     Config
	grid    quantization.Grid
	codec   codec.Codec
	logger  *slog.Logger
	metrics MetricsObserver
	rc      *resource.Controller
}

// Option defines a configuration option for the Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithResourceController sets the resource controller for the engine.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) {
		if rc != nil {
			e.rc = rc
		}
	}
}

// WithMetricsObserver sets the metrics observer for the engine.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(e *Engine) {
		if observer != nil {
			e.metrics = observer
		}
	}
}

// WithCodec sets the codec used for checkpoints.
func WithCodec(c codec.Codec) Option {
	return func(e *Engine) {
		if c != nil {
			e.codec = c
		}
	}
}

// New creates an engine over st. The configuration is validated before
// any pair is touched.
func New(st store.Store, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, _ := cfg.grid()

	e := &Engine{
		store:   st,
		cfg:     cfg,
		grid:    grid,
		codec:   codec.Default,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: NoopMetricsObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rc == nil {
		e.rc = resource.NewController(resource.Config{MaxWriters: int64(cfg.Writers)})
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run aggregates all pairs of in and, if any image was truncated, reassigns
// the match arrays of all pairs.
//
// Run checks ctx once per pair. On cancellation it persists a checkpoint and
// returns the partial report together with ctx.Err(); a later Run over the
// same pairs resumes from there.
func (e *Engine) Run(ctx context.Context, in Input) (*Report, error) {
	start := time.Now()
	r, err := e.newRun(ctx, in)
	if err != nil {
		return nil, err
	}
	defer func() {
		r.report.PeakMemory = e.rc.PeakMemory()
		r.report.Duration = time.Since(start)
	}()

	if err := r.aggregate(ctx); err != nil {
		return r.report, err
	}
	if err := r.reassign(ctx); err != nil {
		return r.report, err
	}

	r.progress.phase = phaseDone
	if err := r.checkpoint(ctx); err != nil {
		return r.report, err
	}

	e.logger.InfoContext(ctx, "aggregation finished",
		"images", r.report.Finalized,
		"avg_keypoints", r.report.AvgKeypoints(),
		"keypoints", r.report.Keypoints,
		"missing_pairs", len(r.report.MissingPairs),
		"reassigned", r.report.Reassigned,
	)
	return r.report, nil
}

// Reassign re-derives the match arrays of pairs against the stored final
// sets of both images. It is the second pass of Run, usable on its own after
// sets were truncated or replaced.
func (e *Engine) Reassign(ctx context.Context, pairs []core.Pair) (*Report, error) {
	start := time.Now()
	p := newPlan(pairs)
	r := &run{
		e:        e,
		plan:     p,
		arena:    newArena(p),
		progress: newProgress(),
		report: &Report{
			Pairs:      len(p.pairs),
			Duplicates: p.duplicates,
			SelfPairs:  p.selfPairs,
			Images:     len(p.names),
		},
	}
	r.progress.truncated.AddRange(0, uint64(len(p.names)))

	err := r.reassign(ctx)
	r.report.Duration = time.Since(start)
	return r.report, err
}

// newRun plans the pairs, restores checkpointed progress and prepares the
// arena.
func (e *Engine) newRun(ctx context.Context, in Input) (*run, error) {
	p := newPlan(in.Pairs)
	r := &run{
		e:           e,
		plan:        p,
		arena:       newArena(p),
		fingerprint: p.fingerprint(e.cfg),
		persist:     true,
		report: &Report{
			Pairs:      len(p.pairs),
			Duplicates: p.duplicates,
			SelfPairs:  p.selfPairs,
			Images:     len(p.names),
		},
	}
	if p.duplicates > 0 || p.selfPairs > 0 {
		e.logger.InfoContext(ctx, "dropped redundant pairs", "duplicates", p.duplicates, "self_pairs", p.selfPairs)
	}

	prog, err := e.loadCheckpoint(ctx, r.fingerprint)
	if err != nil {
		return nil, err
	}
	resumed := prog != nil
	if !resumed {
		prog = newProgress()
	}
	r.progress = prog

	var required map[string]bool
	if in.Required != nil {
		required = make(map[string]bool, len(in.Required))
		for _, name := range in.Required {
			required[name] = true
		}
	}

	for i := range p.names {
		id := core.ImageID(i)
		rec := r.arena.get(id)

		if ref, ok := in.References[rec.name]; ok {
			rec.fixed = ref
			r.report.References++
			continue
		}

		stored, err := e.store.HasKeypoints(ctx, rec.name)
		if err != nil {
			return nil, fmt.Errorf("failed to check keypoints of %s: %w", rec.name, err)
		}

		consolidate := required == nil || required[rec.name]
		if resumed && prog.finalized.Contains(uint32(id)) {
			consolidate = false
		} else if stored && !e.cfg.Overwrite {
			consolidate = false
		}

		if !consolidate {
			if err := r.loadReference(ctx, rec, stored); err != nil {
				return nil, err
			}
			r.report.References++
			continue
		}

		rec.consolidate = true
		r.report.Required++
		if err := r.anchor(ctx, rec, in.Anchors[rec.name], stored); err != nil {
			return nil, err
		}
	}

	for pos, pp := range p.pairs {
		rec0, rec1 := r.arena.get(pp.id0), r.arena.get(pp.id1)
		if resumed && prog.completed.Contains(uint32(pos)) && !rec0.consolidate && !rec1.consolidate {
			r.report.Resumed++
			continue
		}
		rec0.remaining++
		rec1.remaining++
		rec0.pairs = append(rec0.pairs, pos)
		rec1.pairs = append(rec1.pairs, pos)
		r.positions = append(r.positions, pos)
	}

	if resumed {
		prog.truncated.Iterate(func(id uint32) bool {
			r.report.Truncated = append(r.report.Truncated, p.names[id])
			return true
		})
		if prog.phase != phaseAggregate {
			prog.missing.Iterate(func(pos uint32) bool {
				r.report.MissingPairs = append(r.report.MissingPairs, p.pairs[pos].pair)
				return true
			})
		}
		e.logger.InfoContext(ctx, "resuming from checkpoint",
			"phase", prog.phase,
			"completed_pairs", prog.completed.GetCardinality(),
			"finalized_images", prog.finalized.GetCardinality(),
		)
	}
	if r.report.Required > 0 {
		e.logger.InfoContext(ctx, "aggregating keypoints", "images", r.report.Required, "pairs", len(r.positions))
	}
	return r, nil
}

// loadReference loads the stored set of an image that is only looked up
// against. An image without a stored set is matched against an empty set.
func (r *run) loadReference(ctx context.Context, rec *imageRecord, stored bool) error {
	if !stored {
		r.e.logger.WarnContext(ctx, "no keypoints for reference image, matching against an empty set", "image", rec.name)
		rec.fixed = &core.KeypointSet{}
		return nil
	}
	set, err := r.e.store.Keypoints(ctx, rec.name)
	if err != nil {
		return fmt.Errorf("failed to load keypoints of %s: %w", rec.name, err)
	}
	rec.fixed = set
	return nil
}

// anchor bins reference keypoints of an image that is consolidated. Without
// an explicit anchor, a stored set that is being overwritten anchors the new
// one.
func (r *run) anchor(ctx context.Context, rec *imageRecord, set *core.KeypointSet, stored bool) error {
	if set == nil && stored {
		var err error
		set, err = r.e.store.Keypoints(ctx, rec.name)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load keypoints of %s: %w", rec.name, err)
		}
	}
	if set == nil || set.Len() == 0 {
		return nil
	}

	var scores []float32
	if len(set.Scores) == set.Len() {
		scores = set.Scores
	}
	_, delta, err := rec.bin(r.e.grid, set.Keypoints, scores)
	if err != nil {
		return fmt.Errorf("failed to anchor %s: %w", rec.name, err)
	}
	r.e.rc.TrackMemory(delta)
	return nil
}
