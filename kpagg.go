package kpagg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/engine"
	"github.com/hupe1980/kpagg/internal/compress"
	"github.com/hupe1980/kpagg/matcher"
	"github.com/hupe1980/kpagg/resource"
	"github.com/hupe1980/kpagg/store"
)

type (
	// Input describes the pairs and images of a run.
	Input = engine.Input
	// Report summarizes a run.
	Report = engine.Report
	// Config holds the aggregation parameters.
	Config = engine.Config
)

// NoKeypointLimit disables the per-image keypoint budget.
const NoKeypointLimit = engine.NoKeypointLimit

// Aggregator consolidates keypoints over a storage backend.
type Aggregator struct {
	store   store.Store
	engine  *engine.Engine
	rc      *resource.Controller
	logger  *Logger
	metrics MetricsCollector
	strict  bool
	closer  io.Closer
	closed  atomic.Bool
}

// Open creates an aggregator over the given backend.
func Open(ctx context.Context, b Backend, optFns ...Option) (*Aggregator, error) {
	o := applyOptions(optFns)

	if err := o.config.Validate(); err != nil {
		return nil, translateError(err)
	}
	ct, err := compress.ParseType(o.compression)
	if err != nil {
		return nil, &ConfigError{cause: err}
	}
	if b.open == nil {
		return nil, &ConfigError{cause: errors.New("no backend")}
	}

	rc := resource.NewController(o.resources)
	st, closer, err := b.open(ctx, ct, rc)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", b, err)
	}

	eng, err := engine.New(st, o.config,
		engine.WithLogger(o.logger.Logger),
		engine.WithResourceController(rc),
		engine.WithCodec(o.codec),
		engine.WithMetricsObserver(observer{metrics: o.metricsCollector, logger: o.logger}),
	)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, translateError(err)
	}

	return &Aggregator{
		store:   st,
		engine:  eng,
		rc:      rc,
		logger:  o.logger,
		metrics: o.metricsCollector,
		strict:  o.strict,
		closer:  closer,
	}, nil
}

// Store returns the underlying record store.
func (a *Aggregator) Store() store.Store { return a.store }

// Config returns the aggregation parameters.
func (a *Aggregator) Config() Config { return a.engine.Config() }

// Aggregate consolidates the keypoints of in and writes the match arrays of
// every pair. A canceled run returns the partial report and ctx.Err(); a
// later call with the same pairs resumes it.
func (a *Aggregator) Aggregate(ctx context.Context, in Input) (*Report, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	report, err := a.engine.Run(ctx, in)
	a.logger.LogRun(ctx, report, err)
	if err != nil {
		return report, translateError(err)
	}
	if a.strict && len(report.MissingPairs) > 0 {
		for _, p := range report.MissingPairs {
			a.logger.LogMissingPair(ctx, p)
		}
		return report, &MissingPairError{
			Pair:  report.MissingPairs[0],
			Count: len(report.MissingPairs),
			cause: store.ErrNotFound,
		}
	}
	return report, nil
}

// AggregatePairs consolidates every image of pairs.
func (a *Aggregator) AggregatePairs(ctx context.Context, pairs []core.Pair) (*Report, error) {
	return a.Aggregate(ctx, Input{Pairs: pairs})
}

// Reassign re-derives the match arrays of pairs against the stored sets.
func (a *Aggregator) Reassign(ctx context.Context, pairs []core.Pair) (*Report, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	report, err := a.engine.Reassign(ctx, pairs)
	return report, translateError(err)
}

// Match runs model over pairs and stores the correspondences. Images that
// already have a keypoint set are treated as references.
func (a *Aggregator) Match(ctx context.Context, model matcher.Model, pairs []core.Pair, optFns ...matcher.Option) (*matcher.Report, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	names, err := a.store.KeypointNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keypoint sets: %w", err)
	}
	refs := make(map[string]bool, len(names))
	for _, name := range names {
		refs[name] = true
	}

	opts := append([]matcher.Option{matcher.WithLogger(a.logger.Logger)}, optFns...)
	report, err := matcher.NewPool(model, a.store, opts...).Run(ctx, pairs, refs)
	return report, translateError(err)
}

// Keypoints returns the stored keypoint set of an image.
func (a *Aggregator) Keypoints(ctx context.Context, name string) (*core.KeypointSet, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	set, err := a.store.Keypoints(ctx, name)
	if err != nil {
		a.logger.WithImage(name).DebugContext(ctx, "keypoints lookup failed", "error", err)
		return nil, translateError(err)
	}
	return set, nil
}

// Matches returns the match array of a pair together with the orientation it
// is stored in. Index i of the array refers to keypoint i of the returned
// pair's first image.
func (a *Aggregator) Matches(ctx context.Context, name0, name1 string) (*core.MatchArray, core.Pair, error) {
	if a.closed.Load() {
		return nil, core.Pair{}, ErrClosed
	}
	p := core.Pair{Name0: name0, Name1: name1}
	stored, ok, err := store.Find(ctx, a.store, p)
	if err != nil {
		return nil, core.Pair{}, err
	}
	if !ok {
		a.logger.LogMissingPair(ctx, p)
		return nil, core.Pair{}, &MissingPairError{Pair: p, Count: 1, cause: store.ErrNotFound}
	}
	m, err := a.store.Matches(ctx, stored.Name0, stored.Name1)
	if err != nil {
		a.logger.WithPair(stored).DebugContext(ctx, "matches lookup failed", "error", err)
		return nil, stored, translateError(err)
	}
	return m, stored, nil
}

// Metrics returns the configured metrics collector.
func (a *Aggregator) Metrics() MetricsCollector { return a.metrics }

// PeakMemory returns the highest tracked accumulator memory in bytes.
func (a *Aggregator) PeakMemory() int64 { return a.rc.PeakMemory() }

// Close releases the backend. It is safe to call more than once.
func (a *Aggregator) Close() error {
	if a == nil || a.closed.Swap(true) {
		return nil
	}
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
