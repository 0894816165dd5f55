package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/match"
	"github.com/hupe1980/kpagg/quantization"
	"github.com/hupe1980/kpagg/store"
	"golang.org/x/sync/errgroup"
)

// reassign rewrites the match array of every pair once any image was
// truncated. Keypoints may have changed cell affiliation during consensus
// resolution, so pairs between untruncated images are re-derived too. Final
// sets are frozen, so pairs run in parallel; the k-d tree of a side is built
// per pair.
func (r *run) reassign(ctx context.Context) error {
	if r.progress.truncated.IsEmpty() {
		return nil
	}
	r.progress.phase = phaseReassign

	var todo []int
	for pos := range r.plan.pairs {
		if r.progress.reassigned.Contains(uint32(pos)) || r.progress.missing.Contains(uint32(pos)) {
			continue
		}
		todo = append(todo, pos)
	}
	if len(todo) == 0 {
		return nil
	}

	size := r.e.cfg.KeypointCacheSize
	if size == 0 {
		size = max(r.arena.len(), 1)
	}
	sets, err := store.NewCachedKeypoints(r.e.store, size)
	if err != nil {
		return err
	}

	r.e.logger.InfoContext(ctx, "reassigning matches", "pairs", len(todo), "max_error", r.e.cfg.MaxError)

	var (
		mu      sync.Mutex
		empty   []int
		missing []int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.e.cfg.ReassignWorkers)
	for _, pos := range todo {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			n, found, err := r.reassignPair(gctx, sets, pos)
			r.e.metrics.OnReassign(time.Since(start), n, err)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if !found {
				r.progress.missing.Add(uint32(pos))
				missing = append(missing, pos)
				return nil
			}
			r.progress.reassigned.Add(uint32(pos))
			r.report.Reassigned++
			if n == 0 {
				empty = append(empty, pos)
			}
			return nil
		})
	}
	err = g.Wait()

	slices.Sort(missing)
	for _, pos := range missing {
		r.report.MissingPairs = append(r.report.MissingPairs, r.plan.pairs[pos].pair)
	}
	slices.Sort(empty)
	for _, pos := range empty {
		r.report.EmptyAfterReassign = append(r.report.EmptyAfterReassign, r.plan.pairs[pos].pair)
	}
	if len(empty) > 0 {
		r.e.logger.WarnContext(ctx, "pairs without matches after reassignment", "pairs", len(empty))
	}

	if err == nil {
		err = ctx.Err()
	}
	if err != nil && ctx.Err() != nil {
		r.report.Canceled = true
		r.e.logger.InfoContext(ctx, "terminating reassignment", "reason", ctx.Err())
		if cerr := r.checkpoint(ctx); cerr != nil {
			return errors.Join(ctx.Err(), cerr)
		}
		return ctx.Err()
	}
	return err
}

// reassignPair looks up both sides of a pair against the final sets and
// overwrites its match array. It returns the number of matches, and false if
// the pair has no stored correspondences.
func (r *run) reassignPair(ctx context.Context, sets *store.CachedKeypoints, pos int) (int, bool, error) {
	pp := r.plan.pairs[pos]
	o, err := store.LoadCorrespondences(ctx, r.e.store, pp.pair)
	if errors.Is(err, store.ErrNotFound) {
		r.e.logger.WarnContext(ctx, "pair and reverse not in correspondences", "pair", pp.pair.Key())
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load correspondences of %s: %w", pp.pair.Key(), err)
	}
	if err := o.Validate(); err != nil {
		return 0, false, fmt.Errorf("pair %s: %w", o.Pair.Key(), err)
	}

	set0, err := r.finalSet(ctx, sets, o.Pair.Name0)
	if err != nil {
		return 0, false, err
	}
	set1, err := r.finalSet(ctx, sets, o.Pair.Name1)
	if err != nil {
		return 0, false, err
	}

	maxError := r.e.cfg.MaxError
	ids0 := quantization.Lookup(o.Keypoints0, set0.Keypoints, maxError)
	ids1 := quantization.Lookup(o.Keypoints1, set1.Keypoints, maxError)
	m, err := match.FromAssignments(ids0, ids1, o.Scores)
	if err != nil {
		return 0, false, fmt.Errorf("pair %s: %w", o.Pair.Key(), err)
	}
	if err := m.Validate(set0.Len(), set1.Len()); err != nil {
		return 0, false, fmt.Errorf("pair %s after reassignment: %w", o.Pair.Key(), err)
	}

	if err := r.e.rc.AcquireWriter(ctx); err != nil {
		return 0, false, err
	}
	defer r.e.rc.ReleaseWriter()
	if err := r.e.store.PutMatches(ctx, o.Pair.Name0, o.Pair.Name1, &m); err != nil {
		return 0, false, fmt.Errorf("failed to write matches of %s: %w", o.Pair.Key(), err)
	}
	return m.NumMatches(), true, nil
}

// finalSet returns the frozen set of an image: the in-memory reference if
// there is one, the stored final set otherwise.
func (r *run) finalSet(ctx context.Context, sets *store.CachedKeypoints, name string) (*core.KeypointSet, error) {
	if id, ok := r.plan.ids[name]; ok {
		if rec := r.arena.get(id); !rec.consolidate && rec.fixed != nil {
			return rec.fixed, nil
		}
	}
	set, err := sets.Keypoints(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load final keypoints of %s: %w", name, err)
	}
	return set, nil
}
