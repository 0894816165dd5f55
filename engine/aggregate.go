package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/match"
	"github.com/hupe1980/kpagg/quantization"
	"github.com/hupe1980/kpagg/store"
)

// run is the state of one Run call. It is owned by a single goroutine
// except during the reassignment pass.
type run struct {
	e           *Engine
	plan        *plan
	arena       *arena
	progress    *progress
	report      *Report
	fingerprint uint32
	persist     bool

	// positions are the plan positions scheduled in this run.
	positions []int
	sched     *scheduler
	writer    *writer
}

// aggregate processes the scheduled pairs.
func (r *run) aggregate(ctx context.Context) error {
	if r.progress.phase != phaseAggregate {
		return nil
	}

	r.sched = newScheduler(r.plan, r.arena, r.positions)
	r.writer = newWriter(ctx, r.e.cfg.Writers, r.e.rc)

	sinceCheckpoint := 0
	for {
		if err := ctx.Err(); err != nil {
			return r.interrupt(ctx, err)
		}
		if r.writer.failed() {
			return r.writer.flush()
		}

		pos, ok := r.sched.next()
		if !ok {
			break
		}
		if err := r.processPair(ctx, pos); err != nil {
			_ = r.writer.flush()
			return err
		}
		r.e.metrics.OnQueueDepth(r.sched.len())

		sinceCheckpoint++
		if r.e.cfg.CheckpointInterval > 0 && sinceCheckpoint >= r.e.cfg.CheckpointInterval {
			sinceCheckpoint = 0
			if err := r.checkpoint(ctx); err != nil {
				return err
			}
		}
	}

	if err := r.writer.flush(); err != nil {
		return err
	}
	r.progress.phase = phaseReassign
	return r.checkpoint(ctx)
}

// interrupt drains pending writes and checkpoints a canceled run.
func (r *run) interrupt(ctx context.Context, cause error) error {
	r.report.Canceled = true
	r.e.logger.InfoContext(ctx, "terminating aggregation", "reason", cause, "remaining_pairs", r.sched.len())
	if err := r.checkpoint(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// checkpoint waits for all pending writes, then records progress.
func (r *run) checkpoint(ctx context.Context) error {
	if r.writer != nil {
		if err := r.writer.flush(); err != nil {
			return err
		}
	}
	if !r.persist {
		return nil
	}
	return r.e.saveCheckpoint(ctx, r.fingerprint, r.progress)
}

// processPair aggregates one pair in the orientation its correspondences
// are stored in, persists its match array and advances both images.
func (r *run) processPair(ctx context.Context, pos int) error {
	start := time.Now()
	pp := r.plan.pairs[pos]

	o, err := store.LoadCorrespondences(ctx, r.e.store, pp.pair)
	if errors.Is(err, store.ErrNotFound) {
		r.e.logger.WarnContext(ctx, "pair and reverse not in correspondences", "pair", pp.pair.Key())
		r.report.MissingPairs = append(r.report.MissingPairs, pp.pair)
		r.progress.missing.Add(uint32(pos))
		r.e.metrics.OnPair(time.Since(start), 0, true)
		r.done(ctx, pp.id0)
		r.done(ctx, pp.id1)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load correspondences of %s: %w", pp.pair.Key(), err)
	}
	if err := o.Validate(); err != nil {
		return fmt.Errorf("pair %s: %w", o.Pair.Key(), err)
	}

	id0, id1 := pp.id0, pp.id1
	if o.Swapped {
		id0, id1 = id1, id0
	}
	rec0, rec1 := r.arena.get(id0), r.arena.get(id1)

	// A consolidated query matched against a frozen reference keeps its raw
	// keypoints unless a budget will force reassignment anyway. The query may
	// be on either stored side.
	grid0, grid1 := r.e.grid, r.e.grid
	if !r.e.cfg.truncates() {
		switch {
		case rec0.consolidate && !rec1.consolidate:
			grid0 = quantization.PassthroughGrid()
		case rec1.consolidate && !rec0.consolidate:
			grid1 = quantization.PassthroughGrid()
		}
	}

	ids0, err := r.assign(rec0, grid0, o.Keypoints0, o.Scores)
	if err != nil {
		return fmt.Errorf("pair %s: %w", o.Pair.Key(), err)
	}
	ids1, err := r.assign(rec1, grid1, o.Keypoints1, o.Scores)
	if err != nil {
		return fmt.Errorf("pair %s: %w", o.Pair.Key(), err)
	}

	m, err := match.FromAssignments(ids0, ids1, o.Scores)
	if err != nil {
		return fmt.Errorf("pair %s: %w", o.Pair.Key(), err)
	}
	if err := m.Validate(rec0.size(), rec1.size()); err != nil {
		return fmt.Errorf("pair %s: %w", o.Pair.Key(), err)
	}

	stored := o.Pair
	r.writer.submit(func(ctx context.Context) error {
		if err := r.e.store.PutMatches(ctx, stored.Name0, stored.Name1, &m); err != nil {
			return fmt.Errorf("failed to write matches of %s: %w", stored.Key(), err)
		}
		return nil
	})
	r.progress.completed.Add(uint32(pos))
	r.report.Processed++
	r.e.metrics.OnPair(time.Since(start), m.NumMatches(), false)

	r.done(ctx, pp.id0)
	r.done(ctx, pp.id1)
	return nil
}

// assign quantizes one side of a pair: insert mode for images under
// consolidation, lookup mode against frozen sets otherwise.
func (r *run) assign(rec *imageRecord, g quantization.Grid, points []core.Keypoint, scores []float32) ([]int32, error) {
	if !rec.consolidate {
		return rec.lookup(points, r.e.cfg.MaxError), nil
	}
	if rec.state == stateFinalized {
		return nil, fmt.Errorf("%w: image %s used after finalization", core.ErrInvariant, rec.name)
	}
	rec.state = stateActive
	ids, delta, err := rec.bin(g, points, scores)
	if err != nil {
		return nil, err
	}
	r.e.rc.TrackMemory(delta)
	return ids, nil
}

// done decrements the remaining pair count of an image and finalizes it at
// zero.
func (r *run) done(ctx context.Context, id core.ImageID) {
	rec := r.arena.get(id)
	if rec.remaining > 0 {
		rec.remaining--
	}
	if rec.remaining == 0 && rec.consolidate && rec.state != stateFinalized {
		r.finalize(ctx, id)
	}
	r.sched.refresh(r.plan, r.arena, rec)
}

// finalize resolves the consensus set of an image, applies the keypoint
// budget, persists the set and releases the vote accumulator.
func (r *run) finalize(ctx context.Context, id core.ImageID) {
	rec := r.arena.get(id)

	set := core.KeypointSet{Keypoints: []core.Keypoint{}, Scores: []float32{}}
	if rec.bins != nil {
		set = rec.bins.Resolve()
	}
	n := set.Len()

	var dropped bool
	if r.e.cfg.truncates() {
		set, dropped = quantization.TopK(set, r.e.cfg.MaxKeypoints)
	}
	if dropped {
		r.progress.truncated.Add(uint32(id))
		r.report.Truncated = append(r.report.Truncated, rec.name)
		r.report.Dropped += n - set.Len()
	}

	rec.state = stateFinalized
	rec.bins = nil
	rec.index = nil
	r.e.rc.TrackMemory(-rec.memory)
	rec.memory = 0

	r.progress.finalized.Add(uint32(id))
	r.report.Finalized++
	r.report.Keypoints += set.Len()
	r.e.metrics.OnFinalize(set.Len(), n-set.Len())
	r.e.logger.DebugContext(ctx, "image finalized", "image", rec.name, "keypoints", set.Len(), "dropped", n-set.Len())

	name := rec.name
	r.writer.submit(func(ctx context.Context) error {
		if err := r.e.store.PutKeypoints(ctx, name, &set); err != nil {
			return fmt.Errorf("failed to write keypoints of %s: %w", name, err)
		}
		return nil
	})
}
