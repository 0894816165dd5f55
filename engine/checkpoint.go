package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/kpagg/store"
)

const checkpointVersion = 1

// Run phases recorded in checkpoints.
const (
	phaseAggregate = "aggregate"
	phaseReassign  = "reassign"
	phaseDone      = "done"
)

// checkpoint is the persisted progress of a run.
type checkpoint struct {
	Version     int    `json:"version"`
	Fingerprint uint32 `json:"fingerprint"`
	Phase       string `json:"phase"`
	Completed   []byte `json:"completed"`
	Finalized   []byte `json:"finalized"`
	Truncated   []byte `json:"truncated"`
	Reassigned  []byte `json:"reassigned"`
	Missing     []byte `json:"missing"`
}

// progress tracks plan positions and image ids with roaring bitmaps.
type progress struct {
	phase      string
	completed  *roaring.Bitmap // pairs whose match array is persisted
	finalized  *roaring.Bitmap // images whose final set is persisted
	truncated  *roaring.Bitmap // images that lost keypoints to the budget
	reassigned *roaring.Bitmap // pairs rewritten against final sets
	missing    *roaring.Bitmap // pairs without stored correspondences
}

func newProgress() *progress {
	return &progress{
		phase:      phaseAggregate,
		completed:  roaring.New(),
		finalized:  roaring.New(),
		truncated:  roaring.New(),
		reassigned: roaring.New(),
		missing:    roaring.New(),
	}
}

func (p *progress) marshal(fingerprint uint32) (*checkpoint, error) {
	ck := &checkpoint{
		Version:     checkpointVersion,
		Fingerprint: fingerprint,
		Phase:       p.phase,
	}
	for _, f := range []struct {
		dst *[]byte
		bm  *roaring.Bitmap
	}{
		{&ck.Completed, p.completed},
		{&ck.Finalized, p.finalized},
		{&ck.Truncated, p.truncated},
		{&ck.Reassigned, p.reassigned},
		{&ck.Missing, p.missing},
	} {
		b, err := f.bm.ToBytes()
		if err != nil {
			return nil, err
		}
		*f.dst = b
	}
	return ck, nil
}

func (ck *checkpoint) progress() (*progress, error) {
	p := newProgress()
	p.phase = ck.Phase
	for _, f := range []struct {
		src []byte
		bm  *roaring.Bitmap
	}{
		{ck.Completed, p.completed},
		{ck.Finalized, p.finalized},
		{ck.Truncated, p.truncated},
		{ck.Reassigned, p.reassigned},
		{ck.Missing, p.missing},
	} {
		if len(f.src) == 0 {
			continue
		}
		if err := f.bm.UnmarshalBinary(f.src); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// saveCheckpoint persists p. Cancellation of ctx does not abort the write.
func (e *Engine) saveCheckpoint(ctx context.Context, fingerprint uint32, p *progress) error {
	ck, err := p.marshal(fingerprint)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	data, err := e.codec.Marshal(ck)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := e.store.SaveCheckpoint(context.WithoutCancel(ctx), data); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// loadCheckpoint returns the progress of an unfinished run of the same plan,
// or nil if there is none.
func (e *Engine) loadCheckpoint(ctx context.Context, fingerprint uint32) (*progress, error) {
	data, err := e.store.LoadCheckpoint(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var ck checkpoint
	if err := e.codec.Unmarshal(data, &ck); err != nil {
		e.logger.WarnContext(ctx, "ignoring unreadable checkpoint", "error", err)
		return nil, nil
	}
	switch {
	case ck.Version != checkpointVersion:
		e.logger.WarnContext(ctx, "ignoring checkpoint of another version", "version", ck.Version)
		return nil, nil
	case ck.Fingerprint != fingerprint:
		e.logger.InfoContext(ctx, "checkpoint belongs to another plan, starting fresh")
		return nil, nil
	case ck.Phase == phaseDone:
		return nil, nil
	}

	p, err := ck.progress()
	if err != nil {
		e.logger.WarnContext(ctx, "ignoring corrupt checkpoint", "error", err)
		return nil, nil
	}
	return p, nil
}
