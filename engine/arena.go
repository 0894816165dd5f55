package engine

import (
	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/quantization"
)

// imageState is the lifecycle state of an image within a run.
type imageState uint8

const (
	statePending imageState = iota
	stateActive
	stateFinalized
)

func (s imageState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateActive:
		return "active"
	case stateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Approximate heap cost of the vote accumulator, used for memory accounting.
const (
	bytesPerCanonical = 64
	bytesPerVote      = 24
)

// imageRecord is the per-image state owned by the aggregation loop.
type imageRecord struct {
	name  string
	state imageState

	// consolidate marks images whose canonical set is built in this run.
	consolidate bool
	remaining   int

	bins  *quantization.Bins
	fixed *core.KeypointSet
	index *quantization.Index

	// pairs lists the plan positions of the scheduled pairs of the image.
	pairs  []int
	memory int64
}

// lookup assigns points against the frozen set of the image.
func (r *imageRecord) lookup(points []core.Keypoint, maxError float64) []int32 {
	if r.index == nil {
		var canonical []core.Keypoint
		if r.fixed != nil {
			canonical = r.fixed.Keypoints
		}
		r.index = quantization.NewIndex(canonical)
	}
	return r.index.Assign(points, maxError)
}

// bin inserts points into the growing canonical set and returns the change
// of the accounted memory.
func (r *imageRecord) bin(g quantization.Grid, points []core.Keypoint, scores []float32) ([]int32, int64, error) {
	if r.bins == nil {
		r.bins = quantization.NewBins()
	}
	ids, err := r.bins.Insert(g, points, scores)
	if err != nil {
		return nil, 0, err
	}
	mem := int64(r.bins.Len())*bytesPerCanonical + int64(r.bins.Votes())*bytesPerVote
	delta := mem - r.memory
	r.memory = mem
	return ids, delta, nil
}

// size returns the current number of canonical keypoints.
func (r *imageRecord) size() int {
	switch {
	case r.bins != nil:
		return r.bins.Len()
	case r.fixed != nil:
		return r.fixed.Len()
	default:
		return 0
	}
}

// arena holds one record per interned image, indexed by ImageID.
type arena struct {
	records []imageRecord
}

func newArena(p *plan) *arena {
	a := &arena{records: make([]imageRecord, len(p.names))}
	for i, name := range p.names {
		a.records[i].name = name
	}
	return a
}

func (a *arena) get(id core.ImageID) *imageRecord { return &a.records[id] }

func (a *arena) len() int { return len(a.records) }
