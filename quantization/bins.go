package quantization

import (
	"fmt"

	"github.com/hupe1980/kpagg/core"
)

// vote is the accumulated weight of one fine cell.
type vote struct {
	cell   Cell
	weight float64
}

// bucket holds the votes of one canonical keypoint in first-seen order.
type bucket []vote

func (b *bucket) add(c Cell, w float64) {
	for i := range *b {
		if (*b)[i].cell == c {
			(*b)[i].weight += w
			return
		}
	}
	*b = append(*b, vote{cell: c, weight: w})
}

// best returns the cell with the largest weight; the first one wins ties.
func (b bucket) best() vote {
	top := b[0]
	for _, v := range b[1:] {
		if v.weight > top.weight {
			top = v
		}
	}
	return top
}

// Bins is the growing canonical keypoint set of an image under aggregation,
// together with its vote accumulator.
//
// The canonical set is append-only: indices handed out by Insert stay valid
// until Resolve. Bins is not safe for concurrent use.
type Bins struct {
	cells []Cell
	ids   map[Cell]int32
	votes []bucket
	total int
}

// NewBins creates an empty canonical set.
func NewBins() *Bins {
	return &Bins{ids: make(map[Cell]int32)}
}

// Len returns the number of canonical keypoints.
func (b *Bins) Len() int { return len(b.cells) }

// Votes returns the number of votes cast so far.
func (b *Bins) Votes() int { return b.total }

// Insert assigns every point to the canonical keypoint of its coarse cell,
// appending new canonical keypoints for unseen cells. Every point votes for
// its fine cell with its score, or 1 when scores is nil.
func (b *Bins) Insert(g Grid, points []core.Keypoint, scores []float32) ([]int32, error) {
	if scores != nil && len(scores) != len(points) {
		return nil, fmt.Errorf("%w: %d points, %d scores", core.ErrLengthMismatch, len(points), len(scores))
	}
	ids := make([]int32, len(points))
	for i, p := range points {
		c := g.Coarse(p)
		id, ok := b.ids[c]
		if !ok {
			id = int32(len(b.cells))
			b.ids[c] = id
			b.cells = append(b.cells, c)
			b.votes = append(b.votes, nil)
		}
		w := 1.0
		if scores != nil {
			w = float64(scores[i])
		}
		b.votes[id].add(g.Fine(p), w)
		b.total++
		ids[i] = id
	}
	return ids, nil
}

// Canonical returns the current canonical keypoints, i.e. the coarse cell
// positions in index order.
func (b *Bins) Canonical() []core.Keypoint {
	kps := make([]core.Keypoint, len(b.cells))
	for i, c := range b.cells {
		kps[i] = c.Keypoint()
	}
	return kps
}

// Resolve computes the consensus keypoint set. The keypoint of every index is
// the fine cell with the most vote weight; its score is that weight.
func (b *Bins) Resolve() core.KeypointSet {
	set := core.KeypointSet{
		Keypoints: make([]core.Keypoint, len(b.votes)),
		Scores:    make([]float32, len(b.votes)),
	}
	for i, bk := range b.votes {
		top := bk.best()
		set.Keypoints[i] = top.cell.Keypoint()
		set.Scores[i] = float32(top.weight)
	}
	return set
}
