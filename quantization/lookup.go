package quantization

import (
	"github.com/hupe1980/kpagg/core"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Index is a k-d tree over a frozen canonical keypoint set.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds an index over canonical. The slice is not retained.
func NewIndex(canonical []core.Keypoint) *Index {
	if len(canonical) == 0 {
		return &Index{}
	}
	pts := make(nodes, len(canonical))
	for i, kp := range canonical {
		pts[i] = node{x: float64(kp.X), y: float64(kp.Y), id: int32(i)}
	}
	return &Index{tree: kdtree.New(pts, false), n: len(canonical)}
}

// Len returns the number of indexed canonical keypoints.
func (ix *Index) Len() int { return ix.n }

// Assign returns, for every point, the index of its nearest canonical
// keypoint, or core.Unmatched when that keypoint is farther than maxError.
func (ix *Index) Assign(points []core.Keypoint, maxError float64) []int32 {
	ids := make([]int32, len(points))
	if ix.tree == nil {
		for i := range ids {
			ids[i] = core.Unmatched
		}
		return ids
	}
	limit := maxError * maxError
	for i, p := range points {
		got, dist := ix.tree.Nearest(node{x: float64(p.X), y: float64(p.Y)})
		if got == nil || dist > limit {
			ids[i] = core.Unmatched
			continue
		}
		ids[i] = got.(node).id
	}
	return ids
}

// Lookup assigns points to their nearest canonical keypoint within maxError.
// The canonical set is not modified. Empty inputs yield all-unmatched results.
func Lookup(points, canonical []core.Keypoint, maxError float64) []int32 {
	if len(points) == 0 {
		return []int32{}
	}
	return NewIndex(canonical).Assign(points, maxError)
}

// node is a canonical keypoint stored in the k-d tree.
type node struct {
	x, y float64
	id   int32
}

func (n node) coord(d kdtree.Dim) float64 {
	if d == 0 {
		return n.x
	}
	return n.y
}

// Compare returns the signed distance of n from the plane through c
// perpendicular to dimension d.
func (n node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return n.coord(d) - c.(node).coord(d)
}

// Dims returns the number of dimensions.
func (node) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between n and c.
func (n node) Distance(c kdtree.Comparable) float64 {
	o := c.(node)
	dx, dy := n.x-o.x, n.y-o.y
	return dx*dx + dy*dy
}

type nodes []node

func (p nodes) Index(i int) kdtree.Comparable         { return p[i] }
func (p nodes) Len() int                              { return len(p) }
func (p nodes) Pivot(d kdtree.Dim) int                { return plane{nodes: p, dim: d}.Pivot() }
func (p nodes) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts nodes along one dimension for median partitioning.
type plane struct {
	nodes
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool { return p.nodes[i].coord(p.dim) < p.nodes[j].coord(p.dim) }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Swap(i, j int)      { p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i] }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.nodes = p.nodes[start:end]
	return p
}
