package quantization

import (
	"sort"

	"github.com/hupe1980/kpagg/core"
)

// TopK keeps the k highest-scoring keypoints of set, ordered by descending
// score with ties in original order. It reports whether anything was dropped;
// if not, set is returned unchanged. A non-positive k disables truncation.
func TopK(set core.KeypointSet, k int) (core.KeypointSet, bool) {
	if k <= 0 || set.Len() <= k {
		return set, false
	}
	order := make([]int, set.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return set.Scores[order[a]] > set.Scores[order[b]]
	})

	out := core.KeypointSet{
		Keypoints: make([]core.Keypoint, k),
		Scores:    make([]float32, k),
	}
	for i, j := range order[:k] {
		out.Keypoints[i] = set.Keypoints[j]
		out.Scores[i] = set.Scores[j]
	}
	return out, true
}
