// Package match turns per-correspondence canonical assignments into
// one-to-one match arrays.
package match

import (
	"fmt"
	"sort"

	"github.com/hupe1980/kpagg/core"
)

// Match is a correspondence between canonical keypoints of a pair.
type Match struct {
	Index0 int32
	Index1 int32
	Score  float32
}

// Filter keeps the mutual-best correspondences.
//
// Positions with an unmatched side are discarded. Of the remaining positions,
// one per canonical index of image 0 survives (the highest score, first on
// ties), and likewise per canonical index of image 1. Only positions that
// survive both reductions are returned, ordered by Index0. No two returned
// matches share an index on either side.
func Filter(ids0, ids1 []int32, scores []float32) ([]Match, error) {
	if len(ids0) != len(ids1) || len(ids0) != len(scores) {
		return nil, fmt.Errorf("%w: ids0=%d ids1=%d scores=%d", core.ErrLengthMismatch, len(ids0), len(ids1), len(scores))
	}

	best0 := make(map[int32]int)
	best1 := make(map[int32]int)
	for i := range ids0 {
		a, b := ids0[i], ids1[i]
		if a == core.Unmatched || b == core.Unmatched {
			continue
		}
		if j, ok := best0[a]; !ok || scores[i] > scores[j] {
			best0[a] = i
		}
		if j, ok := best1[b]; !ok || scores[i] > scores[j] {
			best1[b] = i
		}
	}

	matches := make([]Match, 0, len(best0))
	for a, i := range best0 {
		if best1[ids1[i]] != i {
			continue
		}
		matches = append(matches, Match{Index0: a, Index1: ids1[i], Score: scores[i]})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Index0 < matches[j].Index0 })
	return matches, nil
}

// Dense converts matches into a match array indexed by canonical index of
// image 0. The array spans up to the largest matched index; all other entries
// are unmatched with score 0. No matches yield an empty array.
func Dense(matches []Match) core.MatchArray {
	if len(matches) == 0 {
		return core.MatchArray{Matches: []int32{}, Scores: []float32{}}
	}
	n := int32(0)
	for _, m := range matches {
		if m.Index0 >= n {
			n = m.Index0 + 1
		}
	}
	out := core.MatchArray{
		Matches: make([]int32, n),
		Scores:  make([]float32, n),
	}
	for i := range out.Matches {
		out.Matches[i] = core.Unmatched
	}
	for _, m := range matches {
		out.Matches[m.Index0] = m.Index1
		out.Scores[m.Index0] = m.Score
	}
	return out
}

// FromAssignments filters assignments to mutual-best matches and returns the
// dense match array.
func FromAssignments(ids0, ids1 []int32, scores []float32) (core.MatchArray, error) {
	matches, err := Filter(ids0, ids1, scores)
	if err != nil {
		return core.MatchArray{}, err
	}
	return Dense(matches), nil
}
