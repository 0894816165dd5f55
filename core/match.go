package core

import (
	"errors"
	"fmt"
)

// ErrInvariant reports an internal-consistency violation.
// It indicates a bug, never a data problem.
var ErrInvariant = errors.New("internal invariant violated")

// MatchArray is the persisted match result of one pair.
// Matches[i] is the canonical index in image 1 matched to canonical index i
// of image 0, or Unmatched. Scores[i] is 0 where unmatched.
type MatchArray struct {
	Matches []int32
	Scores  []float32
}

// Len returns the length of the array (max matched index in image 0 plus one).
func (m *MatchArray) Len() int { return len(m.Matches) }

// NumMatches returns the number of matched entries.
func (m *MatchArray) NumMatches() int {
	n := 0
	for _, j := range m.Matches {
		if j != Unmatched {
			n++
		}
	}
	return n
}

// Validate checks the array against the canonical set sizes of both images.
// A valid array is a partial injection from [0,n0) into [0,n1).
func (m *MatchArray) Validate(n0, n1 int) error {
	if len(m.Matches) != len(m.Scores) {
		return fmt.Errorf("%w: matches=%d scores=%d", ErrLengthMismatch, len(m.Matches), len(m.Scores))
	}
	if len(m.Matches) > n0 {
		return fmt.Errorf("%w: match array length %d exceeds %d keypoints in image 0", ErrInvariant, len(m.Matches), n0)
	}
	seen := make(map[int32]int, len(m.Matches))
	for i, j := range m.Matches {
		if j == Unmatched {
			continue
		}
		if j < 0 || int(j) >= n1 {
			return fmt.Errorf("%w: index %d matched to %d, image 1 has %d keypoints", ErrInvariant, i, j, n1)
		}
		if prev, ok := seen[j]; ok {
			return fmt.Errorf("%w: indices %d and %d both matched to %d", ErrInvariant, prev, i, j)
		}
		seen[j] = i
	}
	return nil
}
