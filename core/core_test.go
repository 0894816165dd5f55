package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKey(t *testing.T) {
	assert.Equal(t, "a.jpg/b.jpg", PairKey("a.jpg", "b.jpg"))
	assert.Equal(t, "db-a.jpg/q-b.jpg", PairKey("db/a.jpg", "q/b.jpg"))

	p := Pair{Name0: "z", Name1: "a"}
	assert.Equal(t, Pair{Name0: "a", Name1: "z"}, p.Unordered())
	assert.Equal(t, "a/z", p.Reverse().Key())
}

func TestCorrespondences_Validate(t *testing.T) {
	c := &Correspondences{
		Keypoints0: []Keypoint{{1, 2}},
		Keypoints1: []Keypoint{{3, 4}},
		Scores:     []float32{0.5},
	}
	require.NoError(t, c.Validate())

	s := c.Swap()
	assert.Equal(t, Keypoint{3, 4}, s.Keypoints0[0])
	assert.Equal(t, Keypoint{1, 2}, s.Keypoints1[0])

	c.Scores = append(c.Scores, 1)
	require.ErrorIs(t, c.Validate(), ErrLengthMismatch)
}

func TestMatchArray_Validate(t *testing.T) {
	m := &MatchArray{
		Matches: []int32{1, Unmatched, 0},
		Scores:  []float32{0.9, 0, 0.4},
	}
	require.NoError(t, m.Validate(3, 2))
	assert.Equal(t, 2, m.NumMatches())

	err := m.Validate(3, 1)
	require.True(t, errors.Is(err, ErrInvariant))

	err = m.Validate(2, 2)
	require.ErrorIs(t, err, ErrInvariant)

	dup := &MatchArray{Matches: []int32{0, 0}, Scores: []float32{1, 1}}
	require.ErrorIs(t, dup.Validate(2, 2), ErrInvariant)

	empty := &MatchArray{}
	require.NoError(t, empty.Validate(0, 0))
}
