package match

import (
	"math/rand"
	"testing"

	"github.com/hupe1980/kpagg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const u = core.Unmatched

func TestFilter_RemovesManyToOne(t *testing.T) {
	matches, err := Filter(
		[]int32{0, 1, 2},
		[]int32{5, 5, 6},
		[]float32{0.3, 0.8, 0.5},
	)
	require.NoError(t, err)
	assert.Equal(t, []Match{{1, 5, 0.8}, {2, 6, 0.5}}, matches)

	dense := Dense(matches)
	assert.Equal(t, []int32{u, 5, 6}, dense.Matches)
	assert.Equal(t, []float32{0, 0.8, 0.5}, dense.Scores)
}

func TestFilter_DiscardsUnmatched(t *testing.T) {
	matches, err := Filter(
		[]int32{0, u, 2},
		[]int32{u, 1, 3},
		[]float32{0.9, 0.9, 0.1},
	)
	require.NoError(t, err)
	assert.Equal(t, []Match{{2, 3, 0.1}}, matches)
}

func TestFilter_TiesKeepFirstOccurrence(t *testing.T) {
	matches, err := Filter(
		[]int32{0, 0},
		[]int32{1, 2},
		[]float32{0.5, 0.5},
	)
	require.NoError(t, err)
	assert.Equal(t, []Match{{0, 1, 0.5}}, matches)
}

func TestFilter_RequiresBothSides(t *testing.T) {
	matches, err := Filter(
		[]int32{0, 1, 1},
		[]int32{0, 0, 1},
		[]float32{0.9, 0.6, 0.5},
	)
	require.NoError(t, err)
	assert.Equal(t, []Match{{0, 0, 0.9}}, matches)
}

func TestFilter_LengthMismatch(t *testing.T) {
	_, err := Filter([]int32{0}, []int32{0, 1}, []float32{1})
	require.ErrorIs(t, err, core.ErrLengthMismatch)

	_, err = FromAssignments([]int32{0}, []int32{0}, nil)
	require.ErrorIs(t, err, core.ErrLengthMismatch)
}

func TestFromAssignments_Empty(t *testing.T) {
	arr, err := FromAssignments([]int32{}, []int32{}, []float32{})
	require.NoError(t, err)
	assert.Empty(t, arr.Matches)
	assert.Empty(t, arr.Scores)
	assert.NotNil(t, arr.Matches)

	arr, err = FromAssignments([]int32{u, u}, []int32{0, 1}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, arr.Len())
}

func TestFilter_MutualBestIsInjective(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 50; round++ {
		n := rng.Intn(200)
		ids0 := make([]int32, n)
		ids1 := make([]int32, n)
		scores := make([]float32, n)
		for i := 0; i < n; i++ {
			ids0[i] = int32(rng.Intn(30)) - 1
			ids1[i] = int32(rng.Intn(30)) - 1
			scores[i] = rng.Float32()
		}

		matches, err := Filter(ids0, ids1, scores)
		require.NoError(t, err)

		seen0 := map[int32]bool{}
		seen1 := map[int32]bool{}
		for _, m := range matches {
			require.False(t, seen0[m.Index0], "index0 %d reused", m.Index0)
			require.False(t, seen1[m.Index1], "index1 %d reused", m.Index1)
			seen0[m.Index0], seen1[m.Index1] = true, true
		}

		arr := Dense(matches)
		require.NoError(t, arr.Validate(30, 30))
		assert.Equal(t, len(matches), arr.NumMatches())
	}
}
