package quantization

import (
	"math/rand"
	"testing"

	"github.com/hupe1980/kpagg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kp(x, y float32) core.Keypoint { return core.Keypoint{X: x, Y: y} }

func TestNewGrid_Validation(t *testing.T) {
	_, err := NewGrid(0, 1)
	require.ErrorIs(t, err, ErrInvalidMaxError)

	_, err = NewGrid(-1, 1)
	require.ErrorIs(t, err, ErrInvalidMaxError)

	_, err = NewGrid(1, -2)
	require.ErrorIs(t, err, ErrInvalidCellSize)

	g, err := NewGrid(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2.0, g.CellSize(), "cell size is clamped up to max error")

	g, err = NewGrid(2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, g.CellSize(), "zero cell size defaults to max error")
	assert.False(t, g.IsPassthrough())

	assert.True(t, PassthroughGrid().IsPassthrough())
}

func TestSnap(t *testing.T) {
	tests := []struct {
		v, spacing, want float64
	}{
		{10.0, 8, 7.5},
		{12.0, 8, 15.5},
		{-0.5, 1, -0.5},
		{1.0, 1, 1.5},
		{2.0, 1, 1.5}, // half-to-even: 2.5 rounds to 2
		{3.3, 0, 3.3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, snap(tt.v, tt.spacing), 1e-9, "snap(%v, %v)", tt.v, tt.spacing)
	}
}

func TestLookup(t *testing.T) {
	canonical := []core.Keypoint{kp(10, 10), kp(50, 50)}
	points := []core.Keypoint{kp(10.2, 10.1), kp(90, 90), kp(49.5, 50)}

	ids := Lookup(points, canonical, 1)
	assert.Equal(t, []int32{0, core.Unmatched, 1}, ids)

	// Idempotent and non-mutating.
	again := Lookup(points, canonical, 1)
	assert.Equal(t, ids, again)
	assert.Equal(t, []core.Keypoint{kp(10, 10), kp(50, 50)}, canonical)
}

func TestLookup_Empty(t *testing.T) {
	assert.Equal(t, []int32{core.Unmatched, core.Unmatched}, Lookup([]core.Keypoint{kp(1, 1), kp(2, 2)}, nil, 4))
	assert.Empty(t, Lookup(nil, []core.Keypoint{kp(1, 1)}, 4))

	ix := NewIndex(nil)
	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, []int32{core.Unmatched}, ix.Assign([]core.Keypoint{kp(0, 0)}, 1))
}

func TestLookup_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	canonical := make([]core.Keypoint, 300)
	for i := range canonical {
		canonical[i] = kp(rng.Float32()*500, rng.Float32()*500)
	}
	points := make([]core.Keypoint, 200)
	for i := range points {
		points[i] = kp(rng.Float32()*500, rng.Float32()*500)
	}

	const maxError = 12.0
	ids := Lookup(points, canonical, maxError)
	for i, p := range points {
		best, bestD := core.Unmatched, maxError*maxError
		for j, c := range canonical {
			dx, dy := float64(p.X)-float64(c.X), float64(p.Y)-float64(c.Y)
			if d := dx*dx + dy*dy; d <= bestD {
				if best == core.Unmatched || d < bestD {
					best, bestD = int32(j), d
				}
			}
		}
		if best == core.Unmatched {
			assert.Equal(t, core.Unmatched, ids[i])
			continue
		}
		require.NotEqual(t, core.Unmatched, ids[i])
		got := canonical[ids[i]]
		dx, dy := float64(p.X)-float64(got.X), float64(p.Y)-float64(got.Y)
		assert.InDelta(t, bestD, dx*dx+dy*dy, 1e-6)
	}
}

func TestBins_InsertReusesCoarseCell(t *testing.T) {
	g, err := NewGrid(1, 2)
	require.NoError(t, err)

	b := NewBins()
	ids, err := b.Insert(g, []core.Keypoint{kp(5, 5)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{0}, ids)
	assert.Equal(t, 1, b.Len())

	ids, err = b.Insert(g, []core.Keypoint{kp(5.4, 5.4)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{0}, ids)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 2, b.Votes())
	assert.Equal(t, []core.Keypoint{kp(5.5, 5.5)}, b.Canonical())
}

func TestBins_ResolveMajorityFineCell(t *testing.T) {
	g, err := NewGrid(1, 2)
	require.NoError(t, err)

	b := NewBins()
	ids, err := b.Insert(g,
		[]core.Keypoint{kp(5, 5), kp(4.6, 4.6), kp(4.7, 4.7)},
		[]float32{1, 1, 1},
	)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 0}, ids)

	set := b.Resolve()
	require.Equal(t, 1, set.Len())
	assert.Equal(t, kp(4.5, 4.5), set.Keypoints[0])
	assert.Equal(t, float32(2), set.Scores[0])
}

func TestBins_ResolveTieKeepsFirstCell(t *testing.T) {
	g, err := NewGrid(1, 2)
	require.NoError(t, err)

	b := NewBins()
	_, err = b.Insert(g, []core.Keypoint{kp(5, 5), kp(4.6, 4.6)}, []float32{0.5, 0.5})
	require.NoError(t, err)

	set := b.Resolve()
	assert.Equal(t, kp(5.5, 5.5), set.Keypoints[0])
	assert.Equal(t, float32(0.5), set.Scores[0])
}

func TestBins_ScoreLengthMismatch(t *testing.T) {
	g, err := NewGrid(1, 1)
	require.NoError(t, err)

	_, err = NewBins().Insert(g, []core.Keypoint{kp(1, 1)}, []float32{1, 2})
	require.ErrorIs(t, err, core.ErrLengthMismatch)
}

func TestBins_MonotonicGrowth(t *testing.T) {
	g, err := NewGrid(2, 8)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	b := NewBins()
	prev := 0
	for round := 0; round < 20; round++ {
		n := rng.Intn(50)
		points := make([]core.Keypoint, n)
		for i := range points {
			points[i] = kp(rng.Float32()*200, rng.Float32()*200)
		}
		ids, err := b.Insert(g, points, nil)
		require.NoError(t, err)
		require.Len(t, ids, n)
		require.GreaterOrEqual(t, b.Len(), prev)
		require.LessOrEqual(t, b.Len(), prev+n)
		for _, id := range ids {
			require.True(t, id >= 0 && int(id) < b.Len())
		}
		prev = b.Len()
	}
}

func TestBins_Passthrough(t *testing.T) {
	b := NewBins()
	ids, err := b.Insert(PassthroughGrid(),
		[]core.Keypoint{kp(1.23, 4.56), kp(1.23, 4.56), kp(1.23, 4.57)},
		[]float32{0.2, 0.3, 0.9},
	)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0, 1}, ids)

	set := b.Resolve()
	assert.Equal(t, []core.Keypoint{kp(1.23, 4.56), kp(1.23, 4.57)}, set.Keypoints)
	assert.InDelta(t, 0.5, set.Scores[0], 1e-6)
}

func TestTopK(t *testing.T) {
	set := core.KeypointSet{
		Keypoints: []core.Keypoint{kp(1, 1), kp(2, 2)},
		Scores:    []float32{3, 5},
	}

	out, dropped := TopK(set, 1)
	assert.True(t, dropped)
	assert.Equal(t, []core.Keypoint{kp(2, 2)}, out.Keypoints)
	assert.Equal(t, []float32{5}, out.Scores)

	out, dropped = TopK(set, 2)
	assert.False(t, dropped)
	assert.Equal(t, set, out)

	out, dropped = TopK(set, 0)
	assert.False(t, dropped)
	assert.Equal(t, set, out)

	ties := core.KeypointSet{
		Keypoints: []core.Keypoint{kp(0, 0), kp(1, 1), kp(2, 2), kp(3, 3)},
		Scores:    []float32{1, 2, 2, 0.5},
	}
	out, dropped = TopK(ties, 2)
	assert.True(t, dropped)
	assert.Equal(t, []core.Keypoint{kp(1, 1), kp(2, 2)}, out.Keypoints)
}
