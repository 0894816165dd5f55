package persistence

import (
	"testing"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/internal/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCorrespondences(n int) *core.Correspondences {
	c := &core.Correspondences{
		Keypoints0: make([]core.Keypoint, n),
		Keypoints1: make([]core.Keypoint, n),
		Scores:     make([]float32, n),
	}
	for i := 0; i < n; i++ {
		c.Keypoints0[i] = core.Keypoint{X: float32(i), Y: float32(i%7) + 0.5}
		c.Keypoints1[i] = core.Keypoint{X: float32(i) * 2, Y: 3.25}
		c.Scores[i] = float32(i%10) / 10
	}
	return c
}

func TestCorrespondencesRecord(t *testing.T) {
	for _, comp := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
		t.Run(comp.String(), func(t *testing.T) {
			in := sampleCorrespondences(500)
			data, err := EncodeCorrespondences(in, comp)
			require.NoError(t, err)

			h, err := ReadHeader(data)
			require.NoError(t, err)
			assert.Equal(t, KindCorrespondences, h.Kind)
			assert.Equal(t, uint64(500), h.Count)

			out, err := DecodeCorrespondences(data)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestKeypointSetRecord(t *testing.T) {
	in := &core.KeypointSet{
		Keypoints: []core.Keypoint{{X: 4.5, Y: 4.5}, {X: 10, Y: -0.5}},
		Scores:    []float32{2, 0.25},
	}
	data, err := EncodeKeypointSet(in, compress.ZSTD)
	require.NoError(t, err)

	out, err := DecodeKeypointSet(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMatchArrayRecord(t *testing.T) {
	in := &core.MatchArray{
		Matches: []int32{core.Unmatched, 3, 0},
		Scores:  []float32{0, 0.9, 0.1},
	}
	data, err := EncodeMatchArray(in, compress.LZ4)
	require.NoError(t, err)

	out, err := DecodeMatchArray(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	empty, err := EncodeMatchArray(&core.MatchArray{}, compress.None)
	require.NoError(t, err)
	out, err = DecodeMatchArray(empty)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

func TestRecord_Errors(t *testing.T) {
	data, err := EncodeMatchArray(&core.MatchArray{Matches: []int32{1}, Scores: []float32{1}}, compress.None)
	require.NoError(t, err)

	_, err = DecodeKeypointSet(data)
	require.ErrorIs(t, err, ErrInvalidKind)

	_, err = DecodeMatchArray(data[:10])
	require.ErrorIs(t, err, ErrTruncated)

	_, err = DecodeMatchArray(data[:len(data)-1])
	require.ErrorIs(t, err, ErrTruncated)

	corrupt := append([]byte(nil), data...)
	corrupt[len(corrupt)-1] ^= 0xff
	_, err = DecodeMatchArray(corrupt)
	require.True(t, IsChecksumMismatch(err))

	bad := append([]byte(nil), data...)
	bad[0] = 0
	_, err = DecodeMatchArray(bad)
	require.ErrorIs(t, err, ErrInvalidMagic)

	_, err = EncodeCorrespondences(&core.Correspondences{Scores: []float32{1}}, compress.None)
	require.ErrorIs(t, err, core.ErrLengthMismatch)
}
