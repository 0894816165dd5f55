package kpagg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/engine"
	"github.com/hupe1980/kpagg/matcher"
	"github.com/hupe1980/kpagg/quantization"
	"github.com/hupe1980/kpagg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kp(x, y float32) core.Keypoint { return core.Keypoint{X: x, Y: y} }

func pair(a, b string) core.Pair { return core.Pair{Name0: a, Name1: b} }

func testConfig() Config {
	cfg := engine.DefaultConfig()
	cfg.MaxKeypoints = NoKeypointLimit
	cfg.Writers = 2
	cfg.ReassignWorkers = 2
	cfg.CheckpointInterval = 0
	return cfg
}

func putPair(t *testing.T, st store.Store, name0, name1 string, kps0, kps1 []core.Keypoint, scores []float32) {
	t.Helper()
	require.NoError(t, st.PutCorrespondences(context.Background(), name0, name1, &core.Correspondences{
		Keypoints0: kps0,
		Keypoints1: kps1,
		Scores:     scores,
	}))
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxError = 0
	_, err := Open(context.Background(), Memory(), WithConfig(cfg))

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	require.ErrorIs(t, err, quantization.ErrInvalidMaxError)

	_, err = Open(context.Background(), Memory(), WithCompression("brotli"))
	require.ErrorAs(t, err, &ce)

	_, err = Open(context.Background(), Backend{})
	require.ErrorAs(t, err, &ce)
}

func TestAggregate_Memory(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	agg, err := Open(ctx, Memory(),
		WithConfig(testConfig()),
		WithMetricsCollector(metrics),
		WithCompression("lz4"),
	)
	require.NoError(t, err)
	defer agg.Close()

	putPair(t, agg.Store(), "a", "b",
		[]core.Keypoint{kp(10, 10), kp(50, 50)},
		[]core.Keypoint{kp(10.2, 10.1), kp(10.3, 10.2)},
		[]float32{0.9, 0.1},
	)

	report, err := agg.AggregatePairs(ctx, []core.Pair{pair("a", "b")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Finalized)

	m, stored, err := agg.Matches(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, pair("a", "b"), stored)
	assert.Equal(t, []int32{0}, m.Matches)

	set, err := agg.Keypoints(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.PairCount)
	assert.Equal(t, int64(1), stats.PairMatches)
	assert.Equal(t, int64(2), stats.FinalizeCount)
	assert.Equal(t, int64(3), stats.FinalizeKeypoints)
	assert.Equal(t, int64(0), stats.PairMissing)
	assert.Same(t, metrics, agg.Metrics())
}

func TestAggregate_Strict(t *testing.T) {
	ctx := context.Background()
	agg, err := Open(ctx, Memory(), WithConfig(testConfig()), WithStrict())
	require.NoError(t, err)
	defer agg.Close()

	putPair(t, agg.Store(), "a", "b", []core.Keypoint{kp(1, 1)}, []core.Keypoint{kp(2, 2)}, []float32{1})

	report, err := agg.AggregatePairs(ctx, []core.Pair{pair("a", "b"), pair("a", "c"), pair("c", "d")})
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Processed)

	var mpe *MissingPairError
	require.ErrorAs(t, err, &mpe)
	assert.Equal(t, pair("a", "c"), mpe.Pair)
	assert.Equal(t, 2, mpe.Count)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "1 other pairs")

	m, _, err := agg.Matches(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 1, m.NumMatches())
}

func TestLookups_NotFound(t *testing.T) {
	ctx := context.Background()
	agg, err := Open(ctx, Memory(), WithConfig(testConfig()))
	require.NoError(t, err)
	defer agg.Close()

	_, err = agg.Keypoints(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = agg.Matches(ctx, "x", "y")
	var mpe *MissingPairError
	require.ErrorAs(t, err, &mpe)
	assert.Equal(t, pair("x", "y"), mpe.Pair)

	// Correspondences exist but no run has written matches yet.
	putPair(t, agg.Store(), "x", "y", nil, nil, nil)
	_, stored, err := agg.Matches(ctx, "y", "x")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, pair("x", "y"), stored)
}

func TestMatchThenAggregate(t *testing.T) {
	ctx := context.Background()
	agg, err := Open(ctx, Memory(), WithConfig(testConfig()))
	require.NoError(t, err)
	defer agg.Close()

	model := matcher.ModelFunc(func(_ context.Context, name0, name1 string) (*matcher.Prediction, error) {
		return &matcher.Prediction{
			Keypoints0: []core.Keypoint{kp(10, 10)},
			Keypoints1: []core.Keypoint{kp(20, 20)},
		}, nil
	})

	pairs := []core.Pair{pair("q", "r1"), pair("q", "r2")}
	mr, err := agg.Match(ctx, model, pairs, matcher.WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, 2, mr.Matched)

	report, err := agg.AggregatePairs(ctx, pairs)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Finalized)

	for _, p := range pairs {
		m, _, err := agg.Matches(ctx, p.Name0, p.Name1)
		require.NoError(t, err)
		assert.Equal(t, []int32{0}, m.Matches)
	}

	rr, err := agg.Reassign(ctx, pairs)
	require.NoError(t, err)
	assert.Equal(t, 2, rr.Reassigned)
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kpagg.db")

	agg, err := Open(ctx, SQLite(path), WithConfig(testConfig()))
	require.NoError(t, err)
	putPair(t, agg.Store(), "a", "b", []core.Keypoint{kp(3, 3)}, []core.Keypoint{kp(4, 4)}, []float32{0.5})
	_, err = agg.AggregatePairs(ctx, []core.Pair{pair("a", "b")})
	require.NoError(t, err)
	require.NoError(t, agg.Close())
	require.NoError(t, agg.Close())

	_, err = agg.Keypoints(ctx, "a")
	require.ErrorIs(t, err, ErrClosed)

	agg, err = Open(ctx, SQLite(path), WithConfig(testConfig()))
	require.NoError(t, err)
	defer agg.Close()

	set, err := agg.Keypoints(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []core.Keypoint{kp(3, 3)}, set.Keypoints)
}

func TestAggregate_Canceled(t *testing.T) {
	agg, err := Open(context.Background(), Memory(), WithConfig(testConfig()))
	require.NoError(t, err)
	defer agg.Close()
	putPair(t, agg.Store(), "a", "b", []core.Keypoint{kp(1, 1)}, []core.Keypoint{kp(2, 2)}, []float32{1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = agg.AggregatePairs(ctx, []core.Pair{pair("a", "b")})
	require.ErrorIs(t, err, context.Canceled)

	report, err := agg.AggregatePairs(context.Background(), []core.Pair{pair("a", "b")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	err := translateError(fmt.Errorf("%w: image a used after finalization", core.ErrInvariant))
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	require.ErrorIs(t, err, core.ErrInvariant)

	err = translateError(fmt.Errorf("wrapped: %w", engine.ErrInvalidWorkers))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Same(t, err, translateError(err))

	plain := errors.New("boom")
	assert.Equal(t, plain, translateError(plain))
}
