package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/kpagg/blobstore"
	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoModel returns one correspondence whose coordinates encode the call.
type echoModel struct {
	mu    sync.Mutex
	calls []core.Pair
}

func (m *echoModel) Match(_ context.Context, name0, name1 string) (*Prediction, error) {
	m.mu.Lock()
	m.calls = append(m.calls, core.Pair{Name0: name0, Name1: name1})
	m.mu.Unlock()
	return &Prediction{
		Keypoints0: []core.Keypoint{{X: 1, Y: 1}},
		Keypoints1: []core.Keypoint{{X: 2, Y: 2}},
	}, nil
}

func pair(a, b string) core.Pair { return core.Pair{Name0: a, Name1: b} }

func TestPool_MatchesNewPairs(t *testing.T) {
	ctx := context.Background()
	st := store.NewBlobStore(blobstore.NewMemoryStore())
	require.NoError(t, st.PutCorrespondences(ctx, "c", "a", &core.Correspondences{
		Keypoints0: []core.Keypoint{}, Keypoints1: []core.Keypoint{}, Scores: []float32{},
	}))

	model := &echoModel{}
	pool := NewPool(model, st, WithWorkers(3), WithQueueSize(1))
	report, err := pool.Run(ctx, []core.Pair{pair("a", "b"), pair("b", "a"), pair("a", "c"), pair("b", "c")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Requested)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Existing)
	assert.Equal(t, 2, report.Matched)
	assert.ElementsMatch(t, []core.Pair{pair("a", "b"), pair("b", "c")}, model.calls)

	c, err := st.Correspondences(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, c.Scores, "missing scores default to 1")
}

func TestPool_FlipsWhenFirstImageIsReference(t *testing.T) {
	ctx := context.Background()
	st := store.NewBlobStore(blobstore.NewMemoryStore())
	model := &echoModel{}

	report, err := NewPool(model, st).Run(ctx, []core.Pair{pair("ref", "query")}, map[string]bool{"ref": true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Flipped)
	assert.Equal(t, []core.Pair{pair("query", "ref")}, model.calls)

	c, err := st.Correspondences(ctx, "ref", "query")
	require.NoError(t, err)
	assert.Equal(t, []core.Keypoint{{X: 2, Y: 2}}, c.Keypoints0)
	assert.Equal(t, []core.Keypoint{{X: 1, Y: 1}}, c.Keypoints1)
}

func TestPool_Overwrite(t *testing.T) {
	ctx := context.Background()
	st := store.NewBlobStore(blobstore.NewMemoryStore())
	model := &echoModel{}
	pairs := []core.Pair{pair("a", "b")}

	_, err := NewPool(model, st).Run(ctx, pairs, nil)
	require.NoError(t, err)
	report, err := NewPool(model, st).Run(ctx, pairs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Existing)
	assert.Len(t, model.calls, 1)

	report, err = NewPool(model, st, WithOverwrite(true)).Run(ctx, pairs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
	assert.Len(t, model.calls, 2)
}

func TestPool_ModelError(t *testing.T) {
	boom := errors.New("boom")
	model := ModelFunc(func(context.Context, string, string) (*Prediction, error) {
		return nil, boom
	})
	st := store.NewBlobStore(blobstore.NewMemoryStore())

	var pairs []core.Pair
	for i := 0; i < 10; i++ {
		pairs = append(pairs, pair(fmt.Sprintf("q%d", i), "ref"))
	}
	_, err := NewPool(model, st, WithWorkers(2)).Run(context.Background(), pairs, nil)
	require.ErrorIs(t, err, boom)
}

func TestPool_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	model := ModelFunc(func(ctx context.Context, _, _ string) (*Prediction, error) {
		if calls.Add(1) == 3 {
			cancel()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &Prediction{}, nil
	})
	st := store.NewBlobStore(blobstore.NewMemoryStore())

	var pairs []core.Pair
	for i := 0; i < 50; i++ {
		pairs = append(pairs, pair(fmt.Sprintf("q%d", i), "ref"))
	}
	report, err := NewPool(model, st, WithWorkers(1)).Run(ctx, pairs, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Canceled)
	assert.Less(t, report.Matched, 50)
}

func TestPrediction_Rescale(t *testing.T) {
	pred := &Prediction{
		Keypoints0: []core.Keypoint{{X: 0, Y: 1}},
		Keypoints1: []core.Keypoint{{X: 3, Y: 3}},
		Scores:     []float32{0.5},
		Scale0:     [2]float32{2, 4},
	}
	c, err := pred.correspondences()
	require.NoError(t, err)
	assert.Equal(t, core.Keypoint{X: 0.5, Y: 5.5}, c.Keypoints0[0])
	assert.Equal(t, core.Keypoint{X: 3, Y: 3}, c.Keypoints1[0])

	_, err = (&Prediction{Keypoints0: []core.Keypoint{{}}}).correspondences()
	require.ErrorIs(t, err, ErrInvalidPrediction)
}
