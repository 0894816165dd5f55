package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairQueue_PopOrder(t *testing.T) {
	items := []*PairItem{
		{Pair: 0, Priority: 3},
		{Pair: 1, Priority: 1},
		{Pair: 2, Priority: 2},
		{Pair: 3, Priority: 1},
	}
	pq := NewPairQueue(items)
	require.Equal(t, 4, pq.Len())

	var order []int
	for {
		it, ok := pq.PopItem()
		if !ok {
			break
		}
		assert.Equal(t, -1, it.Index)
		order = append(order, it.Pair)
	}
	assert.Equal(t, []int{1, 3, 2, 0}, order)
}

func TestPairQueue_Update(t *testing.T) {
	items := []*PairItem{
		{Pair: 0, Priority: 5},
		{Pair: 1, Priority: 4},
		{Pair: 2, Priority: 3},
	}
	pq := NewPairQueue(items)

	pq.Update(items[0], 1)
	top, ok := pq.Peek()
	require.True(t, ok)
	assert.Equal(t, 0, top.Pair)

	popped, _ := pq.PopItem()
	assert.Equal(t, 0, popped.Pair)

	// Updating a popped item is a no-op.
	pq.Update(popped, 0)
	assert.Equal(t, 2, pq.Len())

	pq.Update(items[2], 10)
	next, _ := pq.PopItem()
	assert.Equal(t, 1, next.Pair)
}

func TestPairQueue_PushAndEmpty(t *testing.T) {
	pq := NewPairQueue(nil)
	_, ok := pq.PopItem()
	assert.False(t, ok)
	_, ok = pq.Peek()
	assert.False(t, ok)

	pq.PushItem(&PairItem{Pair: 7, Priority: 2})
	pq.PushItem(&PairItem{Pair: 3, Priority: 2})
	it, ok := pq.PopItem()
	require.True(t, ok)
	assert.Equal(t, 3, it.Pair)
}
