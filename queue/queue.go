// Package queue provides the pair scheduling priority queue.
package queue

import "container/heap"

// Compile time check to ensure PairQueue satisfies the heap interface.
var _ heap.Interface = (*PairQueue)(nil)

// PairItem represents a pair in the queue.
type PairItem struct {
	Pair     int // Pair is the position of the pair in the run plan.
	Priority int // Priority is the remaining demand of the pair; lower pops first.
	Index    int // Index is maintained by the heap.Interface methods, -1 once popped.
}

// PairQueue is a min-heap of pairs ordered by priority, ties broken by plan
// position. Priorities of queued items can change through Update.
type PairQueue struct {
	items []*PairItem
}

// NewPairQueue creates a queue holding the given items.
func NewPairQueue(items []*PairItem) *PairQueue {
	pq := &PairQueue{items: make([]*PairItem, len(items))}
	for i, it := range items {
		it.Index = i
		pq.items[i] = it
	}
	heap.Init(pq)
	return pq
}

// Len returns the number of elements in the priority queue.
func (pq *PairQueue) Len() int { return len(pq.items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PairQueue) Less(i, j int) bool {
	a, b := pq.items[i], pq.items[j]
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Pair < b.Pair
}

// Swap swaps the elements with indexes i and j.
func (pq *PairQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
	pq.items[i].Index, pq.items[j].Index = i, j
}

// Push adds x to the priority queue. Use PushItem instead.
func (pq *PairQueue) Push(x any) {
	item, _ := x.(*PairItem)
	item.Index = len(pq.items)
	pq.items = append(pq.items, item)
}

// Pop removes and returns the last element. Use PopItem instead.
func (pq *PairQueue) Pop() any {
	if len(pq.items) == 0 {
		return nil
	}

	old := pq.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.Index = -1 // For safety
	pq.items = old[:n-1]

	return item
}

// PushItem inserts an item while maintaining the heap invariant.
func (pq *PairQueue) PushItem(item *PairItem) {
	heap.Push(pq, item)
}

// PopItem removes and returns the item with the lowest priority.
func (pq *PairQueue) PopItem() (*PairItem, bool) {
	if len(pq.items) == 0 {
		return nil, false
	}
	return heap.Pop(pq).(*PairItem), true
}

// Peek returns the next item without removing it.
func (pq *PairQueue) Peek() (*PairItem, bool) {
	if len(pq.items) == 0 {
		return nil, false
	}
	return pq.items[0], true
}

// Update changes the priority of a queued item. Popped items are ignored.
func (pq *PairQueue) Update(item *PairItem, priority int) {
	if item.Index < 0 || item.Index >= len(pq.items) || pq.items[item.Index] != item {
		return
	}
	if item.Priority == priority {
		return
	}
	item.Priority = priority
	heap.Fix(pq, item.Index)
}
