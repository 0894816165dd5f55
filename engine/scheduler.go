package engine

import (
	"github.com/hupe1980/kpagg/queue"
)

// scheduler orders pairs by ascending remaining demand, the smaller
// remaining pair count of both images. Ties keep plan order.
type scheduler struct {
	q     *queue.PairQueue
	items []*queue.PairItem
}

func newScheduler(p *plan, a *arena, positions []int) *scheduler {
	s := &scheduler{items: make([]*queue.PairItem, len(p.pairs))}
	items := make([]*queue.PairItem, 0, len(positions))
	for _, pos := range positions {
		pp := p.pairs[pos]
		it := &queue.PairItem{
			Pair:     pos,
			Priority: min(a.get(pp.id0).remaining, a.get(pp.id1).remaining),
		}
		s.items[pos] = it
		items = append(items, it)
	}
	s.q = queue.NewPairQueue(items)
	return s
}

// next pops the pair with the lowest demand.
func (s *scheduler) next() (int, bool) {
	it, ok := s.q.PopItem()
	if !ok {
		return 0, false
	}
	s.items[it.Pair] = nil
	return it.Pair, true
}

// refresh recomputes the demand of the queued pairs of rec.
func (s *scheduler) refresh(p *plan, a *arena, rec *imageRecord) {
	for _, pos := range rec.pairs {
		it := s.items[pos]
		if it == nil {
			continue
		}
		pp := p.pairs[pos]
		s.q.Update(it, min(a.get(pp.id0).remaining, a.get(pp.id1).remaining))
	}
}

func (s *scheduler) len() int { return s.q.Len() }
