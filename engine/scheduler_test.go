package engine

import (
	"testing"

	"github.com/hupe1980/kpagg/codec"
	"github.com/hupe1980/kpagg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_LowestDemandFirst(t *testing.T) {
	p := newPlan([]core.Pair{
		pair("a", "b"),
		pair("a", "c"),
		pair("b", "c"),
		pair("d", "e"),
		pair("d", "f"),
		pair("g", "h"),
	})
	a := newArena(p)
	positions := make([]int, len(p.pairs))
	for pos, pp := range p.pairs {
		positions[pos] = pos
		for _, id := range []core.ImageID{pp.id0, pp.id1} {
			rec := a.get(id)
			rec.remaining++
			rec.pairs = append(rec.pairs, pos)
		}
	}

	s := newScheduler(p, a, positions)
	var order []int
	for {
		pos, ok := s.next()
		if !ok {
			break
		}
		order = append(order, pos)
		pp := p.pairs[pos]
		for _, id := range []core.ImageID{pp.id0, pp.id1} {
			rec := a.get(id)
			rec.remaining--
			s.refresh(p, a, rec)
		}
	}
	assert.Equal(t, []int{3, 4, 5, 0, 1, 2}, order)
	for i := 0; i < a.len(); i++ {
		assert.Zero(t, a.get(core.ImageID(i)).remaining)
	}
}

func TestPlan_FingerprintTracksPairsAndConfig(t *testing.T) {
	cfg := testConfig()
	p1 := newPlan([]core.Pair{pair("a", "b"), pair("b", "c")})
	p2 := newPlan([]core.Pair{pair("a", "b"), pair("b", "c"), pair("c", "b")})
	p3 := newPlan([]core.Pair{pair("b", "c"), pair("a", "b")})

	assert.Equal(t, p1.fingerprint(cfg), p2.fingerprint(cfg))
	assert.NotEqual(t, p1.fingerprint(cfg), p3.fingerprint(cfg))

	other := cfg
	other.MaxKeypoints = 5
	assert.NotEqual(t, p1.fingerprint(cfg), p1.fingerprint(other))
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	p := newProgress()
	p.phase = phaseReassign
	p.completed.AddMany([]uint32{0, 2, 5})
	p.finalized.Add(1)
	p.truncated.Add(1)
	p.reassigned.Add(2)
	p.missing.Add(3)

	ck, err := p.marshal(42)
	require.NoError(t, err)
	data, err := codec.Default.Marshal(ck)
	require.NoError(t, err)

	var decoded checkpoint
	require.NoError(t, codec.Default.Unmarshal(data, &decoded))
	assert.Equal(t, uint32(42), decoded.Fingerprint)

	got, err := decoded.progress()
	require.NoError(t, err)
	assert.Equal(t, phaseReassign, got.phase)
	assert.Equal(t, []uint32{0, 2, 5}, got.completed.ToArray())
	assert.True(t, got.finalized.Contains(1))
	assert.True(t, got.truncated.Contains(1))
	assert.Equal(t, []uint32{2}, got.reassigned.ToArray())
	assert.Equal(t, []uint32{3}, got.missing.ToArray())
}
