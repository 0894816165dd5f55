package engine

import (
	"encoding/binary"
	"math"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/internal/hash"
)

// plannedPair is a scheduled pair with its images interned.
type plannedPair struct {
	pair core.Pair
	id0  core.ImageID
	id1  core.ImageID
}

// plan is the deduplicated pair list of a run.
type plan struct {
	pairs      []plannedPair
	names      []string
	ids        map[string]core.ImageID
	duplicates int
	selfPairs  int
}

// newPlan interns images in first-seen order and drops self pairs and
// repeated unordered pairs. The listed direction of the first occurrence is
// kept.
func newPlan(pairs []core.Pair) *plan {
	p := &plan{ids: make(map[string]core.ImageID)}
	seen := make(map[core.Pair]struct{}, len(pairs))
	for _, pr := range pairs {
		if pr.Name0 == pr.Name1 {
			p.selfPairs++
			continue
		}
		u := pr.Unordered()
		if _, ok := seen[u]; ok {
			p.duplicates++
			continue
		}
		seen[u] = struct{}{}
		p.pairs = append(p.pairs, plannedPair{
			pair: pr,
			id0:  p.intern(pr.Name0),
			id1:  p.intern(pr.Name1),
		})
	}
	return p
}

func (p *plan) intern(name string) core.ImageID {
	if id, ok := p.ids[name]; ok {
		return id
	}
	id := core.ImageID(len(p.names))
	p.ids[name] = id
	p.names = append(p.names, name)
	return id
}

// fingerprint identifies the plan and the parameters that shape its output.
func (p *plan) fingerprint(cfg Config) uint32 {
	h := hash.NewCRC32C()
	var buf [8]byte
	for _, v := range []float64{cfg.MaxError, cfg.CellSize, float64(cfg.MaxKeypoints)} {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	for _, pp := range p.pairs {
		_, _ = h.Write([]byte(pp.pair.Key()))
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum32()
}
