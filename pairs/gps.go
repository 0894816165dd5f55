package pairs

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/hupe1980/kpagg/codec"
	"github.com/hupe1980/kpagg/core"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Position is the capture location of an image.
type Position struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Valid reports whether the position is set. Zero coordinates mark images
// without a location.
func (p Position) Valid() bool { return p.Lat != 0 && p.Lon != 0 }

// Point returns the position as an orb point.
func (p Position) Point() orb.Point { return orb.Point{p.Lon, p.Lat} }

// ReadPositions decodes a JSON array of positions.
func ReadPositions(r io.Reader) ([]Position, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var out []Position
	if err := codec.Default.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode positions: %w", err)
	}
	return out, nil
}

// ReadPositionsFile decodes the positions at path.
func ReadPositionsFile(path string) ([]Position, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPositions(f)
}

// FromGPS pairs every located image with its closest located neighbours.
// For each image at most closest neighbours strictly within radius meters
// are listed, nearest first. Images without a location get no pairs.
func FromGPS(positions []Position, closest int, radius float64) []core.Pair {
	type neighbour struct {
		j    int
		dist float64
	}

	var out []core.Pair
	for i, p := range positions {
		if !p.Valid() {
			continue
		}
		var cand []neighbour
		for j, q := range positions {
			if i == j || !q.Valid() {
				continue
			}
			d := geo.DistanceHaversine(p.Point(), q.Point())
			if d < radius {
				cand = append(cand, neighbour{j: j, dist: d})
			}
		}
		sort.SliceStable(cand, func(a, b int) bool { return cand[a].dist < cand[b].dist })
		if len(cand) > closest {
			cand = cand[:closest]
		}
		for _, c := range cand {
			out = append(out, core.Pair{Name0: p.Name, Name1: positions[c.j].Name})
		}
	}
	return out
}
