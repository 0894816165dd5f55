package quantization

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/kpagg/core"
)

var (
	// ErrInvalidMaxError is returned when maxError is not positive.
	ErrInvalidMaxError = errors.New("max error must be positive")

	// ErrInvalidCellSize is returned when the cell size is negative or not finite.
	ErrInvalidCellSize = errors.New("cell size must be positive")
)

// Cell is a snapped grid position. It is used as hash key and doubles as the
// representative coordinate of the cell.
type Cell struct {
	X float64
	Y float64
}

// Keypoint returns the representative keypoint of the cell.
func (c Cell) Keypoint() core.Keypoint {
	return core.Keypoint{X: float32(c.X), Y: float32(c.Y)}
}

// Grid holds the two snapping granularities of insert mode.
type Grid struct {
	maxError float64
	cellSize float64
	fine     float64
}

// NewGrid creates an insert-mode grid.
// A zero cellSize defaults to maxError; a cellSize below maxError is raised to
// maxError so the identity grid is never finer than the error bound.
func NewGrid(maxError, cellSize float64) (Grid, error) {
	if !(maxError > 0) || math.IsInf(maxError, 0) {
		return Grid{}, fmt.Errorf("%w: %v", ErrInvalidMaxError, maxError)
	}
	if cellSize < 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		return Grid{}, fmt.Errorf("%w: %v", ErrInvalidCellSize, cellSize)
	}
	if cellSize < maxError {
		cellSize = maxError
	}
	return Grid{
		maxError: maxError,
		cellSize: cellSize,
		fine:     math.Trunc(maxError),
	}, nil
}

// PassthroughGrid returns a grid that does not snap at all.
// Every distinct raw keypoint becomes its own canonical entry. It is used for
// query images in localization, which must keep their raw detections.
func PassthroughGrid() Grid {
	return Grid{}
}

// IsPassthrough reports whether the grid keeps raw coordinates.
func (g Grid) IsPassthrough() bool { return g.cellSize == 0 }

// MaxError returns the error bound of the grid in pixels.
func (g Grid) MaxError() float64 { return g.maxError }

// CellSize returns the spacing of the identity grid.
func (g Grid) CellSize() float64 { return g.cellSize }

// Coarse returns the identity cell of p.
func (g Grid) Coarse(p core.Keypoint) Cell {
	return Cell{X: snap(float64(p.X), g.cellSize), Y: snap(float64(p.Y), g.cellSize)}
}

// Fine returns the voting cell of p.
func (g Grid) Fine(p core.Keypoint) Cell {
	return Cell{X: snap(float64(p.X), g.fine), Y: snap(float64(p.Y), g.fine)}
}

// snap maps v onto a grid of the given spacing, keeping pixel centers at
// integer coordinates. A non-positive spacing leaves v untouched.
func snap(v, spacing float64) float64 {
	if spacing <= 0 {
		return v
	}
	return round2(math.RoundToEven((v+0.5)/spacing)*spacing - 0.5)
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
