// Package quantization assigns raw keypoint detections to canonical keypoints.
//
// Two modes are supported:
//
//   - Lookup: nearest-neighbour search against a frozen canonical set. A
//     detection farther than maxError from every canonical keypoint stays
//     unmatched.
//   - Insert: detections are snapped to a coarse identity grid. Every coarse
//     cell is one canonical keypoint; unseen cells are appended. Each
//     detection also votes, with its correspondence score, for a cell of a
//     finer grid. Resolving the votes yields the consensus position of every
//     canonical keypoint.
//
// # Grids
//
// A coordinate p snaps to
//
//	round(round((p + 0.5) / s) * s - 0.5, 2)
//
// where s is the grid spacing and rounding is half-to-even. The coarse grid
// uses the cell size, the fine voting grid uses trunc(maxError). A zero
// spacing keeps the raw coordinate:
//
//	grid, err := quantization.NewGrid(2, 8)  // maxError=2px, cellSize=8px
//	bins := quantization.NewBins()
//	ids, err := bins.Insert(grid, keypoints, scores)
//	...
//	set := bins.Resolve()                      // consensus keypoints
//	set, dropped := quantization.TopK(set, 8192)
//
// Lookup is stateless:
//
//	ids := quantization.Lookup(keypoints, set.Keypoints, 2)
package quantization
