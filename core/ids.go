package core

// ImageID is a dense, run-local identifier for an image.
// It indexes the per-image arena of the aggregation engine and the
// roaring bitmaps that track image state.
type ImageID uint32

// MaxImageID is the maximum possible value for an ImageID.
const MaxImageID = ^ImageID(0)

// Unmatched marks a keypoint without a canonical assignment or a match.
const Unmatched int32 = -1
