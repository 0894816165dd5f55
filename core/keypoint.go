package core

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when parallel sequences differ in length.
var ErrLengthMismatch = errors.New("length mismatch")

// Keypoint is a 2D location in image pixel space.
type Keypoint struct {
	X float32
	Y float32
}

// Correspondences are the raw dense matches of one image pair.
// Keypoints0[i] in image 0 corresponds to Keypoints1[i] in image 1 with
// confidence Scores[i].
type Correspondences struct {
	Keypoints0 []Keypoint
	Keypoints1 []Keypoint
	Scores     []float32
}

// Len returns the number of correspondences.
func (c *Correspondences) Len() int { return len(c.Scores) }

// Validate checks that all three sequences have the same length.
func (c *Correspondences) Validate() error {
	if len(c.Keypoints0) != len(c.Scores) || len(c.Keypoints1) != len(c.Scores) {
		return fmt.Errorf("%w: keypoints0=%d keypoints1=%d scores=%d",
			ErrLengthMismatch, len(c.Keypoints0), len(c.Keypoints1), len(c.Scores))
	}
	return nil
}

// Swap returns the correspondences seen from image 1.
// The backing arrays are shared with c.
func (c *Correspondences) Swap() *Correspondences {
	return &Correspondences{
		Keypoints0: c.Keypoints1,
		Keypoints1: c.Keypoints0,
		Scores:     c.Scores,
	}
}

// KeypointSet is the finalized canonical keypoint set of an image.
// The position of a keypoint is its canonical index.
type KeypointSet struct {
	Keypoints []Keypoint
	// Scores holds the consensus weight of every keypoint.
	Scores []float32
}

// Len returns the number of canonical keypoints.
func (s *KeypointSet) Len() int { return len(s.Keypoints) }

// Validate checks that keypoints and scores are parallel.
func (s *KeypointSet) Validate() error {
	if len(s.Keypoints) != len(s.Scores) {
		return fmt.Errorf("%w: keypoints=%d scores=%d", ErrLengthMismatch, len(s.Keypoints), len(s.Scores))
	}
	return nil
}
