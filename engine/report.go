package engine

import (
	"time"

	"github.com/hupe1980/kpagg/core"
)

// Report summarizes a run.
type Report struct {
	// Pairs is the number of scheduled pairs after deduplication.
	Pairs      int `json:"pairs"`
	Duplicates int `json:"duplicates"`
	SelfPairs  int `json:"self_pairs"`

	// Processed counts pairs aggregated in this run, Resumed the pairs
	// skipped because an earlier run completed them.
	Processed int `json:"processed"`
	Resumed   int `json:"resumed"`

	// MissingPairs lists pairs without correspondences in either direction.
	MissingPairs []core.Pair `json:"missing_pairs,omitempty"`

	Images     int `json:"images"`
	Required   int `json:"required"`
	References int `json:"references"`
	Finalized  int `json:"finalized"`

	// Keypoints is the total size of the sets finalized in this run.
	Keypoints int `json:"keypoints"`

	// Truncated lists images that lost keypoints to the budget; Dropped is
	// the number of keypoints removed.
	Truncated []string `json:"truncated,omitempty"`
	Dropped   int      `json:"dropped"`

	Reassigned int `json:"reassigned"`

	// EmptyAfterReassign lists pairs left without any match by the
	// reassignment pass.
	EmptyAfterReassign []core.Pair `json:"empty_after_reassign,omitempty"`

	PeakMemory int64         `json:"peak_memory"`
	Canceled   bool          `json:"canceled"`
	Duration   time.Duration `json:"duration"`
}

// AvgKeypoints returns the average size of the sets finalized in this run.
func (r *Report) AvgKeypoints() float64 {
	if r.Finalized == 0 {
		return 0
	}
	return float64(r.Keypoints) / float64(r.Finalized)
}
