package engine

import "time"

// MetricsObserver defines the interface for observing aggregation events.
type MetricsObserver interface {
	// OnPair is called after a pair has been aggregated or skipped.
	OnPair(duration time.Duration, matches int, missing bool)

	// OnFinalize is called when an image set is finalized.
	OnFinalize(keypoints, dropped int)

	// OnReassign is called after a pair has been re-derived.
	OnReassign(duration time.Duration, matches int, err error)

	// OnQueueDepth reports the number of pairs still scheduled.
	OnQueueDepth(depth int)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnPair(time.Duration, int, bool)      {}
func (NoopMetricsObserver) OnFinalize(int, int)                  {}
func (NoopMetricsObserver) OnReassign(time.Duration, int, error) {}
func (NoopMetricsObserver) OnQueueDepth(int)                     {}
