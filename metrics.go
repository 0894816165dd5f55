package kpagg

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hupe1980/kpagg/engine"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordPair is called after each pair of the aggregation pass.
	// missing is true when the pair had no correspondences.
	RecordPair(duration time.Duration, matches int, missing bool)

	// RecordFinalize is called when an image set is finalized. dropped is the
	// number of keypoints removed by the keypoint budget.
	RecordFinalize(keypoints, dropped int)

	// RecordReassign is called after each pair of the reassignment pass.
	RecordReassign(duration time.Duration, matches int, err error)

	// RecordQueueDepth reports the number of pairs still scheduled.
	RecordQueueDepth(depth int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPair(time.Duration, int, bool)      {}
func (NoopMetricsCollector) RecordFinalize(int, int)                  {}
func (NoopMetricsCollector) RecordReassign(time.Duration, int, error) {}
func (NoopMetricsCollector) RecordQueueDepth(int)                     {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	PairCount          atomic.Int64
	PairMissing        atomic.Int64
	PairMatches        atomic.Int64
	PairTotalNanos     atomic.Int64
	FinalizeCount      atomic.Int64
	FinalizeKeypoints  atomic.Int64
	FinalizeDropped    atomic.Int64
	ReassignCount      atomic.Int64
	ReassignErrors     atomic.Int64
	ReassignMatches    atomic.Int64
	ReassignTotalNanos atomic.Int64
	QueueDepth         atomic.Int64
}

// RecordPair implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPair(duration time.Duration, matches int, missing bool) {
	b.PairCount.Add(1)
	b.PairTotalNanos.Add(duration.Nanoseconds())
	b.PairMatches.Add(int64(matches))
	if missing {
		b.PairMissing.Add(1)
	}
}

// RecordFinalize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFinalize(keypoints, dropped int) {
	b.FinalizeCount.Add(1)
	b.FinalizeKeypoints.Add(int64(keypoints))
	b.FinalizeDropped.Add(int64(dropped))
}

// RecordReassign implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReassign(duration time.Duration, matches int, err error) {
	b.ReassignCount.Add(1)
	b.ReassignTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReassignErrors.Add(1)
		return
	}
	b.ReassignMatches.Add(int64(matches))
}

// RecordQueueDepth implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQueueDepth(depth int) {
	b.QueueDepth.Store(int64(depth))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PairCount:         b.PairCount.Load(),
		PairMissing:       b.PairMissing.Load(),
		PairMatches:       b.PairMatches.Load(),
		PairAvgNanos:      avg(b.PairTotalNanos.Load(), b.PairCount.Load()),
		FinalizeCount:     b.FinalizeCount.Load(),
		FinalizeKeypoints: b.FinalizeKeypoints.Load(),
		FinalizeDropped:   b.FinalizeDropped.Load(),
		ReassignCount:     b.ReassignCount.Load(),
		ReassignErrors:    b.ReassignErrors.Load(),
		ReassignMatches:   b.ReassignMatches.Load(),
		ReassignAvgNanos:  avg(b.ReassignTotalNanos.Load(), b.ReassignCount.Load()),
		QueueDepth:        b.QueueDepth.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PairCount         int64
	PairMissing       int64
	PairMatches       int64
	PairAvgNanos      int64
	FinalizeCount     int64
	FinalizeKeypoints int64
	FinalizeDropped   int64
	ReassignCount     int64
	ReassignErrors    int64
	ReassignMatches   int64
	ReassignAvgNanos  int64
	QueueDepth        int64
}

// observer feeds engine hooks into a MetricsCollector and the debug log.
type observer struct {
	metrics MetricsCollector
	logger  *Logger
}

var _ engine.MetricsObserver = observer{}

func (o observer) OnPair(duration time.Duration, matches int, missing bool) {
	o.metrics.RecordPair(duration, matches, missing)
	o.logger.LogPair(context.Background(), duration, matches, missing)
}

func (o observer) OnFinalize(keypoints, dropped int) {
	o.metrics.RecordFinalize(keypoints, dropped)
}

func (o observer) OnReassign(duration time.Duration, matches int, err error) {
	o.metrics.RecordReassign(duration, matches, err)
	o.logger.LogReassign(context.Background(), duration, matches, err)
}

func (o observer) OnQueueDepth(depth int) {
	o.metrics.RecordQueueDepth(depth)
}
