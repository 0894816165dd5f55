// Package resource governs the shared resources of a run: persistence writer
// slots, IO bandwidth and the memory held by open vote accumulators.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxWriters is the maximum number of concurrent persistence writes.
	// If 0, defaults to 1.
	MaxWriters int64

	// IOLimitBytesPerSec caps the write throughput. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages writer concurrency, IO rate and memory accounting.
// A nil Controller imposes no limits.
type Controller struct {
	cfg Config

	writers   *semaphore.Weighted
	ioLimiter *rate.Limiter

	memUsed atomic.Int64
	memPeak atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWriters <= 0 {
		cfg.MaxWriters = 1
	}

	c := &Controller{
		cfg:     cfg,
		writers: semaphore.NewWeighted(cfg.MaxWriters),
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// MaxWriters returns the writer concurrency limit.
func (c *Controller) MaxWriters() int {
	if c == nil {
		return 1
	}
	return int(c.cfg.MaxWriters)
}

// AcquireWriter reserves a writer slot, blocking while all are busy.
func (c *Controller) AcquireWriter(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.writers.Acquire(ctx, 1)
}

// TryAcquireWriter reserves a writer slot without blocking.
func (c *Controller) TryAcquireWriter() bool {
	if c == nil {
		return true
	}
	return c.writers.TryAcquire(1)
}

// ReleaseWriter releases a writer slot.
func (c *Controller) ReleaseWriter() {
	if c == nil {
		return
	}
	c.writers.Release(1)
}

// AcquireIO waits until the IO limit allows n bytes. Requests larger than
// the burst are split.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// TrackMemory adds delta bytes to the accounted memory and updates the peak.
func (c *Controller) TrackMemory(delta int64) {
	if c == nil || delta == 0 {
		return
	}
	used := c.memUsed.Add(delta)
	for {
		peak := c.memPeak.Load()
		if used <= peak || c.memPeak.CompareAndSwap(peak, used) {
			return
		}
	}
}

// MemoryUsage returns the accounted memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// PeakMemory returns the highest accounted memory seen so far.
func (c *Controller) PeakMemory() int64 {
	if c == nil {
		return 0
	}
	return c.memPeak.Load()
}
