package engine

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/hupe1980/kpagg/quantization"
)

// NoKeypointLimit disables the per-image keypoint budget and with it the
// reassignment pass.
const NoKeypointLimit = -1

var (
	// ErrInvalidMaxKeypoints is returned when the keypoint budget is neither
	// positive nor NoKeypointLimit.
	ErrInvalidMaxKeypoints = errors.New("max keypoints must be positive or unlimited")

	// ErrInvalidWorkers is returned when a worker count is below one.
	ErrInvalidWorkers = errors.New("worker count must be at least 1")

	// ErrInvalidCacheSize is returned when the keypoint cache size is negative.
	ErrInvalidCacheSize = errors.New("keypoint cache size must not be negative")
)

// Config holds the aggregation parameters.
type Config struct {
	// MaxError is the quantization tolerance in pixels.
	MaxError float64

	// CellSize is the coarse identity grid spacing. Zero defaults to MaxError;
	// smaller values are clamped up to MaxError.
	CellSize float64

	// MaxKeypoints is the per-image keypoint budget K. NoKeypointLimit
	// disables truncation and the reassignment pass; zero is rejected.
	MaxKeypoints int

	// Writers bounds concurrent persistence jobs.
	Writers int

	// ReassignWorkers bounds the pairs re-derived in parallel.
	ReassignWorkers int

	// KeypointCacheSize is the number of final sets cached during
	// reassignment. Zero uses the number of images.
	KeypointCacheSize int

	// CheckpointInterval is the number of processed pairs between
	// checkpoints. Zero only checkpoints on cancellation and completion.
	CheckpointInterval int

	// Overwrite re-consolidates images that already have a stored keypoint
	// set. The stored set is binned as an anchor.
	Overwrite bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxError:           1,
		CellSize:           1,
		MaxKeypoints:       8192,
		Writers:            4,
		ReassignWorkers:    runtime.GOMAXPROCS(0),
		CheckpointInterval: 1000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := c.grid(); err != nil {
		return err
	}
	if c.MaxKeypoints <= 0 && c.MaxKeypoints != NoKeypointLimit {
		return fmt.Errorf("%w: %d", ErrInvalidMaxKeypoints, c.MaxKeypoints)
	}
	if c.Writers < 1 {
		return fmt.Errorf("%w: writers=%d", ErrInvalidWorkers, c.Writers)
	}
	if c.ReassignWorkers < 1 {
		return fmt.Errorf("%w: reassign workers=%d", ErrInvalidWorkers, c.ReassignWorkers)
	}
	if c.KeypointCacheSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.KeypointCacheSize)
	}
	return nil
}

// truncates reports whether finalized sets are capped.
func (c Config) truncates() bool { return c.MaxKeypoints > 0 }

func (c Config) grid() (quantization.Grid, error) {
	return quantization.NewGrid(c.MaxError, c.CellSize)
}
