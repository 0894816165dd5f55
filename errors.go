package kpagg

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kpagg/config"
	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/engine"
	"github.com/hupe1980/kpagg/quantization"
	"github.com/hupe1980/kpagg/store"
)

var (
	// ErrNotFound is returned when a keypoint set or match array does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when the aggregator is used after Close.
	ErrClosed = errors.New("aggregator closed")
)

// ConfigError indicates an invalid configuration. It is returned before any
// pair is processed.
//
// The original underlying error can be accessed via errors.Unwrap.
type ConfigError struct {
	cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.cause)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// InvariantError indicates an internal consistency failure. The run stops at
// the first one.
type InvariantError struct {
	cause error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated: %v", e.cause)
}

func (e *InvariantError) Unwrap() error { return e.cause }

// MissingPairError reports a pair without correspondences in either
// orientation.
type MissingPairError struct {
	Pair core.Pair
	// Count is the number of missing pairs of the run, at least 1.
	Count int
	cause error
}

func (e *MissingPairError) Error() string {
	if e.Count > 1 {
		return fmt.Sprintf("missing correspondences for %s and %d other pairs", e.Pair.Key(), e.Count-1)
	}
	return fmt.Sprintf("missing correspondences for %s", e.Pair.Key())
}

func (e *MissingPairError) Unwrap() error { return e.cause }

func isConfigError(err error) bool {
	for _, target := range []error{
		quantization.ErrInvalidMaxError,
		quantization.ErrInvalidCellSize,
		engine.ErrInvalidMaxKeypoints,
		engine.ErrInvalidWorkers,
		engine.ErrInvalidCacheSize,
		config.ErrUnknownPreset,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	if isConfigError(err) {
		return &ConfigError{cause: err}
	}
	if errors.Is(err, core.ErrInvariant) {
		return &InvariantError{cause: err}
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
