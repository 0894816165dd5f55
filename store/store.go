// Package store persists the records of a run: correspondences written by the
// matcher, match arrays and canonical keypoint sets written by the engine,
// and run checkpoints.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/kpagg/blobstore"
	"github.com/hupe1980/kpagg/core"
)

// ErrNotFound is returned when a record does not exist.
// It satisfies errors.Is(err, blobstore.ErrNotFound).
var ErrNotFound = fmt.Errorf("record not found: %w", blobstore.ErrNotFound)

// CorrespondenceReader reads stored correspondences under their exact key.
type CorrespondenceReader interface {
	// Correspondences returns the correspondences stored under PairKey(name0, name1).
	Correspondences(ctx context.Context, name0, name1 string) (*core.Correspondences, error)
	// HasCorrespondences reports whether PairKey(name0, name1) is stored.
	HasCorrespondences(ctx context.Context, name0, name1 string) (bool, error)
}

// CorrespondenceWriter stores correspondences.
type CorrespondenceWriter interface {
	PutCorrespondences(ctx context.Context, name0, name1 string, c *core.Correspondences) error
}

// MatchStore stores match arrays under the key of their correspondences.
type MatchStore interface {
	PutMatches(ctx context.Context, name0, name1 string, m *core.MatchArray) error
	Matches(ctx context.Context, name0, name1 string) (*core.MatchArray, error)
	HasMatches(ctx context.Context, name0, name1 string) (bool, error)
}

// KeypointStore stores finalized canonical keypoint sets.
type KeypointStore interface {
	PutKeypoints(ctx context.Context, name string, s *core.KeypointSet) error
	Keypoints(ctx context.Context, name string) (*core.KeypointSet, error)
	HasKeypoints(ctx context.Context, name string) (bool, error)
	// KeypointNames returns the sorted names of all stored keypoint sets.
	KeypointNames(ctx context.Context) ([]string, error)
}

// CheckpointStore stores the latest checkpoint document of a run.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, data []byte) error
	// LoadCheckpoint returns ErrNotFound if no checkpoint was saved.
	LoadCheckpoint(ctx context.Context) ([]byte, error)
}

// Store combines all record stores.
type Store interface {
	CorrespondenceReader
	CorrespondenceWriter
	MatchStore
	KeypointStore
	CheckpointStore
}

// Oriented are correspondences loaded for a listed pair, together with the
// orientation they were stored in.
type Oriented struct {
	*core.Correspondences
	// Pair is the stored orientation. Keypoints0 belong to Pair.Name0.
	Pair core.Pair
	// Swapped reports that Pair is the reverse of the requested pair.
	Swapped bool
}

// LoadCorrespondences reads the correspondences of a pair in either
// direction. The result is oriented the way it was stored, so match arrays
// written for it are keyed like the correspondences.
func LoadCorrespondences(ctx context.Context, r CorrespondenceReader, p core.Pair) (*Oriented, error) {
	c, err := r.Correspondences(ctx, p.Name0, p.Name1)
	if err == nil {
		return &Oriented{Correspondences: c, Pair: p}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	rev := p.Reverse()
	c, err = r.Correspondences(ctx, rev.Name0, rev.Name1)
	if err != nil {
		return nil, err
	}
	return &Oriented{Correspondences: c, Pair: rev, Swapped: true}, nil
}

// Find returns the stored orientation of a pair, trying both directions.
func Find(ctx context.Context, r CorrespondenceReader, p core.Pair) (core.Pair, bool, error) {
	for _, q := range []core.Pair{p, p.Reverse()} {
		ok, err := r.HasCorrespondences(ctx, q.Name0, q.Name1)
		if err != nil {
			return core.Pair{}, false, err
		}
		if ok {
			return q, true, nil
		}
	}
	return core.Pair{}, false, nil
}

// Requested returns the correspondences in the requested orientation.
func (o *Oriented) Requested() *core.Correspondences {
	if o.Swapped {
		return o.Correspondences.Swap()
	}
	return o.Correspondences
}

func notFound(kind, key string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, key)
}
