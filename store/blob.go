package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/kpagg/blobstore"
	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/internal/compress"
	"github.com/hupe1980/kpagg/persistence"
	"github.com/hupe1980/kpagg/resource"
)

// Blob layout.
const (
	CorrespondencesPrefix = "correspondences/"
	MatchesPrefix         = "matches/"
	KeypointsPrefix       = "keypoints/"
	CheckpointsPrefix     = "checkpoints/"
	CurrentName           = "CURRENT"
)

type blobOptions struct {
	compression compress.Type
	controller  *resource.Controller
}

// BlobOption configures a BlobStore.
type BlobOption func(*blobOptions)

// WithCompression sets the compression of written records.
func WithCompression(c compress.Type) BlobOption {
	return func(o *blobOptions) { o.compression = c }
}

// WithController rate-limits record writes.
func WithController(c *resource.Controller) BlobOption {
	return func(o *blobOptions) { o.controller = c }
}

// BlobStore keeps records as persistence-encoded blobs.
type BlobStore struct {
	blobs blobstore.BlobStore
	opts  blobOptions

	mu  sync.Mutex
	seq uint64
}

// NewBlobStore creates a record store on top of a blob store.
func NewBlobStore(blobs blobstore.BlobStore, optFns ...BlobOption) *BlobStore {
	o := blobOptions{compression: compress.LZ4}
	for _, fn := range optFns {
		fn(&o)
	}
	return &BlobStore{blobs: blobs, opts: o}
}

// Blobs returns the underlying blob store.
func (s *BlobStore) Blobs() blobstore.BlobStore { return s.blobs }

func (s *BlobStore) put(ctx context.Context, name string, data []byte) error {
	if err := s.opts.controller.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	return s.blobs.Put(ctx, name, data)
}

func (s *BlobStore) get(ctx context.Context, kind, name string) ([]byte, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, notFound(kind, name)
		}
		return nil, err
	}
	return data, nil
}

func (s *BlobStore) has(ctx context.Context, name string) (bool, error) {
	b, err := s.blobs.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = b.Close()
	return true, nil
}

// PutCorrespondences implements CorrespondenceWriter.
func (s *BlobStore) PutCorrespondences(ctx context.Context, name0, name1 string, c *core.Correspondences) error {
	data, err := persistence.EncodeCorrespondences(c, s.opts.compression)
	if err != nil {
		return err
	}
	return s.put(ctx, CorrespondencesPrefix+core.PairKey(name0, name1), data)
}

// Correspondences implements CorrespondenceReader.
func (s *BlobStore) Correspondences(ctx context.Context, name0, name1 string) (*core.Correspondences, error) {
	data, err := s.get(ctx, "correspondences", CorrespondencesPrefix+core.PairKey(name0, name1))
	if err != nil {
		return nil, err
	}
	return persistence.DecodeCorrespondences(data)
}

// HasCorrespondences implements CorrespondenceReader.
func (s *BlobStore) HasCorrespondences(ctx context.Context, name0, name1 string) (bool, error) {
	return s.has(ctx, CorrespondencesPrefix+core.PairKey(name0, name1))
}

// PutMatches implements MatchStore.
func (s *BlobStore) PutMatches(ctx context.Context, name0, name1 string, m *core.MatchArray) error {
	data, err := persistence.EncodeMatchArray(m, s.opts.compression)
	if err != nil {
		return err
	}
	return s.put(ctx, MatchesPrefix+core.PairKey(name0, name1), data)
}

// Matches implements MatchStore.
func (s *BlobStore) Matches(ctx context.Context, name0, name1 string) (*core.MatchArray, error) {
	data, err := s.get(ctx, "matches", MatchesPrefix+core.PairKey(name0, name1))
	if err != nil {
		return nil, err
	}
	return persistence.DecodeMatchArray(data)
}

// HasMatches implements MatchStore.
func (s *BlobStore) HasMatches(ctx context.Context, name0, name1 string) (bool, error) {
	return s.has(ctx, MatchesPrefix+core.PairKey(name0, name1))
}

// PutKeypoints implements KeypointStore.
func (s *BlobStore) PutKeypoints(ctx context.Context, name string, set *core.KeypointSet) error {
	data, err := persistence.EncodeKeypointSet(set, s.opts.compression)
	if err != nil {
		return err
	}
	return s.put(ctx, KeypointsPrefix+name, data)
}

// Keypoints implements KeypointStore.
func (s *BlobStore) Keypoints(ctx context.Context, name string) (*core.KeypointSet, error) {
	data, err := s.get(ctx, "keypoints", KeypointsPrefix+name)
	if err != nil {
		return nil, err
	}
	return persistence.DecodeKeypointSet(data)
}

// HasKeypoints implements KeypointStore.
func (s *BlobStore) HasKeypoints(ctx context.Context, name string) (bool, error) {
	return s.has(ctx, KeypointsPrefix+name)
}

// KeypointNames implements KeypointStore.
func (s *BlobStore) KeypointNames(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx, KeypointsPrefix)
	if err != nil {
		return nil, err
	}
	for i, n := range names {
		names[i] = strings.TrimPrefix(n, KeypointsPrefix)
	}
	return names, nil
}

// SaveCheckpoint writes the checkpoint under a new name and then points
// CURRENT at it, so a crash never leaves CURRENT on a partial document.
func (s *BlobStore) SaveCheckpoint(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == 0 {
		existing, err := s.blobs.List(ctx, CheckpointsPrefix)
		if err != nil {
			return err
		}
		for _, n := range existing {
			if v, err := strconv.ParseUint(strings.TrimPrefix(n, CheckpointsPrefix), 10, 64); err == nil && v > s.seq {
				s.seq = v
			}
		}
	}
	s.seq++
	name := fmt.Sprintf("%s%08d", CheckpointsPrefix, s.seq)
	if err := s.blobs.Put(ctx, name, data); err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, CurrentName, []byte(name)); err != nil {
		return fmt.Errorf("commit checkpoint %s: %w", name, err)
	}
	if s.seq > 1 {
		_ = s.blobs.Delete(ctx, fmt.Sprintf("%s%08d", CheckpointsPrefix, s.seq-1))
	}
	return nil
}

// LoadCheckpoint reads the checkpoint CURRENT points at.
func (s *BlobStore) LoadCheckpoint(ctx context.Context) ([]byte, error) {
	target, err := s.get(ctx, "checkpoint", CurrentName)
	if err != nil {
		return nil, err
	}
	name := path.Clean(strings.TrimSpace(string(target)))
	return s.get(ctx, "checkpoint", name)
}
