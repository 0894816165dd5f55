package kpagg

import (
	"context"
	"io"

	"github.com/hupe1980/kpagg/blobstore"
	"github.com/hupe1980/kpagg/internal/compress"
	"github.com/hupe1980/kpagg/resource"
	"github.com/hupe1980/kpagg/store"
	"github.com/hupe1980/kpagg/store/sqlite"
)

// Backend selects where keypoints, correspondences, matches and
// checkpoints are stored.
type Backend struct {
	name string
	open func(ctx context.Context, ct compress.Type, rc *resource.Controller) (store.Store, io.Closer, error)
}

// String returns the backend name.
func (b Backend) String() string { return b.name }

// Local stores records as files below dir.
func Local(dir string) Backend {
	return Remote(blobstore.NewLocalStore(dir))
}

// Memory keeps records in memory. Useful for tests.
func Memory() Backend {
	return Remote(blobstore.NewMemoryStore())
}

// Remote stores records in a blob store, e.g. an S3 or MinIO bucket.
func Remote(bs blobstore.BlobStore) Backend {
	return Backend{
		name: "blob",
		open: func(_ context.Context, ct compress.Type, rc *resource.Controller) (store.Store, io.Closer, error) {
			return store.NewBlobStore(bs, store.WithCompression(ct), store.WithController(rc)), nil, nil
		},
	}
}

// SQLite stores records in a single SQLite database file.
func SQLite(path string) Backend {
	return Backend{
		name: "sqlite",
		open: func(_ context.Context, ct compress.Type, _ *resource.Controller) (store.Store, io.Closer, error) {
			db, err := sqlite.Open(path, ct)
			if err != nil {
				return nil, nil, err
			}
			return db, db, nil
		},
	}
}

// Custom uses an existing store. The caller keeps ownership of it.
func Custom(st store.Store) Backend {
	return Backend{
		name: "custom",
		open: func(context.Context, compress.Type, *resource.Controller) (store.Store, io.Closer, error) {
			return st, nil, nil
		},
	}
}
