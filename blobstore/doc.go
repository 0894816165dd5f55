// Package blobstore provides the storage abstraction behind the record stores.
//
// A BlobStore holds immutable named blobs. Names are slash separated, so the
// match array of pair "a.jpg/b.jpg" lives under "matches/a.jpg/b.jpg".
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, reads through mmap, atomic writes
//   - MemoryStore: in-memory, for tests and dry runs
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Missing blobs must be reported with an error satisfying
// errors.Is(err, ErrNotFound).
package blobstore
