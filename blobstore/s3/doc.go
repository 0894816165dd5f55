// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("runs/aachen/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	eng, err := kpagg.New(kpagg.WithBlobStore(store))
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads with CRC32C integrity checks
//   - Automatic pagination for listing
//   - DynamoDB-backed CURRENT pointer for checkpoints (DDBCommitStore)
package s3
