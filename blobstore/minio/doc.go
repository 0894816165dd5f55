// Package minio provides a blobstore.BlobStore backed by MinIO or any other
// S3-compatible service (Ceph, Garage, SeaweedFS).
//
//	store, err := minio.Dial(ctx, minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Bucket:    "kpagg",
//	    Prefix:    "runs/aachen/",
//	})
//
// Dial creates the bucket when it does not exist yet.
package minio
