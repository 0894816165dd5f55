// Package kpagg consolidates dense pairwise image correspondences into one
// canonical keypoint set per image and a match array per image pair.
//
// Dense matchers emit fresh sub-pixel keypoints for every pair, so the same
// physical point shows up at slightly different coordinates in every pair an
// image takes part in. kpagg snaps those observations onto a quantization
// grid, lets all pairs of an image vote on the canonical location of every
// grid cell and rewrites each pair as mutual-best matches between canonical
// indices.
//
// # Quick Start
//
//	ctx := context.Background()
//	agg, err := kpagg.Open(ctx, kpagg.Local("./data"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer agg.Close()
//
//	report, err := agg.AggregatePairs(ctx, pairs)
//
// Correspondences are read from the backend; keypoint sets and match arrays
// are written back to it. Match arrays are keyed like the correspondences
// they were derived from.
//
// # Backends
//
//   - Local: files below a directory
//   - Memory: in-process, for tests
//   - Remote: any blobstore.BlobStore (S3, MinIO)
//   - SQLite: a single database file
//
// # Keypoint Budget
//
// Config.MaxKeypoints caps every consolidated set; NoKeypointLimit disables
// the cap. Once any set was truncated, a second pass re-derives the match
// array of every pair from the raw correspondences against the final sets.
//
// # Cancellation
//
// A canceled run flushes pending writes, checkpoints its progress and
// returns the partial report together with ctx.Err(). Running the same pairs
// again resumes from the checkpoint.
package kpagg
