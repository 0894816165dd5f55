// Package engine implements the keypoint aggregation driver.
//
// The engine consumes pairwise dense correspondences and builds one canonical
// keypoint set per image:
//
//   - Pairs are scheduled by ascending remaining demand, the smaller of the two
//     images' outstanding pair counts, so vote accumulators are released early.
//   - Each side of a pair is quantized into its image's canonical set (insert
//     mode) or looked up against a frozen reference set (lookup mode).
//   - Mutual-best filtering turns the canonical assignments into a match array
//     that is persisted per pair.
//   - An image is finalized when its last pair has been processed: consensus
//     positions are resolved, the set is optionally truncated to the top K
//     keypoints and persisted.
//
// If truncation dropped keypoints, a reassignment pass re-derives the match
// arrays of every pair against the final sets.
//
// # Concurrency
//
// A single goroutine owns the per-image arena. Persistence runs on a bounded
// errgroup; every pair and image key is written by exactly one job. The
// reassignment pass works on frozen sets and runs pairs in parallel.
//
// # Resume
//
// Progress is checkpointed through store.CheckpointStore. A restarted run with
// the same plan skips pairs whose images are already finalized and loads
// finalized sets as references.
package engine
