// Package testutil provides synthetic scenes for tests and benchmarks.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Keypoints
//
//	rng := testutil.NewRNG(seed)
//	kps := rng.Keypoints(1000, 640, 480) // uniform in the image
//	noisy := rng.Jitter(kps, 0.3)        // gaussian pixel noise
//
// # Scenes
//
// A Scene is a set of images that observe shared tracks. Every pair of
// images yields dense correspondences whose keypoints scatter around the
// true track positions, the way a dense matcher reports the same physical
// point at slightly different coordinates in every pair.
//
//	scene := testutil.NewScene(rng, testutil.SceneConfig{Images: 10, Tracks: 500})
//	err := scene.Populate(ctx, store, scene.Pairs())
package testutil
