package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/kpagg/core"
	"github.com/hupe1980/kpagg/store"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// Keypoints generates n keypoints uniformly inside a width x height image.
func (r *RNG) Keypoints(n int, width, height float32) []core.Keypoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Keypoint, n)
	for i := range out {
		out[i] = core.Keypoint{X: r.rand.Float32() * width, Y: r.rand.Float32() * height}
	}
	return out
}

// Jitter returns a copy of kps with gaussian noise of standard deviation
// sigma added to both coordinates.
func (r *RNG) Jitter(kps []core.Keypoint, sigma float32) []core.Keypoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Keypoint, len(kps))
	for i, p := range kps {
		out[i] = core.Keypoint{
			X: p.X + float32(r.rand.NormFloat64())*sigma,
			Y: p.Y + float32(r.rand.NormFloat64())*sigma,
		}
	}
	return out
}

// Scores generates n confidences in (0, 1].
func (r *RNG) Scores(n int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float32, n)
	for i := range out {
		out[i] = 1 - r.rand.Float32()
	}
	return out
}

// SceneConfig describes a synthetic scene.
type SceneConfig struct {
	Images int
	Tracks int
	Width  float32
	Height float32
	// Sigma is the pixel noise of every observation.
	Sigma float32
	// Visibility is the probability that a track is matched in a pair.
	Visibility float32
}

func (c *SceneConfig) defaults() {
	if c.Width == 0 {
		c.Width = 640
	}
	if c.Height == 0 {
		c.Height = 480
	}
	if c.Visibility == 0 {
		c.Visibility = 0.8
	}
}

// Scene is a set of images observing shared tracks.
type Scene struct {
	cfg    SceneConfig
	rng    *RNG
	names  []string
	tracks [][]core.Keypoint
}

// NewScene creates a scene. Every image sees every track at its own,
// image-specific position.
func NewScene(rng *RNG, cfg SceneConfig) *Scene {
	cfg.defaults()
	s := &Scene{
		cfg:    cfg,
		rng:    rng,
		names:  make([]string, cfg.Images),
		tracks: make([][]core.Keypoint, cfg.Images),
	}
	for i := range s.names {
		s.names[i] = fmt.Sprintf("img%04d.jpg", i)
		s.tracks[i] = rng.Keypoints(cfg.Tracks, cfg.Width, cfg.Height)
	}
	return s
}

// Images returns the image names.
func (s *Scene) Images() []string { return s.names }

// Track returns the true position of track t in image i.
func (s *Scene) Track(i, t int) core.Keypoint { return s.tracks[i][t] }

// Pairs returns all unordered image pairs.
func (s *Scene) Pairs() []core.Pair {
	var out []core.Pair
	for i := range s.names {
		for j := i + 1; j < len(s.names); j++ {
			out = append(out, core.Pair{Name0: s.names[i], Name1: s.names[j]})
		}
	}
	return out
}

// Correspondences generates noisy correspondences between images i and j.
func (s *Scene) Correspondences(i, j int) *core.Correspondences {
	var kps0, kps1 []core.Keypoint
	for t := 0; t < s.cfg.Tracks; t++ {
		if s.rng.Float32() >= s.cfg.Visibility {
			continue
		}
		kps0 = append(kps0, s.tracks[i][t])
		kps1 = append(kps1, s.tracks[j][t])
	}
	return &core.Correspondences{
		Keypoints0: s.rng.Jitter(kps0, s.cfg.Sigma),
		Keypoints1: s.rng.Jitter(kps1, s.cfg.Sigma),
		Scores:     s.rng.Scores(len(kps0)),
	}
}

// Populate writes the correspondences of pairs to w.
func (s *Scene) Populate(ctx context.Context, w store.CorrespondenceWriter, pairs []core.Pair) error {
	index := make(map[string]int, len(s.names))
	for i, name := range s.names {
		index[name] = i
	}
	for _, p := range pairs {
		i, ok0 := index[p.Name0]
		j, ok1 := index[p.Name1]
		if !ok0 || !ok1 {
			return fmt.Errorf("pair %s is not part of the scene", p.Key())
		}
		if err := w.PutCorrespondences(ctx, p.Name0, p.Name1, s.Correspondences(i, j)); err != nil {
			return err
		}
	}
	return nil
}
