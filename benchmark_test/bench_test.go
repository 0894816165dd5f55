package benchmark_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/kpagg"
	"github.com/hupe1980/kpagg/internal/compress"
	"github.com/hupe1980/kpagg/match"
	"github.com/hupe1980/kpagg/persistence"
	"github.com/hupe1980/kpagg/quantization"
	"github.com/hupe1980/kpagg/testutil"
)

func BenchmarkBins_Insert(b *testing.B) {
	for _, cell := range []float64{1, 8} {
		b.Run(fmt.Sprintf("cell=%v", cell), func(b *testing.B) {
			g, err := quantization.NewGrid(1, cell)
			if err != nil {
				b.Fatal(err)
			}
			rng := testutil.NewRNG(1)
			points := rng.Keypoints(10_000, 1024, 768)
			scores := rng.Scores(len(points))

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				bins := quantization.NewBins()
				if _, err := bins.Insert(g, points, scores); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkBins_Resolve(b *testing.B) {
	g, _ := quantization.NewGrid(2, 8)
	rng := testutil.NewRNG(2)
	bins := quantization.NewBins()
	base := rng.Keypoints(5_000, 1024, 768)
	for round := 0; round < 10; round++ {
		if _, err := bins.Insert(g, rng.Jitter(base, 0.5), nil); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bins.Resolve()
	}
}

func BenchmarkLookup(b *testing.B) {
	rng := testutil.NewRNG(3)
	canonical := rng.Keypoints(8192, 1024, 768)
	points := rng.Jitter(canonical[:4096], 0.5)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = quantization.Lookup(points, canonical, 1)
	}
}

func BenchmarkFilter(b *testing.B) {
	rng := testutil.NewRNG(4)
	n := 20_000
	ids0 := make([]int32, n)
	ids1 := make([]int32, n)
	for i := range ids0 {
		ids0[i] = int32(rng.Intn(5000))
		ids1[i] = int32(rng.Intn(5000))
	}
	scores := rng.Scores(n)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := match.FromAssignments(ids0, ids1, scores); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeCorrespondences(b *testing.B) {
	scene := testutil.NewScene(testutil.NewRNG(5), testutil.SceneConfig{Images: 2, Tracks: 10_000, Sigma: 0.3})
	c := scene.Correspondences(0, 1)

	for _, comp := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
		b.Run(comp.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				data, err := persistence.EncodeCorrespondences(c, comp)
				if err != nil {
					b.Fatal(err)
				}
				b.SetBytes(int64(len(data)))
			}
		})
	}
}

func BenchmarkAggregate(b *testing.B) {
	for _, images := range []int{10, 30} {
		b.Run(fmt.Sprintf("images=%d", images), func(b *testing.B) {
			ctx := context.Background()
			scene := testutil.NewScene(testutil.NewRNG(6), testutil.SceneConfig{Images: images, Tracks: 1000, Sigma: 0.3})
			pairs := scene.Pairs()

			cfg := kpagg.Config{
				MaxError:        2,
				CellSize:        8,
				MaxKeypoints:    800,
				Writers:         4,
				ReassignWorkers: 4,
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				agg, err := kpagg.Open(ctx, kpagg.Memory(), kpagg.WithConfig(cfg), kpagg.WithCompression("none"))
				if err != nil {
					b.Fatal(err)
				}
				if err := scene.Populate(ctx, agg.Store(), pairs); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()

				report, err := agg.AggregatePairs(ctx, pairs)
				if err != nil {
					b.Fatal(err)
				}
				b.ReportMetric(report.AvgKeypoints(), "kps/image")
				_ = agg.Close()
			}
		})
	}
}
