package kpagg

import (
	"log/slog"

	"github.com/hupe1980/kpagg/codec"
	"github.com/hupe1980/kpagg/engine"
	"github.com/hupe1980/kpagg/resource"
)

type options struct {
	config           engine.Config
	codec            codec.Codec
	compression      string
	resources        resource.Config
	metricsCollector MetricsCollector
	logger           *Logger
	strict           bool
}

// Option configures Open.
type Option func(*options)

// WithConfig sets the aggregation parameters. The default is
// engine.DefaultConfig.
func WithConfig(cfg engine.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithCodec configures the codec used for checkpoints.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression selects the block compression of stored records: "none",
// "lz4" or "zstd". The default is "zstd".
func WithCompression(name string) Option {
	return func(o *options) {
		o.compression = name
	}
}

// WithResources limits writer concurrency and IO throughput. MaxWriters
// defaults to Config.Writers.
func WithResources(cfg resource.Config) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithMetricsCollector configures a metrics collector for monitoring runs.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &kpagg.BasicMetricsCollector{}
//	agg, _ := kpagg.Open(ctx, kpagg.Local("./data"), kpagg.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
//	fmt.Printf("Pairs: %d, Avg latency: %dns\n", stats.PairCount, stats.PairAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithStrict makes Aggregate fail with a *MissingPairError when any pair has
// no correspondences. The run itself still completes.
func WithStrict() Option {
	return func(o *options) {
		o.strict = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		config:           engine.DefaultConfig(),
		codec:            codec.Default,
		compression:      "zstd",
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.resources.MaxWriters == 0 {
		o.resources.MaxWriters = int64(o.config.Writers)
	}
	return o
}
