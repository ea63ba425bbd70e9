package bidsgo

import (
	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/dataset"
)

type options struct {
	derivatives dataset.DerivativesSpec
	mode        bidspath.Mode
	cachePath   string
	resetCache  bool
	compress    bool
	logger      *Logger
	metrics     MetricsCollector
}

// Option configures New and Load behavior.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		derivatives: dataset.NoDerivatives(),
		mode:        bidspath.ModeStrict,
		compress:    true,
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
	}
}

// WithDerivatives enables or disables automatic discovery of derivative
// datasets under derivatives/ of each raw root. Each discovered dataset is
// labelled by its directory basename.
func WithDerivatives(enabled bool) Option {
	return func(o *options) {
		if enabled {
			o.derivatives = dataset.AutoDerivatives()
		} else {
			o.derivatives = dataset.NoDerivatives()
		}
	}
}

// WithDerivativePaths indexes each path as an unlabelled derivative dataset.
func WithDerivativePaths(paths ...string) Option {
	return func(o *options) {
		o.derivatives = dataset.DerivativePaths(paths...)
	}
}

// WithLabeledDerivatives indexes each mapped path as a derivative dataset
// tagged with its key.
func WithLabeledDerivatives(m map[string]string) Option {
	return func(o *options) {
		o.derivatives = dataset.LabeledDerivatives(m)
	}
}

// WithPermissiveParsing accepts any key-value token as an entity instead of
// gating on the BIDS dictionary. Unknown keys keep their literal name.
func WithPermissiveParsing() Option {
	return func(o *options) {
		o.mode = bidspath.ModePermissive
	}
}

// WithCache loads the layout from path when a cache file exists there, and
// saves the freshly built index to it otherwise. An existing cache that cannot
// be loaded or does not match the configured datasets and parser mode fails
// CacheIncompatibleError; it is not rebuilt unless WithResetCache is given.
func WithCache(path string) Option {
	return func(o *options) {
		o.cachePath = path
	}
}

// WithResetCache ignores an existing cache file and rebuilds from the
// filesystem.
func WithResetCache() Option {
	return func(o *options) {
		o.resetCache = true
	}
}

// WithUncompressedCache disables zstd compression of the cache payload.
func WithUncompressedCache() Option {
	return func(o *options) {
		o.compress = false
	}
}

// WithLogger sets the structured logger for operation tracing. The default
// logger discards everything.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector for monitoring.
func WithMetrics(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}
