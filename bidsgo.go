package bidsgo

import (
	"bufio"
	"context"
	"os"
	"sync"
	"time"

	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/dataset"
	"github.com/hupe1980/bidsgo/entity"
	"github.com/hupe1980/bidsgo/index"
	"github.com/hupe1980/bidsgo/internal/walker"
	"github.com/hupe1980/bidsgo/persistence"
)

// New discovers the configured roots, walks their files and builds a fully
// populated layout. Construction is atomic: on any error (including context
// cancellation) no partial layout is returned.
func New(ctx context.Context, roots []string, optFns ...Option) (*Layout, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(o)
	}

	if err := entity.Validate(); err != nil {
		return nil, err
	}

	datasets, err := walker.Discover(roots, o.derivatives)
	if err != nil {
		return nil, translateError(err)
	}

	if o.cachePath != "" && !o.resetCache {
		if _, statErr := os.Stat(o.cachePath); statErr == nil {
			return loadCompatible(o, datasets)
		}
	}

	parser := bidspath.NewParser(o.mode)
	builder := index.NewBuilder(datasets)

	var (
		mu    sync.Mutex
		files int
	)
	start := time.Now()
	walkErr := walker.Walk(ctx, datasets, o.logger.Logger, func(dsID uint32, rel string) {
		parsed, perr := parser.Parse(rel)
		if perr != nil {
			// Strict-mode failures demote the file instead of aborting the
			// walk.
			o.logger.Debug("demoting unparseable path", "rel", rel, "error", perr)
			o.metrics.RecordParseFailure()
			parsed = bidspath.PartsOnly(rel)
		}
		mu.Lock()
		builder.Add(dsID, parsed)
		files++
		mu.Unlock()
	})
	o.metrics.RecordWalk(files, time.Since(start), walkErr)
	o.logger.LogWalk(ctx, len(datasets), files, walkErr)
	if walkErr != nil {
		return nil, translateError(walkErr)
	}

	l := newRootLayout(builder.Build(), parser, o)
	if o.cachePath != "" {
		if err := l.Save(o.cachePath); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Load reopens a layout from a cache file written by Save, without touching
// the dataset roots.
func Load(path string, optFns ...Option) (*Layout, error) {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(o)
	}

	var (
		ix   *index.Index
		mode bidspath.Mode
	)
	err := persistence.LoadFile(path, func(r *bufio.Reader) error {
		var loadErr error
		ix, mode, loadErr = persistence.Load(r)
		return loadErr
	})
	if err != nil {
		return nil, translateError(err)
	}
	return newRootLayout(ix, bidspath.NewParser(mode), o), nil
}

// loadCompatible loads the configured cache and verifies that its dataset
// table matches the discovered one; any mismatch in root, kind or label
// ordering is rejected.
func loadCompatible(o *options, discovered []dataset.Dataset) (*Layout, error) {
	var (
		ix   *index.Index
		mode bidspath.Mode
	)
	err := persistence.LoadFile(o.cachePath, func(r *bufio.Reader) error {
		var loadErr error
		ix, mode, loadErr = persistence.Load(r)
		return loadErr
	})
	if err != nil {
		return nil, translateError(err)
	}

	cached := ix.Datasets()
	if len(cached) != len(discovered) {
		return nil, &CacheIncompatibleError{Reason: "dataset table mismatch"}
	}
	for i := range cached {
		if cached[i].Root != discovered[i].Root ||
			cached[i].Kind != discovered[i].Kind ||
			cached[i].Label != discovered[i].Label {
			return nil, &CacheIncompatibleError{Reason: "dataset table mismatch"}
		}
	}
	if mode != o.mode {
		return nil, &CacheIncompatibleError{Reason: "parser mode mismatch"}
	}
	return newRootLayout(ix, bidspath.NewParser(mode), o), nil
}

func newRootLayout(ix *index.Index, parser *bidspath.Parser, o *options) *Layout {
	return &Layout{
		idx:      ix,
		parser:   parser,
		sel:      ix.Full(),
		datasets: ix.AllDatasets(),
		logger:   o.logger,
		metrics:  o.metrics,
		compress: o.compress,
		meta:     &metaLatch{},
	}
}
