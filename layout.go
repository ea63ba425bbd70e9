package bidsgo

import (
	"bufio"
	"context"
	"iter"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/dataset"
	"github.com/hupe1980/bidsgo/index"
	"github.com/hupe1980/bidsgo/metadata"
	"github.com/hupe1980/bidsgo/persistence"
)

// File is one indexed path together with its parsed form.
type File = index.File

// metaLatch serializes metadata indexing at the root layout: concurrent
// callers observe at most one resolver run.
type metaLatch struct {
	mu   sync.Mutex
	done bool
}

// Layout is an immutable view over a shared index: a selection bitmap plus
// the dataset ids it references. Query operations return new views backed by
// the same index.
type Layout struct {
	idx      *index.Index
	parser   *bidspath.Parser
	sel      *roaring.Bitmap
	datasets *roaring.Bitmap
	logger   *Logger
	metrics  MetricsCollector
	compress bool
	meta     *metaLatch
}

// derive returns a new view sharing this layout's index, with the dataset
// set re-projected from the selection.
func (l *Layout) derive(sel *roaring.Bitmap) *Layout {
	out := *l
	out.sel = sel
	out.datasets = l.idx.DatasetsIn(sel)
	return &out
}

// Len returns the number of files in the selection.
func (l *Layout) Len() int {
	return int(l.sel.GetCardinality())
}

// All iterates the selected files in ascending path order.
func (l *Layout) All() iter.Seq[*File] {
	return func(yield func(*File) bool) {
		it := l.sel.Iterator()
		for it.HasNext() {
			if !yield(l.idx.File(it.Next())) {
				return
			}
		}
	}
}

// Files returns the selected files in ascending path order.
func (l *Layout) Files() []*File {
	out := make([]*File, 0, l.Len())
	for f := range l.All() {
		out = append(out, f)
	}
	return out
}

// One returns the sole file of a singleton selection. An empty selection
// fails ErrNoResults; a larger one fails NotUniqueError naming the entities
// that still vary.
func (l *Layout) One() (*File, error) {
	switch l.sel.GetCardinality() {
	case 0:
		return nil, ErrNoResults
	case 1:
		return l.idx.File(l.sel.Minimum()), nil
	default:
		return nil, &NotUniqueError{Entities: l.idx.VaryingEntities(l.sel)}
	}
}

// Roots returns the roots of the datasets referenced by the selection, in
// dataset order.
func (l *Layout) Roots() []string {
	referenced := l.idx.DatasetsIn(l.sel)
	out := make([]string, 0, referenced.GetCardinality())
	it := referenced.Iterator()
	for it.HasNext() {
		out = append(out, l.idx.Dataset(it.Next()).Root)
	}
	return out
}

// rootDataset resolves the unique dataset behind Root and Description: the
// sole raw dataset if exactly one is referenced, otherwise the sole
// derivative if no raw dataset is referenced.
func (l *Layout) rootDataset() (*dataset.Dataset, error) {
	referenced := l.idx.DatasetsIn(l.sel)
	var raw, deriv []*dataset.Dataset
	it := referenced.Iterator()
	for it.HasNext() {
		ds := l.idx.Dataset(it.Next())
		if ds.Kind == dataset.KindRaw {
			raw = append(raw, ds)
		} else {
			deriv = append(deriv, ds)
		}
	}
	switch {
	case len(raw) == 1:
		return raw[0], nil
	case len(raw) > 1:
		return nil, &AmbiguousRootError{N: len(raw)}
	case len(deriv) == 1:
		return deriv[0], nil
	case len(deriv) > 1:
		return nil, &AmbiguousRootError{N: len(deriv)}
	default:
		return nil, ErrNoRoot
	}
}

// Root returns the root directory of the selection's unique dataset.
func (l *Layout) Root() (string, error) {
	ds, err := l.rootDataset()
	if err != nil {
		return "", err
	}
	return ds.Root, nil
}

// Description returns the description of the selection's unique dataset.
// A present but unparseable dataset_description.json surfaces its
// BadDescriptionError here.
func (l *Layout) Description() (*dataset.Description, error) {
	ds, err := l.rootDataset()
	if err != nil {
		return nil, err
	}
	if ds.DescriptionErr != nil {
		return nil, ds.DescriptionErr
	}
	return ds.Description, nil
}

// Datasets returns the datasets referenced by the selection.
func (l *Layout) Datasets() []*dataset.Dataset {
	referenced := l.idx.DatasetsIn(l.sel)
	out := make([]*dataset.Dataset, 0, referenced.GetCardinality())
	it := referenced.Iterator()
	for it.HasNext() {
		out = append(out, l.idx.Dataset(it.Next()))
	}
	return out
}

// Derivatives returns the view restricted to derivative datasets.
func (l *Layout) Derivatives() *Layout {
	sel := roaring.New()
	it := l.datasets.Iterator()
	for it.HasNext() {
		id := it.Next()
		if l.idx.Dataset(id).Kind == dataset.KindDerivative {
			sel.Or(l.idx.DatasetBitmap(id))
		}
	}
	sel.And(l.sel)
	return l.derive(sel)
}

// Entities returns, for every entity present in the selection, the sorted
// unique values it takes.
func (l *Layout) Entities() map[string][]string {
	return l.idx.AggregateEntities(l.sel)
}

// Metadata mirrors Entities over resolved sidecar metadata. It is empty
// until IndexMetadata has run.
func (l *Layout) Metadata() map[string][]string {
	return l.idx.AggregateMetadata(l.sel)
}

// IndexMetadata resolves sidecar JSON metadata for the whole index along the
// BIDS inheritance principle. It is idempotent; concurrent callers block
// until the single resolver run completes. The receiver is returned for
// chaining.
func (l *Layout) IndexMetadata(ctx context.Context) (*Layout, error) {
	l.meta.mu.Lock()
	defer l.meta.mu.Unlock()
	if l.meta.done || l.idx.MetadataIndexed() {
		return l, nil
	}

	start := time.Now()
	sidecars, err := metadata.NewResolver(l.idx, l.logger.Logger).Run(ctx)
	l.metrics.RecordMetadataIndex(sidecars, time.Since(start), err)
	l.logger.LogMetadataIndex(ctx, sidecars, err)
	if err != nil {
		return nil, translateError(err)
	}
	l.meta.done = true
	return l, nil
}

// Parse parses an ad-hoc path against the layout's datasets without adding
// it to the index. The path must lie under a configured dataset root.
func (l *Layout) Parse(p string) (*bidspath.ParsedPath, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, translateError(err)
	}

	// Longest matching root wins so nested derivative paths resolve to the
	// inner dataset.
	best := -1
	datasets := l.idx.Datasets()
	for i := range datasets {
		root := datasets[i].Root
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			if best < 0 || len(root) > len(datasets[best].Root) {
				best = i
			}
		}
	}
	if best < 0 {
		return nil, &NotInRootError{Path: p}
	}

	rel, err := filepath.Rel(datasets[best].Root, abs)
	if err != nil {
		return nil, &NotInRootError{Path: p}
	}
	parsed, err := l.parser.Parse(filepath.ToSlash(rel))
	if err != nil {
		return nil, err
	}
	parsed.DatasetID = best
	return parsed, nil
}

// Save serializes the full underlying index to path. Views delegate to the
// root index; selections are not persisted.
func (l *Layout) Save(path string) error {
	err := persistence.SaveFile(path, func(w *bufio.Writer) error {
		return persistence.Save(w, l.idx, l.parser.Mode(), l.compress)
	})
	return translateError(err)
}
