package bidsgo

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/hupe1980/bidsgo/dataset"
)

// Filters selects datasets rather than entities. Root matches the absolute
// canonical dataset root, either literally or as a glob with shell
// semantics (**, *, ?). Scope is one of raw, self (alias of raw),
// derivatives, a derivative label, or a pipeline name; resolution follows
// that order and the first match wins.
type Filters struct {
	Root  string
	Scope string
}

// Filter restricts the view to datasets matching the given filters,
// returning a new view over the same index.
func (l *Layout) Filter(f Filters) (view *Layout, err error) {
	start := time.Now()
	defer func() { l.metrics.RecordQuery(time.Since(start), err) }()

	dsSel := l.datasets.Clone()
	if f.Root != "" {
		keep := roaring.New()
		it := dsSel.Iterator()
		for it.HasNext() {
			id := it.Next()
			root := l.idx.Dataset(id).Root
			var ok bool
			if ok, err = doublestar.Match(f.Root, root); err != nil {
				return nil, err
			}
			if ok || f.Root == root {
				keep.Add(id)
			}
		}
		dsSel = keep
	}
	if f.Scope != "" {
		dsSel, err = l.scopeDatasets(f.Scope, dsSel)
		if err != nil {
			return nil, err
		}
	}

	sel := roaring.New()
	it := dsSel.Iterator()
	for it.HasNext() {
		sel.Or(l.idx.DatasetBitmap(it.Next()))
	}
	sel.And(l.sel)
	return l.derive(sel), nil
}

// scopeDatasets resolves a scope token against the datasets in within.
func (l *Layout) scopeDatasets(scope string, within *roaring.Bitmap) (*roaring.Bitmap, error) {
	keepKind := func(k dataset.Kind) *roaring.Bitmap {
		keep := roaring.New()
		it := within.Iterator()
		for it.HasNext() {
			id := it.Next()
			if l.idx.Dataset(id).Kind == k {
				keep.Add(id)
			}
		}
		return keep
	}

	switch scope {
	case "raw", "self":
		return keepKind(dataset.KindRaw), nil
	case "derivatives":
		return keepKind(dataset.KindDerivative), nil
	}

	byLabel := roaring.New()
	byPipeline := roaring.New()
	it := within.Iterator()
	for it.HasNext() {
		id := it.Next()
		ds := l.idx.Dataset(id)
		if ds.Label == scope {
			byLabel.Add(id)
		}
		for _, p := range ds.Pipelines {
			if p == scope {
				byPipeline.Add(id)
				break
			}
		}
	}
	if !byLabel.IsEmpty() {
		return byLabel, nil
	}
	if !byPipeline.IsEmpty() {
		return byPipeline, nil
	}
	return nil, &UnknownScopeError{Value: scope}
}
