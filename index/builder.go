package index

import (
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/dataset"
	"github.com/hupe1980/bidsgo/entity"
)

// Builder accumulates parsed paths and produces an immutable Index. It is
// not safe for concurrent use; callers must serialize Add calls on a single
// writer.
type Builder struct {
	datasets []dataset.Dataset
	files    []File
	sidecars []File
}

// NewBuilder starts an index over the given dataset table.
func NewBuilder(datasets []dataset.Dataset) *Builder {
	return &Builder{datasets: datasets}
}

// Add records one parsed path belonging to the dataset with id dsID.
// Paths with a .json extension are metadata carriers and land in the
// sidecar table instead of the query surface.
func (b *Builder) Add(dsID uint32, parsed *bidspath.ParsedPath) {
	f := File{
		DatasetID: dsID,
		Path:      filepath.Join(b.datasets[dsID].Root, filepath.FromSlash(parsed.Rel)),
		Parsed:    parsed,
	}
	if parsed.Extension == ".json" {
		b.sidecars = append(b.sidecars, f)
		return
	}
	b.files = append(b.files, f)
}

// Build sorts the accumulated files by path, assigns ids and materializes
// the entity columns.
func (b *Builder) Build() *Index {
	sort.Slice(b.files, func(i, j int) bool { return b.files[i].Path < b.files[j].Path })
	sort.Slice(b.sidecars, func(i, j int) bool { return b.sidecars[i].Path < b.sidecars[j].Path })

	ix := &Index{
		datasets:  b.datasets,
		files:     b.files,
		sidecars:  b.sidecars,
		columns:   make(map[string]*Column),
		metaCols:  make(map[string]*Column),
		dsBitmaps: make([]*roaring.Bitmap, len(b.datasets)),
	}
	for i := range ix.dsBitmaps {
		ix.dsBitmaps[i] = roaring.New()
	}

	for i := range ix.files {
		f := &ix.files[i]
		f.ID = uint32(i)
		f.idx = ix
		f.Parsed.DatasetID = int(f.DatasetID)
		ix.dsBitmaps[f.DatasetID].Add(f.ID)

		for _, e := range f.Parsed.Entities() {
			ix.column(e.Key).set(f.ID, e.Value)
		}
		if f.Parsed.Datatype != "" {
			ix.column("datatype").set(f.ID, f.Parsed.Datatype)
		}
		if f.Parsed.Suffix != "" {
			ix.column("suffix").set(f.ID, f.Parsed.Suffix)
		}
		if f.Parsed.Extension != "" {
			ix.column("extension").set(f.ID, f.Parsed.Extension)
		}
	}

	for i := range ix.sidecars {
		sc := &ix.sidecars[i]
		sc.ID = uint32(i)
		sc.Parsed.DatasetID = int(sc.DatasetID)
	}

	// Column order is deterministic: dictionary rank first, then custom
	// entities by name.
	entity.SortKeys(ix.colOrder)

	b.files = nil
	b.sidecars = nil
	return ix
}

func (ix *Index) column(name string) *Column {
	c, ok := ix.columns[name]
	if !ok {
		c = newColumn()
		ix.columns[name] = c
		ix.colOrder = append(ix.colOrder, name)
	}
	return c
}

// Restore rebuilds an Index from its persisted parts. Used by the
// persistence codec; files and sidecars must already be in path-sorted
// order.
func Restore(datasets []dataset.Dataset, files, sidecars []File, colOrder []string,
	columns map[string]*Column, metaOrder []string, metaCols map[string]*Column,
	metadataIndexed bool,
) *Index {
	ix := &Index{
		datasets:        datasets,
		files:           files,
		sidecars:        sidecars,
		columns:         columns,
		colOrder:        colOrder,
		metaCols:        metaCols,
		metaOrder:       metaOrder,
		metadataIndexed: metadataIndexed,
		dsBitmaps:       make([]*roaring.Bitmap, len(datasets)),
	}
	if ix.columns == nil {
		ix.columns = make(map[string]*Column)
	}
	if ix.metaCols == nil {
		ix.metaCols = make(map[string]*Column)
	}
	for i := range ix.dsBitmaps {
		ix.dsBitmaps[i] = roaring.New()
	}
	for i := range ix.files {
		f := &ix.files[i]
		f.ID = uint32(i)
		f.idx = ix
		f.Parsed.DatasetID = int(f.DatasetID)
		ix.dsBitmaps[f.DatasetID].Add(f.ID)
	}
	for i := range ix.sidecars {
		sc := &ix.sidecars[i]
		sc.ID = uint32(i)
		sc.Parsed.DatasetID = int(sc.DatasetID)
	}
	return ix
}

// NewRestoredColumn rebuilds a column from persisted entries. Used by the
// persistence codec.
func NewRestoredColumn(ids []uint32, values []string) *Column {
	c := newColumn()
	for i, id := range ids {
		c.set(id, values[i])
	}
	return c
}
