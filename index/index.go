// Package index holds the columnar layout index: every parsed path, its
// dataset affiliation, sparse per-entity columns and, once resolved, sparse
// per-key metadata columns. Selections over the index are roaring bitmaps of
// file ids; file ids are assigned in ascending path order so bitmap iteration
// doubles as deterministic path-sorted iteration.
package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/dataset"
)

// File is one indexed path.
type File struct {
	// ID is the file's position in path-sorted order.
	ID uint32

	// DatasetID indexes into the layout's dataset table.
	DatasetID uint32

	// Path is the absolute path of the file.
	Path string

	// Parsed is the structured form of the dataset-relative path.
	Parsed *bidspath.ParsedPath

	idx *Index
}

// Rel returns the dataset-relative path.
func (f *File) Rel() string { return f.Parsed.Rel }

// Metadata returns the file's resolved sidecar metadata. It is nil until
// metadata indexing has run on the owning layout.
func (f *File) Metadata() map[string]string {
	if f.idx == nil || !f.idx.metadataIndexed {
		return nil
	}
	return f.idx.fileMetadata(f.ID)
}

// Index is the master data structure behind every layout view.
type Index struct {
	datasets []dataset.Dataset
	files    []File

	// sidecars holds the *.json metadata carriers. They are discovered and
	// parsed like data files but kept out of the query surface; the
	// metadata resolver walks them along the inheritance chain.
	sidecars []File

	columns  map[string]*Column
	colOrder []string

	metaCols        map[string]*Column
	metaOrder       []string
	metadataIndexed bool

	dsBitmaps []*roaring.Bitmap
}

// Datasets returns the dataset table.
func (ix *Index) Datasets() []dataset.Dataset { return ix.datasets }

// Dataset returns the dataset with the given id.
func (ix *Index) Dataset(id uint32) *dataset.Dataset { return &ix.datasets[id] }

// Len returns the number of indexed files.
func (ix *Index) Len() int { return len(ix.files) }

// File returns the file with the given id.
func (ix *Index) File(id uint32) *File { return &ix.files[id] }

// Sidecars returns the indexed *.json metadata carriers in ascending path
// order.
func (ix *Index) Sidecars() []*File {
	out := make([]*File, len(ix.sidecars))
	for i := range ix.sidecars {
		out[i] = &ix.sidecars[i]
	}
	return out
}

// Full returns a selection covering every file.
func (ix *Index) Full() *roaring.Bitmap {
	bm := roaring.New()
	if n := len(ix.files); n > 0 {
		bm.AddRange(0, uint64(n))
	}
	return bm
}

// AllDatasets returns a bitmap of every dataset id.
func (ix *Index) AllDatasets() *roaring.Bitmap {
	bm := roaring.New()
	if n := len(ix.datasets); n > 0 {
		bm.AddRange(0, uint64(n))
	}
	return bm
}

// DatasetBitmap returns the files belonging to one dataset. The result is
// shared; callers must not mutate it.
func (ix *Index) DatasetBitmap(id uint32) *roaring.Bitmap {
	return ix.dsBitmaps[id]
}

// DatasetsIn re-projects a selection onto the dataset table: the ids of all
// datasets with at least one selected file.
func (ix *Index) DatasetsIn(sel *roaring.Bitmap) *roaring.Bitmap {
	out := roaring.New()
	for id := range ix.datasets {
		if sel.Intersects(ix.dsBitmaps[id]) {
			out.Add(uint32(id))
		}
	}
	return out
}

// EntityColumn returns the column for an entity long name.
func (ix *Index) EntityColumn(name string) (*Column, bool) {
	c, ok := ix.columns[name]
	return c, ok
}

// EntityNames returns the entity column names ordered by dictionary rank,
// then custom entities by name.
func (ix *Index) EntityNames() []string { return ix.colOrder }

// MetadataColumn returns the column for a metadata key.
func (ix *Index) MetadataColumn(name string) (*Column, bool) {
	c, ok := ix.metaCols[name]
	return c, ok
}

// MetadataNames returns the metadata column names in first-seen order.
// Empty until metadata indexing has run.
func (ix *Index) MetadataNames() []string { return ix.metaOrder }

// MetadataIndexed reports whether sidecar metadata has been resolved.
func (ix *Index) MetadataIndexed() bool { return ix.metadataIndexed }

// SetFileMetadata stores the resolved metadata for one file. Calls must be
// serialized by the metadata resolver.
func (ix *Index) SetFileMetadata(id uint32, resolved map[string]string) {
	keys := make([]string, 0, len(resolved))
	for k := range resolved {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		col, ok := ix.metaCols[k]
		if !ok {
			col = newColumn()
			ix.metaCols[k] = col
			ix.metaOrder = append(ix.metaOrder, k)
		}
		col.set(id, resolved[k])
	}
}

// MarkMetadataIndexed finalizes metadata indexing; afterwards metadata keys
// resolve in queries and File.Metadata returns resolved maps.
func (ix *Index) MarkMetadataIndexed() { ix.metadataIndexed = true }

func (ix *Index) fileMetadata(id uint32) map[string]string {
	out := make(map[string]string)
	for _, k := range ix.metaOrder {
		if v, ok := ix.metaCols[k].Get(id); ok {
			out[k] = v
		}
	}
	return out
}

// AggregateEntities returns, for each entity column with at least one value
// inside sel, the sorted unique values present.
func (ix *Index) AggregateEntities(sel *roaring.Bitmap) map[string][]string {
	return aggregate(ix.columns, ix.colOrder, sel)
}

// AggregateMetadata mirrors AggregateEntities over metadata columns. Empty
// until metadata indexing has run.
func (ix *Index) AggregateMetadata(sel *roaring.Bitmap) map[string][]string {
	if !ix.metadataIndexed {
		return map[string][]string{}
	}
	return aggregate(ix.metaCols, ix.metaOrder, sel)
}

func aggregate(cols map[string]*Column, order []string, sel *roaring.Bitmap) map[string][]string {
	out := make(map[string][]string)
	for _, name := range order {
		vals := cols[name].Values(sel)
		if len(vals) > 0 {
			out[name] = vals
		}
	}
	return out
}

// VaryingEntities returns the names of entity columns with more than one
// distinct value inside sel, in column order.
func (ix *Index) VaryingEntities(sel *roaring.Bitmap) []string {
	var out []string
	for _, name := range ix.colOrder {
		if len(ix.columns[name].Values(sel)) > 1 {
			out = append(out, name)
		}
	}
	return out
}
