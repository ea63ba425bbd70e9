package index

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Column is a sparse string column over file ids. A missing entry means the
// entity is absent for that file. Columns are immutable once the index they
// belong to becomes queryable; the inverted form is built lazily on first
// value lookup.
type Column struct {
	values map[uint32]string

	once     sync.Once
	inverted map[string]*roaring.Bitmap
	presence *roaring.Bitmap
}

func newColumn() *Column {
	return &Column{values: make(map[uint32]string)}
}

func (c *Column) set(id uint32, value string) {
	c.values[id] = value
}

// Get returns the value for a file id.
func (c *Column) Get(id uint32) (string, bool) {
	v, ok := c.values[id]
	return v, ok
}

// Len returns the number of files carrying a value.
func (c *Column) Len() int { return len(c.values) }

func (c *Column) buildInverted() {
	c.once.Do(func() {
		c.inverted = make(map[string]*roaring.Bitmap)
		c.presence = roaring.New()
		for id, v := range c.values {
			bm, ok := c.inverted[v]
			if !ok {
				bm = roaring.New()
				c.inverted[v] = bm
			}
			bm.Add(id)
			c.presence.Add(id)
		}
	})
}

// ValueBitmap returns the set of file ids holding exactly value. The result
// is shared; callers must not mutate it.
func (c *Column) ValueBitmap(value string) *roaring.Bitmap {
	c.buildInverted()
	if bm, ok := c.inverted[value]; ok {
		return bm
	}
	return emptyBitmap
}

// PresenceBitmap returns the set of file ids where the column has any value.
// The result is shared; callers must not mutate it.
func (c *Column) PresenceBitmap() *roaring.Bitmap {
	c.buildInverted()
	return c.presence
}

// DistinctValues returns every distinct value in the column, sorted.
func (c *Column) DistinctValues() []string {
	c.buildInverted()
	out := make([]string, 0, len(c.inverted))
	for v := range c.inverted {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Values returns the distinct values present within sel, sorted.
func (c *Column) Values(sel *roaring.Bitmap) []string {
	seen := make(map[string]struct{})
	for id, v := range c.values {
		if sel.Contains(id) {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Entries returns the (id, value) pairs in ascending id order.
func (c *Column) Entries() ([]uint32, []string) {
	ids := make([]uint32, 0, len(c.values))
	for id := range c.values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	vals := make([]string, len(ids))
	for i, id := range ids {
		vals[i] = c.values[id]
	}
	return ids, vals
}

var emptyBitmap = roaring.New()
