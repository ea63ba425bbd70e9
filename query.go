package bidsgo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/bidsgo/entity"
	"github.com/hupe1980/bidsgo/index"
)

// Query maps entity or metadata keys to filter values. Keys are accepted as
// long names, short names, or with a trailing underscore stripped (so
// reserved words like "from" can be written "from_").
//
// Value semantics:
//   - true: entity present, any value
//   - false or nil: entity absent
//   - string: exact match
//   - int: matches any zero-padded decimal form of the number; fails
//     NotUniqueError when the result still contains more than one distinct
//     string form
//   - slice: union of its elements
//
// Multiple keys compose with AND.
type Query map[string]any

// intCheck defers the ambiguity test for integer coercion until the full
// selection is known.
type intCheck struct {
	key        string
	col        *index.Column
	candidates []string
}

// Get filters the view on entity and metadata keys, returning a new view
// over the same index.
func (l *Layout) Get(q Query) (view *Layout, err error) {
	start := time.Now()
	defer func() { l.metrics.RecordQuery(time.Since(start), err) }()

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sel := l.sel.Clone()
	var checks []intCheck
	for _, key := range keys {
		var col *index.Column
		if col, err = l.resolveColumn(key); err != nil {
			return nil, err
		}
		var (
			bm  *roaring.Bitmap
			cks []intCheck
		)
		if bm, cks, err = l.valueSelection(col, key, q[key]); err != nil {
			return nil, err
		}
		checks = append(checks, cks...)
		sel.And(bm)
	}

	for _, c := range checks {
		var forms []string
		for _, v := range c.candidates {
			if c.col != nil && sel.Intersects(c.col.ValueBitmap(v)) {
				forms = append(forms, v)
			}
		}
		if len(forms) > 1 {
			err = &NotUniqueError{Entities: []string{c.key}, Forms: forms}
			return nil, err
		}
	}
	return l.derive(sel), nil
}

// resolveColumn maps a query key onto an index column: dictionary entities
// first, then custom entity columns, then already-indexed metadata keys.
// The column is nil when the key is valid but nothing in the index carries
// it.
func (l *Layout) resolveColumn(key string) (*index.Column, error) {
	k := strings.TrimSuffix(key, "_")
	if canon, ok := entity.Canonical(k); ok {
		col, _ := l.idx.EntityColumn(canon)
		return col, nil
	}
	if col, ok := l.idx.EntityColumn(k); ok {
		return col, nil
	}
	if l.idx.MetadataIndexed() {
		if col, ok := l.idx.MetadataColumn(k); ok {
			return col, nil
		}
	}
	return nil, &UnknownEntityError{Name: key}
}

// valueSelection builds the bitmap a single key/value filter selects.
func (l *Layout) valueSelection(col *index.Column, key string, val any) (*roaring.Bitmap, []intCheck, error) {
	presence := func() *roaring.Bitmap {
		if col == nil {
			return roaring.New()
		}
		return col.PresenceBitmap()
	}
	exact := func(s string) *roaring.Bitmap {
		if col == nil {
			return roaring.New()
		}
		return col.ValueBitmap(s)
	}

	switch v := val.(type) {
	case nil:
		absent := l.idx.Full()
		absent.AndNot(presence())
		return absent, nil, nil
	case bool:
		if v {
			return presence(), nil, nil
		}
		absent := l.idx.Full()
		absent.AndNot(presence())
		return absent, nil, nil
	case string:
		return exact(v), nil, nil
	default:
		if n, ok := asInt(val); ok {
			bm, check := l.intSelection(col, key, n)
			return bm, []intCheck{check}, nil
		}
	}

	elems, ok := asSlice(val)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported query value %v (type %T) for key %q", val, val, key)
	}
	union := roaring.New()
	var checks []intCheck
	for _, elem := range elems {
		switch ev := elem.(type) {
		case string:
			union.Or(exact(ev))
		default:
			n, ok := asInt(elem)
			if !ok {
				return nil, nil, fmt.Errorf("unsupported query value %v (type %T) for key %q", elem, elem, key)
			}
			bm, check := l.intSelection(col, key, n)
			union.Or(bm)
			checks = append(checks, check)
		}
	}
	return union, checks, nil
}

// intSelection matches every stored value whose decimal interpretation is n,
// so run=1 selects run-1, run-01 and run-001 alike.
func (l *Layout) intSelection(col *index.Column, key string, n int64) (*roaring.Bitmap, intCheck) {
	bm := roaring.New()
	check := intCheck{key: key, col: col}
	if col == nil || n < 0 {
		return bm, check
	}
	want := strconv.FormatInt(n, 10)
	for _, v := range col.DistinctValues() {
		if decimalForm(v) == want {
			bm.Or(col.ValueBitmap(v))
			check.candidates = append(check.candidates, v)
		}
	}
	return bm, check
}

// decimalForm strips leading zeros from an all-digit string; other strings
// have no decimal form.
func decimalForm(s string) string {
	if s == "" {
		return ""
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return ""
		}
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}
