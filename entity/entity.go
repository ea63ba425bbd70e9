// Package entity defines the static dictionary of BIDS entities.
//
// Every entity has a canonical long name and a short name used inside
// filenames (e.g. subject/sub). The dictionary also fixes a canonical rank
// used when ordering entity aggregates, and records where an entity may
// legally appear: as a key-value token in a filename, as a directory
// segment, or both.
//
// The pseudo-entities datatype, suffix and extension are registered so that
// they resolve as query keys, but they never appear as key-value tokens.
package entity

import (
	"fmt"
	"sort"
)

// Spec describes a single dictionary entry.
type Spec struct {
	Long        string
	Short       string
	Rank        int
	InFilename  bool
	InDirectory bool
}

// specs lists the dictionary in canonical rank order.
var specs = []Spec{
	{Long: "subject", Short: "sub", InFilename: true, InDirectory: true},
	{Long: "session", Short: "ses", InFilename: true, InDirectory: true},
	{Long: "sample", Short: "sample", InFilename: true},
	{Long: "task", Short: "task", InFilename: true},
	{Long: "tracksys", Short: "tracksys", InFilename: true},
	{Long: "acquisition", Short: "acq", InFilename: true},
	{Long: "ceagent", Short: "ce", InFilename: true},
	{Long: "staining", Short: "stain", InFilename: true},
	{Long: "tracer", Short: "trc", InFilename: true},
	{Long: "reconstruction", Short: "rec", InFilename: true},
	{Long: "direction", Short: "dir", InFilename: true},
	{Long: "run", Short: "run", InFilename: true},
	{Long: "proc", Short: "proc", InFilename: true},
	{Long: "modality", Short: "mod", InFilename: true},
	{Long: "echo", Short: "echo", InFilename: true},
	{Long: "flip", Short: "flip", InFilename: true},
	{Long: "inv", Short: "inv", InFilename: true},
	{Long: "mt", Short: "mt", InFilename: true},
	{Long: "part", Short: "part", InFilename: true},
	{Long: "recording", Short: "recording", InFilename: true},
	{Long: "space", Short: "space", InFilename: true},
	{Long: "chunk", Short: "chunk", InFilename: true},
	{Long: "split", Short: "split", InFilename: true},
	{Long: "atlas", Short: "atlas", InFilename: true},
	{Long: "roi", Short: "roi", InFilename: true},
	{Long: "label", Short: "label", InFilename: true},
	{Long: "from", Short: "from", InFilename: true},
	{Long: "to", Short: "to", InFilename: true},
	{Long: "mode", Short: "mode", InFilename: true},
	{Long: "hemisphere", Short: "hemi", InFilename: true},
	{Long: "res", Short: "res", InFilename: true},
	{Long: "density", Short: "den", InFilename: true},
	{Long: "model", Short: "model", InFilename: true},
	{Long: "subset", Short: "subset", InFilename: true},
	{Long: "description", Short: "desc", InFilename: true},
	{Long: "datatype", Short: "datatype"},
	{Long: "suffix", Short: "suffix"},
	{Long: "extension", Short: "extension"},
}

// datatypes holds the directory labels recognized as BIDS datatypes.
var datatypes = map[string]struct{}{
	"anat": {}, "beh": {}, "dwi": {}, "eeg": {}, "fmap": {},
	"func": {}, "ieeg": {}, "meg": {}, "micr": {}, "motion": {},
	"nirs": {}, "perf": {}, "pet": {},
}

var (
	byLong  = make(map[string]*Spec, len(specs))
	byShort = make(map[string]*Spec, len(specs))
)

func init() {
	for i := range specs {
		specs[i].Rank = i
		byLong[specs[i].Long] = &specs[i]
		byShort[specs[i].Short] = &specs[i]
	}
}

// UnknownError is returned when a name is not registered in the dictionary.
type UnknownError struct {
	Name string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown entity: %q", e.Name)
}

// LongToShort maps a canonical long name to its short name.
func LongToShort(name string) (string, error) {
	if s, ok := byLong[name]; ok {
		return s.Short, nil
	}
	return "", &UnknownError{Name: name}
}

// ShortToLong maps a short name to its canonical long name.
func ShortToLong(name string) (string, error) {
	if s, ok := byShort[name]; ok {
		return s.Long, nil
	}
	return "", &UnknownError{Name: name}
}

// Canonical resolves a long or short name to the canonical long name.
func Canonical(name string) (string, bool) {
	if s, ok := byLong[name]; ok {
		return s.Long, true
	}
	if s, ok := byShort[name]; ok {
		return s.Long, true
	}
	return "", false
}

// Lookup returns the dictionary entry for a canonical long name.
func Lookup(long string) (Spec, bool) {
	if s, ok := byLong[long]; ok {
		return *s, true
	}
	return Spec{}, false
}

// IsDatatype reports whether label is a recognized BIDS datatype directory.
func IsDatatype(label string) bool {
	_, ok := datatypes[label]
	return ok
}

// Rank returns the canonical rank of a long name. Names outside the
// dictionary sort after all dictionary entries.
func Rank(long string) int {
	if s, ok := byLong[long]; ok {
		return s.Rank
	}
	return len(specs)
}

// SortKeys orders entity long names by canonical rank, then lexicographically
// for names sharing a rank (i.e. names outside the dictionary).
func SortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ri, rj := Rank(keys[i]), Rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
}

// Validate checks that short and long names form a bijection.
func Validate() error {
	longs := make(map[string]struct{}, len(specs))
	shorts := make(map[string]struct{}, len(specs))
	for i := range specs {
		if _, ok := longs[specs[i].Long]; ok {
			return fmt.Errorf("entity dictionary: duplicate long name %q", specs[i].Long)
		}
		if _, ok := shorts[specs[i].Short]; ok {
			return fmt.Errorf("entity dictionary: duplicate short name %q", specs[i].Short)
		}
		longs[specs[i].Long] = struct{}{}
		shorts[specs[i].Short] = struct{}{}
	}
	return nil
}
