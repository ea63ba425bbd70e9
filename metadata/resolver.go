package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/codec"
	"github.com/hupe1980/bidsgo/index"
)

// ReadError indicates a sidecar that could not be decoded. Sidecar errors
// downgrade to a log line; they never abort indexing.
type ReadError struct {
	Path  string
	cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("error parsing %s: %v", e.Path, e.cause)
}

func (e *ReadError) Unwrap() error { return e.cause }

// sidecar is one decoded *.json file eligible for inheritance.
type sidecar struct {
	file     *index.File
	entities []bidspath.Entity
	values   map[string]string
}

// Resolver computes per-file metadata by walking each file's directory chain
// from the dataset root downward, merging applicable sidecars with shallow
// key-level override.
type Resolver struct {
	idx *index.Index
	log *slog.Logger
}

// NewResolver returns a resolver over the given index.
func NewResolver(idx *index.Index, log *slog.Logger) *Resolver {
	return &Resolver{idx: idx, log: log}
}

// Run resolves sidecar metadata for every indexed file and populates the
// index's metadata columns, returning the number of sidecars read. It is a
// no-op when metadata is already indexed; the owning layout serializes
// concurrent callers.
func (r *Resolver) Run(ctx context.Context) (int, error) {
	if r.idx.MetadataIndexed() {
		return 0, nil
	}

	sidecars, err := r.readSidecars(ctx)
	if err != nil {
		return 0, err
	}

	// dataset id -> directory -> sidecars, each list pre-sorted so that a
	// later entry always overrides an earlier one: fewer entities first,
	// then lexicographic filename.
	byDir := make(map[uint32]map[string][]*sidecar)
	for _, sc := range sidecars {
		dirs, ok := byDir[sc.file.DatasetID]
		if !ok {
			dirs = make(map[string][]*sidecar)
			byDir[sc.file.DatasetID] = dirs
		}
		dir := relDir(sc.file.Rel())
		dirs[dir] = append(dirs[dir], sc)
	}
	for _, dirs := range byDir {
		for _, list := range dirs {
			sort.Slice(list, func(i, j int) bool {
				if li, lj := len(list[i].entities), len(list[j].entities); li != lj {
					return li < lj
				}
				return list[i].file.Rel() < list[j].file.Rel()
			})
		}
	}

	resolved := make([]map[string]string, r.idx.Len())
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for id := 0; id < r.idx.Len(); id++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			resolved[id] = r.resolveFile(r.idx.File(uint32(id)), byDir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for id, m := range resolved {
		if len(m) > 0 {
			r.idx.SetFileMetadata(uint32(id), m)
		}
	}
	r.idx.MarkMetadataIndexed()
	return len(sidecars), nil
}

// readSidecars decodes every indexed *.json sidecar. Unreadable or
// non-object sidecars are skipped.
func (r *Resolver) readSidecars(ctx context.Context) ([]*sidecar, error) {
	files := r.idx.Sidecars()

	out := make([]*sidecar, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			values, err := readSidecarValues(f.Path)
			if err != nil {
				r.log.Warn("skipping sidecar", "path", f.Path, "error", err)
				return nil
			}
			out[i] = &sidecar{file: f, entities: f.Parsed.Entities(), values: values}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := out[:0]
	for _, sc := range out {
		if sc != nil {
			kept = append(kept, sc)
		}
	}
	return kept, nil
}

func readSidecarValues(p string) (map[string]string, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, &ReadError{Path: p, cause: err}
	}
	var obj map[string]any
	if err := codec.Default.Unmarshal(raw, &obj); err != nil {
		return nil, &ReadError{Path: p, cause: err}
	}
	return Canonicalize(obj), nil
}

// resolveFile merges all sidecars applicable to f, walking from the dataset
// root down to f's directory. Deeper directories override shallower ones.
func (r *Resolver) resolveFile(f *index.File, byDir map[uint32]map[string][]*sidecar) map[string]string {
	dirs, ok := byDir[f.DatasetID]
	if !ok {
		return nil
	}

	target := f.Parsed.FullEntities()
	var resolved map[string]string
	for _, dir := range dirChain(relDir(f.Rel())) {
		for _, sc := range dirs[dir] {
			if !applies(sc, f, target) {
				continue
			}
			if resolved == nil {
				resolved = make(map[string]string, len(sc.values))
			}
			for k, v := range sc.values {
				resolved[k] = v
			}
		}
	}
	return resolved
}

// applies implements the inheritance gate: the sidecar's entities must be a
// subset of the target's, its suffix must match, and its datatype must be
// absent or equal.
func applies(sc *sidecar, f *index.File, target map[string]string) bool {
	if sc.file.Parsed.Suffix != f.Parsed.Suffix {
		return false
	}
	if dt := sc.file.Parsed.Datatype; dt != "" && dt != f.Parsed.Datatype {
		return false
	}
	for _, e := range sc.entities {
		if target[e.Key] != e.Value {
			return false
		}
	}
	return true
}

// relDir returns the slash-separated directory of a relative path, "" for
// files at the dataset root.
func relDir(rel string) string {
	d := path.Dir(rel)
	if d == "." {
		return ""
	}
	return d
}

// dirChain lists the directories from the dataset root down to dir,
// inclusive: "" for "a/b" yields ["", "a", "a/b"].
func dirChain(dir string) []string {
	chain := []string{""}
	if dir == "" {
		return chain
	}
	for i := 0; i <= len(dir); i++ {
		if i == len(dir) || dir[i] == '/' {
			chain = append(chain, dir[:i])
		}
	}
	return chain
}
