// Package walker enumerates dataset roots: it discovers datasets (raw roots
// plus derivatives per the configured policy) and streams their files to the
// indexing callback over a bounded worker pool.
package walker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/hupe1980/bidsgo/dataset"
)

// DerivativesDirname is the conventional subdirectory for pipeline outputs.
const DerivativesDirname = "derivatives"

// Discover resolves the configured roots into the dataset table, without
// touching any files beyond dataset_description.json probes.
func Discover(roots []string, spec dataset.DerivativesSpec) ([]dataset.Dataset, error) {
	seen := make(map[string]struct{})
	var out []dataset.Dataset

	add := func(root string, kind dataset.Kind, label string) error {
		canon, err := dataset.CanonicalRoot(root)
		if err != nil {
			return err
		}
		if _, dup := seen[canon]; dup {
			return &dataset.DuplicateRootError{Path: canon}
		}
		seen[canon] = struct{}{}
		out = append(out, dataset.New(canon, kind, label))
		return nil
	}

	for _, root := range roots {
		if err := add(root, dataset.KindRaw, ""); err != nil {
			return nil, err
		}
	}

	if spec.IsAuto() {
		for _, ds := range out {
			if ds.Kind != dataset.KindRaw {
				continue
			}
			derivDir := filepath.Join(ds.Root, DerivativesDirname)
			entries, err := os.ReadDir(derivDir)
			if err != nil {
				continue
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				if e.IsDir() && dataset.HasDescription(filepath.Join(derivDir, e.Name())) {
					names = append(names, e.Name())
				}
			}
			sort.Strings(names)
			for _, name := range names {
				if err := add(filepath.Join(derivDir, name), dataset.KindDerivative, name); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, lp := range spec.Explicit() {
		if err := add(lp.Path, dataset.KindDerivative, lp.Label); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Handler receives one discovered file. It is called concurrently from the
// worker pool.
type Handler func(dsID uint32, rel string)

// Walk enumerates every dataset's files breadth-first on a bounded pool.
// Directory read failures below a dataset root downgrade to a log line;
// failure to read the root itself, or context cancellation, aborts the walk.
func Walk(ctx context.Context, datasets []dataset.Dataset, log *slog.Logger, handler Handler) error {
	workers := min(max(runtime.NumCPU()*2, 4), 32)

	for dsID := range datasets {
		ds := &datasets[dsID]
		if err := walkDataset(ctx, uint32(dsID), ds, datasets, workers, log, handler); err != nil {
			return err
		}
	}
	return nil
}

func walkDataset(ctx context.Context, dsID uint32, ds *dataset.Dataset, all []dataset.Dataset,
	workers int, log *slog.Logger, handler Handler,
) error {
	// Roots of other datasets nested below this one are enumerated by their
	// own walk only.
	excluded := make(map[string]struct{})
	for i := range all {
		if all[i].Root != ds.Root && strings.HasPrefix(all[i].Root, ds.Root+string(filepath.Separator)) {
			excluded[all[i].Root] = struct{}{}
		}
	}

	currentLevel := []string{ds.Root}
	for len(currentLevel) > 0 {
		var (
			nextLevel []string
			mu        sync.Mutex
		)
		levelPool := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()

		for _, dir := range currentLevel {
			levelPool.Go(func(taskCtx context.Context) error {
				if err := taskCtx.Err(); err != nil {
					return err
				}
				entries, err := os.ReadDir(dir)
				if err != nil {
					if dir == ds.Root {
						return err
					}
					log.Warn("skipping unreadable directory", "path", dir, "error", err)
					return nil
				}
				var subdirs []string
				for _, entry := range entries {
					child := filepath.Join(dir, entry.Name())
					if !entry.IsDir() {
						// The root's own description is dataset-level
						// provenance, not a data file.
						if dir == ds.Root && entry.Name() == dataset.DescriptionFilename {
							continue
						}
						rel, err := filepath.Rel(ds.Root, child)
						if err != nil {
							log.Warn("skipping file outside root", "path", child, "error", err)
							continue
						}
						handler(dsID, filepath.ToSlash(rel))
						continue
					}
					if _, skip := excluded[child]; skip {
						continue
					}
					// A directory carrying its own description is a nested
					// dataset boundary; its files belong to the inner
					// dataset only.
					if dataset.HasDescription(child) {
						continue
					}
					subdirs = append(subdirs, child)
				}
				if len(subdirs) > 0 {
					mu.Lock()
					nextLevel = append(nextLevel, subdirs...)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := levelPool.Wait(); err != nil {
			return err
		}
		currentLevel = nextLevel
	}
	return nil
}
