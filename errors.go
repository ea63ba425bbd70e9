package bidsgo

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/dataset"
	"github.com/hupe1980/bidsgo/entity"
	"github.com/hupe1980/bidsgo/persistence"
)

var (
	// ErrNoRoot is returned by Root when the selection references no dataset.
	ErrNoRoot = errors.New("selection references no dataset root")

	// ErrNoResults is returned by One on an empty selection.
	ErrNoResults = errors.New("no results in selection")
)

// UnknownEntityError indicates a query key that is neither a dictionary
// entity, an indexed custom entity, nor an indexed metadata key.
type UnknownEntityError = entity.UnknownError

// InvalidEntityValueError is re-exported from the path parser.
type InvalidEntityValueError = bidspath.InvalidEntityValueError

// InconsistentEntityError is re-exported from the path parser.
type InconsistentEntityError = bidspath.InconsistentEntityError

// DuplicateRootError is re-exported from the dataset walker.
type DuplicateRootError = dataset.DuplicateRootError

// BadDescriptionError is re-exported from the dataset package.
type BadDescriptionError = dataset.BadDescriptionError

// CacheIncompatibleError is re-exported from the persistence codec.
type CacheIncompatibleError = persistence.IncompatibleError

// UnknownScopeError indicates a scope token matching no dataset attribute.
type UnknownScopeError struct {
	Value string
}

func (e *UnknownScopeError) Error() string {
	return fmt.Sprintf("unknown scope: %q", e.Value)
}

// NotUniqueError indicates a selection that was expected to be a singleton.
// Entities names what still varies; for integer query coercion, Forms lists
// the distinct string forms the integer matched.
type NotUniqueError struct {
	Entities []string
	Forms    []string
}

func (e *NotUniqueError) Error() string {
	if len(e.Forms) > 0 {
		return fmt.Sprintf("query matched multiple value forms: %s (use a string query to disambiguate)",
			strings.Join(e.Forms, ", "))
	}
	return fmt.Sprintf("selection is not unique; varying entities: [%s]", strings.Join(e.Entities, ", "))
}

// AmbiguousRootError indicates more than one candidate root for Root or
// Description.
type AmbiguousRootError struct {
	N int
}

func (e *AmbiguousRootError) Error() string {
	return fmt.Sprintf("ambiguous root: %d candidates in selection", e.N)
}

// NotInRootError indicates a path outside every configured dataset root.
type NotInRootError struct {
	Path string
}

func (e *NotInRootError) Error() string {
	return fmt.Sprintf("path %q is not under any dataset root", e.Path)
}

// IOError wraps an underlying filesystem failure during walking or reading.
type IOError struct {
	Path  string
	cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i/o error at %q: %v", e.Path, e.cause)
}

func (e *IOError) Unwrap() error { return e.cause }

// translateError normalizes lower-level failures into the package's typed
// errors. Already-typed errors pass through.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var (
		dup   *DuplicateRootError
		bad   *BadDescriptionError
		cache *CacheIncompatibleError
	)
	if errors.As(err, &dup) || errors.As(err, &bad) || errors.As(err, &cache) {
		return err
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return &IOError{Path: pe.Path, cause: err}
	}
	return err
}
