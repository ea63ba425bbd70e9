package dataset

import (
	"fmt"
	"os"
	"path/filepath"
)

// Kind classifies a dataset as raw acquisition data or pipeline output.
type Kind uint8

const (
	// KindRaw marks an unprocessed dataset.
	KindRaw Kind = iota
	// KindDerivative marks a dataset produced by processing a raw one.
	KindDerivative
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k == KindDerivative {
		return "derivative"
	}
	return "raw"
}

// Dataset is one indexed dataset root.
type Dataset struct {
	// Root is the absolute, symlink-resolved dataset root.
	Root string

	// Kind distinguishes raw datasets from derivatives.
	Kind Kind

	// Label is the user-supplied tag for derivative datasets; empty when
	// the derivative was given as a bare path.
	Label string

	// Description is the parsed dataset_description.json, nil when absent
	// or unparseable.
	Description *Description

	// DescriptionErr records a BadDescriptionError for a present but
	// unparseable description file. It never aborts indexing.
	DescriptionErr error

	// Pipelines lists the pipeline names declared by the description's
	// GeneratedBy records.
	Pipelines []string
}

// DuplicateRootError indicates two configured roots canonicalizing to the
// same directory.
type DuplicateRootError struct {
	Path string
}

func (e *DuplicateRootError) Error() string {
	return fmt.Sprintf("duplicate dataset root %q", e.Path)
}

// CanonicalRoot resolves a root specification to an absolute, symlink-free
// directory path. A root given as a file resolves to its parent directory.
func CanonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		resolved = filepath.Dir(resolved)
	}
	return resolved, nil
}

// New builds a Dataset at the given canonical root, reading its description.
func New(root string, kind Kind, label string) Dataset {
	desc, err := ReadDescription(root)
	return Dataset{
		Root:           root,
		Kind:           kind,
		Label:          label,
		Description:    desc,
		DescriptionErr: err,
		Pipelines:      desc.Pipelines(),
	}
}
