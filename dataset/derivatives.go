package dataset

import "sort"

// derivativesKind tags the normalized shape of the derivatives argument.
type derivativesKind uint8

const (
	derivativesNone derivativesKind = iota
	derivativesAuto
	derivativesList
	derivativesLabeled
)

// DerivativesSpec is the normalized form of the polymorphic derivatives
// configuration: absent, auto-discover, an explicit path list, or a
// label-to-path mapping. Construct it with one of NoDerivatives,
// AutoDerivatives, DerivativePaths or LabeledDerivatives.
type DerivativesSpec struct {
	kind    derivativesKind
	paths   []string
	labeled map[string]string
}

// NoDerivatives indexes raw roots only. This is the zero value.
func NoDerivatives() DerivativesSpec {
	return DerivativesSpec{kind: derivativesNone}
}

// AutoDerivatives discovers derivatives/*/ subdirectories of each raw root
// that carry a dataset_description.json, labelling each by its basename.
func AutoDerivatives() DerivativesSpec {
	return DerivativesSpec{kind: derivativesAuto}
}

// DerivativePaths loads each path as an unlabelled derivative dataset.
func DerivativePaths(paths ...string) DerivativesSpec {
	return DerivativesSpec{kind: derivativesList, paths: paths}
}

// LabeledDerivatives loads each mapped path as a derivative dataset tagged
// with its key.
func LabeledDerivatives(m map[string]string) DerivativesSpec {
	return DerivativesSpec{kind: derivativesLabeled, labeled: m}
}

// IsAuto reports whether derivatives are auto-discovered.
func (s DerivativesSpec) IsAuto() bool { return s.kind == derivativesAuto }

// IsNone reports whether derivatives are disabled.
func (s DerivativesSpec) IsNone() bool { return s.kind == derivativesNone }

// Explicit returns the configured derivative roots as (label, path) pairs in
// deterministic order. Auto and none specs have no explicit roots.
func (s DerivativesSpec) Explicit() []LabeledPath {
	switch s.kind {
	case derivativesList:
		out := make([]LabeledPath, 0, len(s.paths))
		for _, p := range s.paths {
			out = append(out, LabeledPath{Path: p})
		}
		return out
	case derivativesLabeled:
		labels := make([]string, 0, len(s.labeled))
		for l := range s.labeled {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		out := make([]LabeledPath, 0, len(labels))
		for _, l := range labels {
			out = append(out, LabeledPath{Label: l, Path: s.labeled[l]})
		}
		return out
	default:
		return nil
	}
}

// LabeledPath pairs a derivative root with its optional label.
type LabeledPath struct {
	Label string
	Path  string
}
