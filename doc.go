// Package bidsgo indexes and queries neuroimaging datasets laid out under
// the BIDS (Brain Imaging Data Structure) convention.
//
// A Layout is built from one or more dataset roots. Every file is parsed
// into entities (subject, session, task, ...), datatype, suffix and
// extension, and attached to its dataset's provenance (raw vs. derivative,
// label, pipelines). Queries return new Layout views backed by compact
// bitmap selections over a shared immutable index, so views chain freely:
//
//	layout, err := bidsgo.New(ctx, []string{"/data/ds000117"},
//	    bidsgo.WithDerivatives(true))
//	...
//	bold, err := layout.Get(bidsgo.Query{"subject": "01", "suffix": "bold"})
//	raw, err := bold.Filter(bidsgo.Filters{Scope: "raw"})
//
// Sidecar JSON metadata is resolved on demand via IndexMetadata, following
// the BIDS inheritance principle. A built index can be saved to a versioned
// binary cache file and reloaded with Load.
package bidsgo
