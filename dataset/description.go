// Package dataset models BIDS datasets: their roots, raw/derivative kind,
// labels, and the dataset_description.json metadata record.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/bidsgo/codec"
)

// DescriptionFilename is the dataset self-description file.
const DescriptionFilename = "dataset_description.json"

// GeneratedBy describes one pipeline in a derivative's provenance chain.
type GeneratedBy struct {
	Name        string `json:"Name,omitempty"`
	Version     string `json:"Version,omitempty"`
	Description string `json:"Description,omitempty"`
	CodeURL     string `json:"CodeURL,omitempty"`
	Container   any    `json:"Container,omitempty"`
}

// SourceDataset links a derivative back to the dataset it was computed from.
type SourceDataset struct {
	URI     string `json:"URI,omitempty"`
	DOI     string `json:"DOI,omitempty"`
	Version string `json:"Version,omitempty"`
}

// Description is the parsed dataset_description.json record. Unknown fields
// are ignored on decode.
type Description struct {
	Name                string            `json:"Name,omitempty"`
	BIDSVersion         string            `json:"BIDSVersion,omitempty"`
	HEDVersion          any               `json:"HEDVersion,omitempty"`
	DatasetLinks        map[string]string `json:"DatasetLinks,omitempty"`
	DatasetType         string            `json:"DatasetType,omitempty"`
	License             string            `json:"License,omitempty"`
	Authors             []string          `json:"Authors,omitempty"`
	Acknowledgements    string            `json:"Acknowledgements,omitempty"`
	HowToAcknowledge    string            `json:"HowToAcknowledge,omitempty"`
	Funding             []string          `json:"Funding,omitempty"`
	EthicsApprovals     []string          `json:"EthicsApprovals,omitempty"`
	ReferencesAndLinks  []string          `json:"ReferencesAndLinks,omitempty"`
	DatasetDOI          string            `json:"DatasetDOI,omitempty"`
	GeneratedBy         []GeneratedBy     `json:"GeneratedBy,omitempty"`
	SourceDatasets      []SourceDataset   `json:"SourceDatasets,omitempty"`
	PipelineDescription *GeneratedBy      `json:"PipelineDescription,omitempty"`
}

// Pipelines returns the pipeline names declared in GeneratedBy, falling back
// to the legacy PipelineDescription field for pre-1.4 derivatives.
func (d *Description) Pipelines() []string {
	if d == nil {
		return nil
	}
	var out []string
	for _, g := range d.GeneratedBy {
		if g.Name != "" {
			out = append(out, g.Name)
		}
	}
	if len(out) == 0 && d.PipelineDescription != nil && d.PipelineDescription.Name != "" {
		out = append(out, d.PipelineDescription.Name)
	}
	return out
}

// BadDescriptionError indicates an unreadable or unparseable
// dataset_description.json. It is non-fatal: the dataset is still indexed
// with a nil description and the error is surfaced on demand.
type BadDescriptionError struct {
	Root  string
	cause error
}

func (e *BadDescriptionError) Error() string {
	return fmt.Sprintf("bad dataset description under %q: %v", e.Root, e.cause)
}

func (e *BadDescriptionError) Unwrap() error { return e.cause }

// ReadDescription decodes dataset_description.json in dir. A missing file
// yields (nil, nil); a present but unparseable file yields a
// BadDescriptionError.
func ReadDescription(dir string) (*Description, error) {
	raw, err := os.ReadFile(filepath.Join(dir, DescriptionFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &BadDescriptionError{Root: dir, cause: err}
	}
	var d Description
	if err := codec.Default.Unmarshal(raw, &d); err != nil {
		return nil, &BadDescriptionError{Root: dir, cause: err}
	}
	return &d, nil
}

// HasDescription reports whether dir carries a dataset_description.json.
func HasDescription(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, DescriptionFilename))
	return err == nil && info.Mode().IsRegular()
}
