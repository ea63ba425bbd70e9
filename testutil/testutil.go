// Package testutil builds throwaway BIDS dataset trees for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree creates every file of the tree below root, creating parent
// directories as needed. Keys are slash-separated relative paths, values
// the file contents.
func WriteTree(t *testing.T, root string, tree map[string]string) {
	t.Helper()
	for rel, content := range tree {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// Fixture creates the canonical example dataset in a temp directory and
// returns its root: two subjects of raw anatomy/functional data, a bold
// sidecar, and an fmriprep derivative.
func Fixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	WriteTree(t, root, map[string]string{
		"dataset_description.json":                     `{"Name": "Example", "BIDSVersion": "1.8.0"}`,
		"sub-01/anat/sub-01_T1w.nii.gz":                "",
		"sub-01/func/sub-01_task-rest_bold.nii.gz":     "",
		"sub-01/func/sub-01_task-rest_bold.json":       `{"RepetitionTime": 2, "TaskName": "rest"}`,
		"sub-02/anat/sub-02_T1w.nii.gz":                "",
		"derivatives/fmriprep/dataset_description.json": `{"Name": "fMRIPrep - fMRI PREProcessing workflow", "BIDSVersion": "1.8.0", "DatasetType": "derivative", "GeneratedBy": [{"Name": "fMRIPrep", "Version": "23.0.1"}]}`,
		"derivatives/fmriprep/sub-01/anat/sub-01_space-MNI_desc-preproc_T1w.nii.gz": "",
	})
	return root
}

// CanonicalRoot resolves symlinks in root the way the walker does, so test
// expectations survive platforms where TempDir lives behind a symlink.
func CanonicalRoot(t *testing.T, root string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("resolve %s: %v", root, err)
	}
	return resolved
}
