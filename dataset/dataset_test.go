package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadDescription(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DescriptionFilename, `{
		"Name": "Example",
		"BIDSVersion": "1.8.0",
		"DatasetType": "derivative",
		"Authors": ["A. Author", "B. Author"],
		"GeneratedBy": [{"Name": "fMRIPrep", "Version": "23.0.1", "CodeURL": "https://example.org"}],
		"SourceDatasets": [{"URI": "bids:raw", "Version": "1.0"}],
		"SomethingUnknown": {"nested": true}
	}`)

	d, err := ReadDescription(dir)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Example", d.Name)
	assert.Equal(t, "1.8.0", d.BIDSVersion)
	assert.Equal(t, "derivative", d.DatasetType)
	assert.Equal(t, []string{"A. Author", "B. Author"}, d.Authors)
	require.Len(t, d.GeneratedBy, 1)
	assert.Equal(t, "fMRIPrep", d.GeneratedBy[0].Name)
	require.Len(t, d.SourceDatasets, 1)
	assert.Equal(t, "bids:raw", d.SourceDatasets[0].URI)
}

func TestReadDescriptionMissing(t *testing.T) {
	d, err := ReadDescription(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestReadDescriptionMalformed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DescriptionFilename, `{not json`)

	d, err := ReadDescription(dir)
	assert.Nil(t, d)
	var bad *BadDescriptionError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, dir, bad.Root)
}

func TestPipelines(t *testing.T) {
	d := &Description{GeneratedBy: []GeneratedBy{{Name: "fMRIPrep"}, {Name: "freesurfer"}}}
	assert.Equal(t, []string{"fMRIPrep", "freesurfer"}, d.Pipelines())

	legacy := &Description{PipelineDescription: &GeneratedBy{Name: "oldpipe"}}
	assert.Equal(t, []string{"oldpipe"}, legacy.Pipelines())

	var nilDesc *Description
	assert.Nil(t, nilDesc.Pipelines())
}

func TestCanonicalRootFileResolvesToParent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "some.txt", "x")

	canon, err := CanonicalRoot(filepath.Join(dir, "some.txt"))
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, canon)
}

func TestCanonicalRootMissing(t *testing.T) {
	_, err := CanonicalRoot(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestDerivativesSpecExplicitOrder(t *testing.T) {
	spec := LabeledDerivatives(map[string]string{
		"zeta":  "/d/zeta",
		"alpha": "/d/alpha",
	})
	got := spec.Explicit()
	require.Len(t, got, 2)
	assert.Equal(t, LabeledPath{Label: "alpha", Path: "/d/alpha"}, got[0])
	assert.Equal(t, LabeledPath{Label: "zeta", Path: "/d/zeta"}, got[1])

	list := DerivativePaths("/d/one", "/d/two")
	got = list.Explicit()
	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].Label)
	assert.Equal(t, "/d/one", got[0].Path)

	assert.Nil(t, AutoDerivatives().Explicit())
	assert.True(t, NoDerivatives().IsNone())
}
