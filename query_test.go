package bidsgo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bidsgo"
	"github.com/hupe1980/bidsgo/testutil"
)

func paths(l *bidsgo.Layout) []string {
	out := make([]string, 0, l.Len())
	for f := range l.All() {
		out = append(out, f.Path)
	}
	return out
}

func runFixture(t *testing.T) *bidsgo.Layout {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"dataset_description.json":                          `{"Name": "runs"}`,
		"sub-01/func/sub-01_task-a_run-1_bold.nii.gz":       "",
		"sub-01/func/sub-01_task-b_run-01_bold.nii.gz":      "",
		"sub-01/func/sub-01_task-b_run-001_bold.nii.gz":     "",
		"sub-01/func/sub-01_task-b_run-10_bold.nii.gz":      "",
		"sub-01/func/sub-01_task-c_run-Pre1_bold.nii.gz":    "",
		"sub-01/anat/sub-01_from-orig_to-MNI_mode-image_xfm.nii.gz": "",
	})
	layout, err := bidsgo.New(context.Background(), []string{root})
	require.NoError(t, err)
	return layout
}

func TestGetIdempotent(t *testing.T) {
	layout := runFixture(t)

	once, err := layout.Get(bidsgo.Query{"task": "b"})
	require.NoError(t, err)
	twice, err := once.Get(bidsgo.Query{"task": "b"})
	require.NoError(t, err)
	assert.Equal(t, paths(once), paths(twice))
}

func TestGetCommutativeAnd(t *testing.T) {
	layout := runFixture(t)

	chained, err := layout.Get(bidsgo.Query{"task": "b"})
	require.NoError(t, err)
	chained, err = chained.Get(bidsgo.Query{"run": "10"})
	require.NoError(t, err)

	merged, err := layout.Get(bidsgo.Query{"task": "b", "run": "10"})
	require.NoError(t, err)
	assert.Equal(t, paths(merged), paths(chained))

	reversed, err := layout.Get(bidsgo.Query{"run": "10"})
	require.NoError(t, err)
	reversed, err = reversed.Get(bidsgo.Query{"task": "b"})
	require.NoError(t, err)
	assert.Equal(t, paths(merged), paths(reversed))
}

func TestIntegerCoercion(t *testing.T) {
	layout := runFixture(t)

	// Within task a only run-1 exists; coercion is unambiguous.
	one, err := layout.Get(bidsgo.Query{"task": "a", "run": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, one.Len())

	// run-10 matches the integer 10 but never the integer 1.
	ten, err := layout.Get(bidsgo.Query{"run": 10})
	require.NoError(t, err)
	assert.Equal(t, 1, ten.Len())

	// run-Pre1 has no decimal form.
	pre, err := layout.Get(bidsgo.Query{"task": "c", "run": 1})
	require.NoError(t, err)
	assert.Equal(t, 0, pre.Len())
}

func TestIntegerCoercionAmbiguous(t *testing.T) {
	layout := runFixture(t)

	// task b holds both run-01 and run-001.
	_, err := layout.Get(bidsgo.Query{"task": "b", "run": 1})
	var notUnique *bidsgo.NotUniqueError
	require.True(t, errors.As(err, &notUnique))
	assert.ElementsMatch(t, []string{"01", "001"}, notUnique.Forms)
}

func TestTrailingUnderscoreKey(t *testing.T) {
	layout := runFixture(t)

	a, err := layout.Get(bidsgo.Query{"from_": "orig"})
	require.NoError(t, err)
	b, err := layout.Get(bidsgo.Query{"from": "orig"})
	require.NoError(t, err)
	require.Equal(t, 1, a.Len())
	assert.Equal(t, paths(b), paths(a))
}

func TestPresenceAndAbsence(t *testing.T) {
	layout := runFixture(t)

	withRun, err := layout.Get(bidsgo.Query{"run": true})
	require.NoError(t, err)
	assert.Equal(t, 5, withRun.Len())

	withoutRun, err := layout.Get(bidsgo.Query{"run": false})
	require.NoError(t, err)
	assert.Equal(t, 1, withoutRun.Len())

	alsoWithout, err := layout.Get(bidsgo.Query{"run": nil})
	require.NoError(t, err)
	assert.Equal(t, paths(withoutRun), paths(alsoWithout))

	assert.Equal(t, layout.Len(), withRun.Len()+withoutRun.Len())
}

func TestValueUnion(t *testing.T) {
	layout := runFixture(t)

	union, err := layout.Get(bidsgo.Query{"task": []string{"a", "c"}})
	require.NoError(t, err)
	assert.Equal(t, 2, union.Len())
}

func TestUnknownKey(t *testing.T) {
	layout := runFixture(t)

	_, err := layout.Get(bidsgo.Query{"frobnicate": "x"})
	var unknown *bidsgo.UnknownEntityError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "frobnicate", unknown.Name)
}

func TestMetadataKeyAfterIndexing(t *testing.T) {
	root := testutil.Fixture(t)
	layout, err := bidsgo.New(context.Background(), []string{root})
	require.NoError(t, err)

	// Metadata keys resolve only once indexed.
	_, err = layout.Get(bidsgo.Query{"TaskName": "rest"})
	var unknown *bidsgo.UnknownEntityError
	require.True(t, errors.As(err, &unknown))

	layout, err = layout.IndexMetadata(context.Background())
	require.NoError(t, err)

	rest, err := layout.Get(bidsgo.Query{"TaskName": "rest"})
	require.NoError(t, err)
	require.Equal(t, 1, rest.Len())
	f, err := rest.One()
	require.NoError(t, err)
	assert.Equal(t, "sub-01/func/sub-01_task-rest_bold.nii.gz", f.Rel())
}

func TestEmptySelection(t *testing.T) {
	layout := runFixture(t)

	empty, err := layout.Get(bidsgo.Query{"subject": "99"})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Entities())
	assert.Empty(t, paths(empty))

	_, err = empty.One()
	require.ErrorIs(t, err, bidsgo.ErrNoResults)
}

func TestOneNotUniqueNamesVaryingEntities(t *testing.T) {
	layout := runFixture(t)

	many, err := layout.Get(bidsgo.Query{"task": "b"})
	require.NoError(t, err)

	_, err = many.One()
	var notUnique *bidsgo.NotUniqueError
	require.True(t, errors.As(err, &notUnique))
	assert.Contains(t, notUnique.Entities, "run")
	assert.NotContains(t, notUnique.Entities, "task")
}

func TestPermissiveCustomEntityQuery(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"dataset_description.json":                    `{"Name": "perm"}`,
		"sub-01/anat/sub-01_flavor-sweet_T1w.nii.gz":  "",
		"sub-01/anat/sub-01_flavor-bitter_T1w.nii.gz": "",
	})
	layout, err := bidsgo.New(context.Background(), []string{root}, bidsgo.WithPermissiveParsing())
	require.NoError(t, err)

	sweet, err := layout.Get(bidsgo.Query{"flavor": "sweet"})
	require.NoError(t, err)
	assert.Equal(t, 1, sweet.Len())
	assert.Equal(t, []string{"bitter", "sweet"}, layout.Entities()["flavor"])
}
