package bidsgo_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bidsgo"
	"github.com/hupe1980/bidsgo/testutil"
)

func fixtureLayout(t *testing.T) (*bidsgo.Layout, string) {
	t.Helper()
	root := testutil.Fixture(t)
	layout, err := bidsgo.New(context.Background(), []string{root}, bidsgo.WithDerivatives(true))
	require.NoError(t, err)
	return layout, testutil.CanonicalRoot(t, root)
}

func TestFilterScopeRawAndSelf(t *testing.T) {
	layout, canon := fixtureLayout(t)

	raw, err := layout.Filter(bidsgo.Filters{Scope: "raw"})
	require.NoError(t, err)
	assert.Equal(t, 3, raw.Len())
	assert.Equal(t, []string{canon}, raw.Roots())

	self, err := layout.Filter(bidsgo.Filters{Scope: "self"})
	require.NoError(t, err)
	assert.Equal(t, raw.Len(), self.Len())
}

func TestFilterScopeDerivatives(t *testing.T) {
	layout, canon := fixtureLayout(t)

	deriv, err := layout.Filter(bidsgo.Filters{Scope: "derivatives"})
	require.NoError(t, err)
	assert.Equal(t, 1, deriv.Len())
	assert.Equal(t, []string{filepath.Join(canon, "derivatives", "fmriprep")}, deriv.Roots())
}

func TestFilterScopeLabel(t *testing.T) {
	layout, _ := fixtureLayout(t)

	labelled, err := layout.Filter(bidsgo.Filters{Scope: "fmriprep"})
	require.NoError(t, err)
	assert.Equal(t, 1, labelled.Len())
}

func TestFilterScopePipeline(t *testing.T) {
	layout, _ := fixtureLayout(t)

	// The derivative declares GeneratedBy[].Name == "fMRIPrep", which is
	// not its label.
	piped, err := layout.Filter(bidsgo.Filters{Scope: "fMRIPrep"})
	require.NoError(t, err)
	assert.Equal(t, 1, piped.Len())
}

func TestFilterScopeUnknown(t *testing.T) {
	layout, _ := fixtureLayout(t)

	_, err := layout.Filter(bidsgo.Filters{Scope: "nonesuch"})
	var unknown *bidsgo.UnknownScopeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "nonesuch", unknown.Value)
}

func TestFilterRootExact(t *testing.T) {
	layout, canon := fixtureLayout(t)

	only, err := layout.Filter(bidsgo.Filters{Root: canon})
	require.NoError(t, err)
	assert.Equal(t, 3, only.Len())
}

func TestFilterRootGlob(t *testing.T) {
	layout, canon := fixtureLayout(t)

	deriv, err := layout.Filter(bidsgo.Filters{Root: "**/fmriprep*"})
	require.NoError(t, err)
	assert.Equal(t, 1, deriv.Len())
	assert.Equal(t, []string{filepath.Join(canon, "derivatives", "fmriprep")}, deriv.Roots())

	none, err := layout.Filter(bidsgo.Filters{Root: "**/unrelated-*"})
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())
}

func TestFilterComposesWithGet(t *testing.T) {
	layout, _ := fixtureLayout(t)

	t1w, err := layout.Get(bidsgo.Query{"suffix": "T1w"})
	require.NoError(t, err)
	deriv, err := t1w.Filter(bidsgo.Filters{Scope: "derivatives"})
	require.NoError(t, err)

	f, err := deriv.One()
	require.NoError(t, err)
	v, ok := f.Parsed.Entity("space")
	require.True(t, ok)
	assert.Equal(t, "MNI", v)
}

func TestFilterRootAndScopeTogether(t *testing.T) {
	layout, canon := fixtureLayout(t)

	got, err := layout.Filter(bidsgo.Filters{Root: canon + "/**", Scope: "derivatives"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}
