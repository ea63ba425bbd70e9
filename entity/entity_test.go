package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasMapping(t *testing.T) {
	tests := []struct {
		long  string
		short string
	}{
		{"subject", "sub"},
		{"session", "ses"},
		{"acquisition", "acq"},
		{"ceagent", "ce"},
		{"reconstruction", "rec"},
		{"direction", "dir"},
		{"run", "run"},
		{"hemisphere", "hemi"},
		{"density", "den"},
		{"description", "desc"},
		{"from", "from"},
	}
	for _, tt := range tests {
		t.Run(tt.long, func(t *testing.T) {
			short, err := LongToShort(tt.long)
			require.NoError(t, err)
			assert.Equal(t, tt.short, short)

			long, err := ShortToLong(tt.short)
			require.NoError(t, err)
			assert.Equal(t, tt.long, long)
		})
	}
}

func TestUnknownEntity(t *testing.T) {
	_, err := LongToShort("foobar")
	var unknown *UnknownError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "foobar", unknown.Name)

	_, err = ShortToLong("foobar")
	require.Error(t, err)
}

func TestCanonical(t *testing.T) {
	canon, ok := Canonical("sub")
	require.True(t, ok)
	assert.Equal(t, "subject", canon)

	canon, ok = Canonical("subject")
	require.True(t, ok)
	assert.Equal(t, "subject", canon)

	_, ok = Canonical("nope")
	assert.False(t, ok)
}

func TestValidateBijection(t *testing.T) {
	require.NoError(t, Validate())
}

func TestSortKeys(t *testing.T) {
	keys := []string{"run", "custom", "subject", "task", "another"}
	SortKeys(keys)
	assert.Equal(t, []string{"subject", "task", "run", "another", "custom"}, keys)
}

func TestIsDatatype(t *testing.T) {
	for _, dt := range []string{"anat", "func", "dwi", "fmap", "perf", "meg", "eeg", "ieeg", "beh", "pet", "micr", "motion", "nirs"} {
		assert.True(t, IsDatatype(dt), dt)
	}
	assert.False(t, IsDatatype("derivatives"))
	assert.False(t, IsDatatype("sub-01"))
}

func TestDirectoryPlacement(t *testing.T) {
	sub, ok := Lookup("subject")
	require.True(t, ok)
	assert.True(t, sub.InDirectory)

	task, ok := Lookup("task")
	require.True(t, ok)
	assert.False(t, task.InDirectory)
}
