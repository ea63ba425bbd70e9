package index

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bidsgo/bidspath"
	"github.com/hupe1980/bidsgo/dataset"
)

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	parser := bidspath.NewParser(bidspath.ModeStrict)
	datasets := []dataset.Dataset{
		{Root: "/data/raw", Kind: dataset.KindRaw},
		{Root: "/data/raw/derivatives/fmriprep", Kind: dataset.KindDerivative, Label: "fmriprep"},
	}
	b := NewBuilder(datasets)
	add := func(dsID uint32, rel string) {
		p, err := parser.Parse(rel)
		require.NoError(t, err)
		b.Add(dsID, p)
	}
	add(0, "sub-01/anat/sub-01_T1w.nii.gz")
	add(0, "sub-01/func/sub-01_task-rest_bold.nii.gz")
	add(0, "sub-01/func/sub-01_task-rest_bold.json")
	add(0, "sub-02/anat/sub-02_T1w.nii.gz")
	add(1, "sub-01/anat/sub-01_space-MNI_desc-preproc_T1w.nii.gz")
	return b.Build()
}

func TestBuildAssignsPathSortedIDs(t *testing.T) {
	ix := buildTestIndex(t)

	require.Equal(t, 4, ix.Len())
	var prev string
	for id := 0; id < ix.Len(); id++ {
		f := ix.File(uint32(id))
		assert.Equal(t, uint32(id), f.ID)
		if id > 0 {
			assert.Less(t, prev, f.Path)
		}
		prev = f.Path
	}
}

func TestSidecarsPartitioned(t *testing.T) {
	ix := buildTestIndex(t)

	sidecars := ix.Sidecars()
	require.Len(t, sidecars, 1)
	assert.Equal(t, "sub-01/func/sub-01_task-rest_bold.json", sidecars[0].Rel())

	// Sidecars never appear in the query surface.
	col, ok := ix.EntityColumn("extension")
	require.True(t, ok)
	assert.True(t, col.ValueBitmap(".json").IsEmpty())
}

func TestValueAndPresenceBitmaps(t *testing.T) {
	ix := buildTestIndex(t)

	col, ok := ix.EntityColumn("subject")
	require.True(t, ok)
	assert.Equal(t, uint64(4), col.PresenceBitmap().GetCardinality())
	assert.Equal(t, uint64(3), col.ValueBitmap("01").GetCardinality())
	assert.Equal(t, uint64(1), col.ValueBitmap("02").GetCardinality())
	assert.True(t, col.ValueBitmap("03").IsEmpty())

	task, ok := ix.EntityColumn("task")
	require.True(t, ok)
	assert.Equal(t, uint64(1), task.PresenceBitmap().GetCardinality())
}

func TestDatasetProjection(t *testing.T) {
	ix := buildTestIndex(t)

	full := ix.Full()
	assert.Equal(t, uint64(2), ix.DatasetsIn(full).GetCardinality())

	col, _ := ix.EntityColumn("space")
	onlyDeriv := col.ValueBitmap("MNI")
	ds := ix.DatasetsIn(onlyDeriv)
	assert.Equal(t, uint64(1), ds.GetCardinality())
	assert.True(t, ds.Contains(1))
}

func TestSelectionComposition(t *testing.T) {
	ix := buildTestIndex(t)

	subject, _ := ix.EntityColumn("subject")
	suffix, _ := ix.EntityColumn("suffix")

	a := subject.ValueBitmap("01").Clone()
	a.And(ix.Full())
	b := suffix.ValueBitmap("T1w").Clone()
	b.And(ix.Full())

	composed := roaring.And(a, b)
	assert.Equal(t, uint64(2), composed.GetCardinality())
}

func TestAggregateEntities(t *testing.T) {
	ix := buildTestIndex(t)

	agg := ix.AggregateEntities(ix.Full())
	assert.Equal(t, []string{"01", "02"}, agg["subject"])
	assert.Equal(t, []string{"T1w", "bold"}, agg["suffix"])
	assert.Equal(t, []string{"rest"}, agg["task"])
	assert.NotContains(t, agg, "run")
}

func TestVaryingEntities(t *testing.T) {
	ix := buildTestIndex(t)

	varying := ix.VaryingEntities(ix.Full())
	assert.Contains(t, varying, "subject")
	assert.Contains(t, varying, "suffix")
	assert.NotContains(t, varying, "task")
}

func TestMetadataColumns(t *testing.T) {
	ix := buildTestIndex(t)

	assert.False(t, ix.MetadataIndexed())
	assert.Empty(t, ix.AggregateMetadata(ix.Full()))

	ix.SetFileMetadata(0, map[string]string{"RepetitionTime": "2"})
	ix.SetFileMetadata(1, map[string]string{"RepetitionTime": "2", "TaskName": "rest"})
	ix.MarkMetadataIndexed()

	agg := ix.AggregateMetadata(ix.Full())
	assert.Equal(t, []string{"2"}, agg["RepetitionTime"])
	assert.Equal(t, []string{"rest"}, agg["TaskName"])

	assert.Equal(t, map[string]string{"RepetitionTime": "2", "TaskName": "rest"}, ix.File(1).Metadata())
}
