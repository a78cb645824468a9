package vecdb_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxdb/vecdb"
)

func Test_Compact_Reclaims_Deleted_Slots(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 2)

	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		require.NoError(t, db.Put(key, []float32{float32(i), float32(i)}, nil))
	}

	for i := 0; i < 4; i++ {
		key := string(rune('a' + i))
		require.NoError(t, db.Delete(key))
	}

	require.NoError(t, db.Compact())

	stats, err := db.Stats()
	require.NoError(t, err)

	assert.Equal(t, 6, stats.TotalVectors)
	assert.Equal(t, 6, stats.ActiveVectors)
	assert.Equal(t, 0, stats.DeletedVectors)
	assert.Equal(t, 0, stats.FreeListSize)
	assert.Equal(t, 6, stats.IndexSize)
}

func Test_Compact_Preserves_Metadata_And_Vectors(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 2)

	require.NoError(t, db.Put("keep", []float32{1, 2}, map[string]string{"tag": "keep"}))
	require.NoError(t, db.Put("drop", []float32{3, 4}, map[string]string{"tag": "drop"}))
	require.NoError(t, db.Delete("drop"))

	require.NoError(t, db.Compact())

	got, err := db.Get("keep")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tag":"keep"}`, string(got))

	results, err := db.Search([]float32{1, 2}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep", results[0].Key)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func Test_Compact_Is_Idempotent(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 2)

	require.NoError(t, db.Put("a", []float32{1, 1}, nil))
	require.NoError(t, db.Put("b", []float32{2, 2}, nil))
	require.NoError(t, db.Delete("a"))

	require.NoError(t, db.Compact())

	before, err := db.Stats()
	require.NoError(t, err)

	require.NoError(t, db.Compact())

	after, err := db.Stats()
	require.NoError(t, err)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("stats changed on idempotent compact (-before +after):\n%s", diff)
	}
}

func Test_Compact_Then_Reopen_Preserves_State(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	db, err := vecdb.Open(dir, 2)
	require.NoError(t, err)

	require.NoError(t, db.Put("a", []float32{1, 1}, nil))
	require.NoError(t, db.Put("b", []float32{2, 2}, nil))
	require.NoError(t, db.Delete("a"))
	require.NoError(t, db.Compact())
	require.NoError(t, db.Close())

	db2, err := vecdb.Open(dir, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })

	stats, err := db2.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)
	assert.Equal(t, 0, stats.DeletedVectors)
}

func Test_Auto_Compact_Fires_After_Threshold_Crossed(t *testing.T) {
	t.Parallel()

	opts := vecdb.Options{
		Dimension:             2,
		CompactThresholdRatio: 0.1,
		CompactThresholdCount: 2,
		EnableAutoCompact:     true,
	}

	db, err := vecdb.OpenWithOptions(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		require.NoError(t, db.Put(key, []float32{float32(i), float32(i)}, nil))
	}

	for i := 0; i < 4; i++ {
		key := string(rune('a' + i))
		require.NoError(t, db.Delete(key))
	}

	// One more put crosses both thresholds and triggers a background
	// compaction; poll briefly since it runs asynchronously.
	require.NoError(t, db.Put("trigger", []float32{99, 99}, nil))

	require.Eventually(t, func() bool {
		stats, err := db.Stats()

		return err == nil && stats.DeletedVectors == 0
	}, 2*time.Second, 10*time.Millisecond)
}
