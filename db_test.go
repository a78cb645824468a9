package vecdb_test

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxdb/vecdb"
)

func openTestDB(t *testing.T, dimension uint32) *vecdb.DB {
	t.Helper()

	db, err := vecdb.Open(t.TempDir(), dimension)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func Test_Put_Then_Get_Returns_Stored_Metadata(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 4)

	require.NoError(t, db.Put("vec1", []float32{1, 0, 0, 0}, map[string]string{"name": "v1"}))

	got, err := db.Get("vec1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"v1"}`, string(got))
}

func Test_Put_Rejects_Unmarshalable_Metadata(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 4)

	err := db.Put("vec1", []float32{1, 0, 0, 0}, map[string]any{"fn": func() {}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, vecdb.ErrSerialization))
}

func Test_Get_Unknown_Key_Returns_NotFound(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 4)

	_, err := db.Get("nope")
	assert.ErrorIs(t, err, vecdb.ErrNotFound)
}

func Test_Delete_Then_Get_Returns_NotFound(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 4)

	require.NoError(t, db.Put("vec1", []float32{1, 0, 0, 0}, nil))
	require.NoError(t, db.Delete("vec1"))

	_, err := db.Get("vec1")
	assert.ErrorIs(t, err, vecdb.ErrNotFound)
}

func Test_Delete_Is_Idempotent(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 4)

	require.NoError(t, db.Put("vec1", []float32{1, 0, 0, 0}, nil))
	require.NoError(t, db.Delete("vec1"))
	require.NoError(t, db.Delete("vec1"))
}

func Test_Delete_Unknown_Key_Returns_NotFound(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 4)

	err := db.Delete("nope")
	assert.ErrorIs(t, err, vecdb.ErrNotFound)
}

func Test_Put_Rejects_Wrong_Dimension(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 4)

	err := db.Put("k", []float32{1, 2}, nil)
	assert.ErrorIs(t, err, vecdb.ErrDimensionMismatch)
}

func Test_Put_Rejects_NonFinite_Component(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 2)

	err := db.Put("k", []float32{1, float32(math.NaN())}, nil)
	assert.ErrorIs(t, err, vecdb.ErrInvalidVector)
}

func Test_Scenario_Basic_Put_Get_Delete(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 4)

	require.NoError(t, db.Put("vec1", []float32{1, 0, 0, 0}, map[string]string{"name": "v1"}))
	require.NoError(t, db.Put("vec2", []float32{0, 1, 0, 0}, map[string]string{"name": "v2"}))

	results, err := db.Search([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "vec1", results[0].Key)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
	assert.Equal(t, "vec2", results[1].Key)
	assert.InDelta(t, math.Sqrt2, results[1].Distance, 1e-6)

	require.NoError(t, db.Delete("vec1"))

	_, err = db.Get("vec1")
	assert.ErrorIs(t, err, vecdb.ErrNotFound)

	results, err = db.Search([]float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vec2", results[0].Key)
}

func Test_Put_Overwriting_Key_Frees_Old_Slot(t *testing.T) {
	t.Parallel()

	db := openTestDB(t, 2)

	require.NoError(t, db.Put("k", []float32{1, 1}, nil))
	require.NoError(t, db.Put("k", []float32{2, 2}, nil))

	stats, err := db.Stats()
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalVectors)
	assert.Equal(t, 1, stats.ActiveVectors)
	assert.Equal(t, 1, stats.DeletedVectors)
	assert.Equal(t, 1, stats.FreeListSize)

	got, err := db.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "null", string(got))
}

func Test_Reopen_After_Close_Preserves_State(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	db, err := vecdb.Open(dir, 2)
	require.NoError(t, err)

	require.NoError(t, db.Put("a", []float32{1, 2}, map[string]int{"v": 1}))
	require.NoError(t, db.Put("b", []float32{3, 4}, map[string]int{"v": 2}))
	require.NoError(t, db.Delete("a"))
	require.NoError(t, db.Close())

	db2, err := vecdb.Open(dir, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })

	_, err = db2.Get("a")
	assert.ErrorIs(t, err, vecdb.ErrNotFound)

	got, err := db2.Get("b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))

	stats, err := db2.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVectors)
	assert.Equal(t, 1, stats.ActiveVectors)
}

func Test_Open_Twice_On_Same_Directory_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	db, err := vecdb.Open(dir, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = vecdb.Open(dir, 2)
	assert.Error(t, err)
}

func Test_Closed_DB_Rejects_Further_Operations(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	db, err := vecdb.Open(dir, 2)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Put("k", []float32{1, 2}, nil), vecdb.ErrClosed)
	_, err = db.Get("k")
	assert.ErrorIs(t, err, vecdb.ErrClosed)
}

func Test_OpenWithOptions_Rejects_Invalid_Dimension(t *testing.T) {
	t.Parallel()

	_, err := vecdb.OpenWithOptions(t.TempDir(), vecdb.Options{Dimension: 0})
	assert.ErrorIs(t, err, vecdb.ErrConfigInvalid)

	_, err = vecdb.OpenWithOptions(t.TempDir(), vecdb.Options{Dimension: vecdb.MaxDimension + 1})
	assert.ErrorIs(t, err, vecdb.ErrConfigInvalid)
}

func Test_Open_Creates_Store_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	db, err := vecdb.Open(dir, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.FileExists(t, filepath.Join(dir, "data.log"))
	assert.FileExists(t, filepath.Join(dir, "vectors.bin"))
}

func Test_Open_Creates_Nonexistent_Nested_Directory(t *testing.T) {
	t.Parallel()

	// Unlike t.TempDir(), this path's parent is never pre-created: Open
	// must create the whole chain itself, including before it can take
	// the directory lock.
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	db, err := vecdb.Open(dir, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.FileExists(t, filepath.Join(dir, "data.log"))
	assert.FileExists(t, filepath.Join(dir, "vectors.bin"))
}
