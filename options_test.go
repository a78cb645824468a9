package vecdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nyxdb/vecdb"
)

func Test_DefaultOptions_Sets_Documented_Defaults(t *testing.T) {
	t.Parallel()

	opts := vecdb.DefaultOptions(128)

	assert.EqualValues(t, 128, opts.Dimension)
	assert.Equal(t, vecdb.DefaultCompactThresholdRatio, opts.CompactThresholdRatio)
	assert.Equal(t, vecdb.DefaultCompactThresholdCount, opts.CompactThresholdCount)
	assert.Equal(t, vecdb.DefaultEnableAutoCompact, opts.EnableAutoCompact)
}

func Test_OpenWithOptions_Clamps_Ratio_Out_Of_Range(t *testing.T) {
	t.Parallel()

	db, err := vecdb.OpenWithOptions(t.TempDir(), vecdb.Options{
		Dimension:             2,
		CompactThresholdRatio: 5,
	})

	assert.NoError(t, err)

	if db != nil {
		defer db.Close()
	}
}
