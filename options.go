package vecdb

import "fmt"

const (
	// MinDimension and MaxDimension bound a store's vector dimension.
	MinDimension = 1
	MaxDimension = 100_000

	// DefaultCompactThresholdRatio is the fraction of deleted-to-total
	// slots that triggers an automatic compaction.
	DefaultCompactThresholdRatio = 0.5

	// DefaultCompactThresholdCount is the absolute number of deleted slots
	// that must be exceeded before auto-compaction considers firing,
	// so a handful of deletes in a huge store doesn't trigger a rewrite.
	DefaultCompactThresholdCount = 1000

	// DefaultEnableAutoCompact matches spec.md's documented default.
	DefaultEnableAutoCompact = true
)

// Options configures a store. The zero value is invalid; use
// [DefaultOptions] or construct with at least Dimension set.
type Options struct {
	// Dimension is the fixed length of every vector in the store.
	// Required, must be in [MinDimension, MaxDimension].
	Dimension uint32

	// CompactThresholdRatio is the deleted/total ratio past which a put
	// triggers a background auto-compaction. Clamped to [0, 1].
	CompactThresholdRatio float64

	// CompactThresholdCount is the minimum deleted-slot count past which
	// auto-compaction considers firing, evaluated alongside the ratio.
	CompactThresholdCount int

	// EnableAutoCompact turns the background trigger on or off. Manual
	// [DB.Compact] calls are unaffected either way.
	EnableAutoCompact bool
}

// DefaultOptions returns Options for dimension with every other field at
// its documented default.
func DefaultOptions(dimension uint32) Options {
	return Options{
		Dimension:             dimension,
		CompactThresholdRatio: DefaultCompactThresholdRatio,
		CompactThresholdCount: DefaultCompactThresholdCount,
		EnableAutoCompact:     DefaultEnableAutoCompact,
	}
}

// validate checks and normalizes o, clamping the ratio per spec.md §6
// rather than rejecting an out-of-range value outright.
func (o Options) validate() (Options, error) {
	if o.Dimension < MinDimension || o.Dimension > MaxDimension {
		return o, wrap(fmt.Errorf("%w: dimension %d out of range [%d, %d]",
			ErrConfigInvalid, o.Dimension, MinDimension, MaxDimension), withOp("open"))
	}

	if o.CompactThresholdRatio < 0 {
		o.CompactThresholdRatio = 0
	}

	if o.CompactThresholdRatio > 1 {
		o.CompactThresholdRatio = 1
	}

	if o.CompactThresholdCount < 0 {
		return o, wrap(fmt.Errorf("%w: negative compact threshold count", ErrConfigInvalid), withOp("open"))
	}

	return o, nil
}
