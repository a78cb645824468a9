package vecstore

import "errors"

// Sentinel errors returned by the storage layer. Callers classify with
// [errors.Is]; the public vecdb package re-exports these under its own
// names so library users never need to import internal/vecstore directly.
var (
	// ErrCorrupt indicates a CRC mismatch, bad magic/version, invalid UTF-8
	// key, or a log id that outruns the vector file. Log record values are
	// not checked for valid JSON, so an invalid value is neither reported
	// nor a reason for recovery to stop.
	ErrCorrupt = errors.New("vecstore: corrupt")

	// ErrDimensionMismatch indicates a vector whose length disagrees with
	// the store's configured dimension, or a vector file header whose
	// dimension disagrees with the dimension the caller opened with.
	ErrDimensionMismatch = errors.New("vecstore: dimension mismatch")

	// ErrClosed indicates an operation on a closed store. The vecdb package
	// returns it for calls on a closed DB; Storage's own methods do not
	// return it.
	ErrClosed = errors.New("vecstore: closed")
)
