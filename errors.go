package vecdb

import (
	"errors"
	"strings"

	"github.com/nyxdb/vecdb/internal/vecstore"
)

// Sentinel errors. Use [errors.Is] to classify; use [errors.As] with
// *Error to pull out the key and the failing operation.
var (
	// ErrNotFound means the key is absent or logically deleted.
	ErrNotFound = errors.New("vecdb: not found")

	// ErrDimensionMismatch means a vector/query had the wrong length, or a
	// store's on-disk dimension disagrees with the dimension it was
	// opened with.
	ErrDimensionMismatch = vecstore.ErrDimensionMismatch

	// ErrInvalidVector means a vector component is NaN or infinite.
	ErrInvalidVector = errors.New("vecdb: invalid vector")

	// ErrCorrupt means a structural on-disk inconsistency was found that
	// cannot be locally repaired: bad magic, unsupported version, a log id
	// that outruns the vector file, or a log record that fails its checksum
	// or UTF-8 check when read. Put also returns it for a key that is not
	// valid UTF-8.
	ErrCorrupt = vecstore.ErrCorrupt

	// ErrConfigInvalid means the supplied Options failed validation.
	ErrConfigInvalid = errors.New("vecdb: invalid config")

	// ErrSerialization means metadata could not be marshaled to JSON.
	ErrSerialization = errors.New("vecdb: metadata serialization failed")

	// ErrBusy means the store directory is already locked by another
	// open DB, in this process or another.
	ErrBusy = errors.New("vecdb: directory already locked")

	// ErrClosed means an operation was attempted on a closed DB.
	ErrClosed = vecstore.ErrClosed

	// ErrLockPoisoned means a prior operation on this DB aborted while
	// holding the lock; the DB must not be used further. vecdb has no
	// mid-mutation exit paths that could leave state half-written, so
	// this is exposed only for [errors.Is] compatibility with callers
	// migrating from systems that need it — this implementation never
	// returns it, per spec.md §5's allowance for that design.
	ErrLockPoisoned = errors.New("vecdb: lock poisoned")
)

// Error is the uniform error type returned by DB's public methods. It
// attaches the key and operation a failure occurred under, when known.
//
// Use [errors.As] to recover structured fields:
//
//	var vErr *vecdb.Error
//	if errors.As(err, &vErr) {
//	    log.Printf("op=%s key=%s: %v", vErr.Op, vErr.Key, vErr.Err)
//	}
//
// Use [errors.Is] to check for one of the sentinels above.
type Error struct {
	// Key is the vector key involved, if any.
	Key string

	// Op names the failing operation ("put", "get", "delete", "search",
	// "compact", "open", ...).
	Op string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := e.cause()
	suffix := e.suffix()

	if suffix == "" {
		return cause
	}

	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

func (e *Error) String() string { return e.Error() }

// Unwrap supports [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) suffix() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}

	if len(parts) == 0 {
		return ""
	}

	return "(" + strings.Join(parts, " ") + ")"
}

func (e *Error) cause() string {
	if e.Err == nil {
		return ""
	}

	return e.Err.Error()
}

// errOpt configures an [Error] during construction via [wrap].
type errOpt func(*Error)

// withKey attaches the vector key involved in a failure.
func withKey(key string) errOpt {
	return func(e *Error) { e.Key = key }
}

// withOp attaches the name of the operation that failed.
func withOp(op string) errOpt {
	return func(e *Error) { e.Op = op }
}

// wrap builds an *Error with optional context, inheriting and unwrapping
// any *Error already in err's chain so wrapping never nests suffixes.
func wrap(err error, opts ...errOpt) error {
	if err == nil {
		return nil
	}

	existing := &Error{}
	isDirectError := errors.As(err, &existing)

	if isDirectError && len(opts) == 0 {
		return existing
	}

	e := &Error{Err: err}

	if isDirectError {
		e.Key = existing.Key
		e.Op = existing.Op
		e.Err = existing.Err
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}
