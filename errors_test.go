package vecdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Wrap_Attaches_Key_And_Op(t *testing.T) {
	t.Parallel()

	err := wrap(ErrNotFound, withOp("get"), withKey("k1"))

	var vErr *Error

	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "k1", vErr.Key)
	assert.Equal(t, "get", vErr.Op)
	assert.ErrorIs(t, err, ErrNotFound)
}

func Test_Wrap_Inherits_And_Does_Not_Double_Wrap(t *testing.T) {
	t.Parallel()

	inner := wrap(ErrCorrupt, withKey("a"))
	outer := wrap(inner, withOp("open"))

	var vErr *Error

	assert.True(t, errors.As(outer, &vErr))
	assert.Equal(t, "a", vErr.Key)
	assert.Equal(t, "open", vErr.Op)

	// wrap with no new options returns the same *Error, not a new nesting.
	same := wrap(outer)
	assert.Same(t, outer, same)
}

func Test_Wrap_Nil_Returns_Nil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, wrap(nil))
}

func Test_Error_String_Includes_Cause_And_Context(t *testing.T) {
	t.Parallel()

	err := &Error{Key: "k", Op: "put", Err: ErrDimensionMismatch}

	assert.Contains(t, err.Error(), ErrDimensionMismatch.Error())
	assert.Contains(t, err.Error(), "op=put")
	assert.Contains(t, err.Error(), "key=k")
}
