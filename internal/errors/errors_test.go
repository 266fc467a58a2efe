package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, CodeOf(NotFound("change report", "abc")))
	assert.Equal(t, ErrCodeInvalidInput, CodeOf(InvalidInput("amount", "must be set")))
	assert.Equal(t, ErrCodeConflict, CodeOf(Conflict("already approved")))
	assert.Equal(t, ErrCodeInternal, CodeOf(stdErrors.New("plain error")))
	assert.Equal(t, ErrCodeInternal, CodeOf(nil))
}

func TestCodeSurvivesWrapping(t *testing.T) {
	inner := New(ErrCodeConcurrency, "version mismatch")
	outer := fmt.Errorf("saving report: %w", inner)

	assert.Equal(t, ErrCodeConcurrency, CodeOf(outer))
	assert.True(t, IsConflict(outer))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(cause, ErrCodeInternal, "querying change reports")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "INTERNAL_ERROR")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("employee", "e-1")))
	assert.True(t, IsInvalidInput(InvalidInput("reason", "required")))
	assert.True(t, IsConflict(Conflict("terminal")))
	assert.False(t, IsConflict(NotFound("x", "y")))
}
