package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStorageError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStorageError(cause)

	assert.True(t, IsStorageUnavailable(err))
	assert.True(t, IsStorageUnavailable(errors.Wrap(err, "querying projects")))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "storage unavailable: connection refused", err.Error())

	// no double wrapping
	assert.Same(t, err, NewStorageError(err))
	assert.Nil(t, NewStorageError(nil))
	assert.False(t, IsStorageUnavailable(cause))
}

func TestIsShutdown(t *testing.T) {
	err := NewShutdownError("integrity issue")
	assert.True(t, IsShutdown(err))
	assert.True(t, IsShutdown(errors.Wrap(err, "setting status")))
	assert.False(t, IsShutdown(errors.New("integrity issue")))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(errors.New("bad email"), FieldError{Field: "email", Error: "taken"})
	var vErr *ValidationError
	if assert.True(t, errors.As(err, &vErr)) {
		assert.Equal(t, "bad email", vErr.Error())
		assert.Len(t, vErr.Fields, 1)
	}
}
