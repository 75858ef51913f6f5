package core

import "github.com/pkg/errors"

// ErrStorageUnavailable is the class of every failure reported by the persistence layer.
// Callers are not retried automatically.
var ErrStorageUnavailable = errors.New("storage unavailable")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// StorageError wraps a gateway failure.
type StorageError struct {
	Err error
}

// NewStorageError wraps err as a StorageError. nil stays nil.
func NewStorageError(err error) error {
	if err == nil {
		return nil
	}
	if IsStorageUnavailable(err) {
		return err
	}
	return &StorageError{Err: err}
}

func (err *StorageError) Error() string {
	return ErrStorageUnavailable.Error() + ": " + err.Err.Error()
}

func (err *StorageError) Unwrap() error { return err.Err }

func (err *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
