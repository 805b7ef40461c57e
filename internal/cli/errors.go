package cli

import (
	"errors"
	"fmt"
)

// ArgumentError is a problem with the command line or the configuration it
// points to. It ends the run with exitcodes.UsageError before any test runs.
type ArgumentError struct {
	Err error
}

func (e *ArgumentError) Error() string {
	return e.Err.Error()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// NewArgumentError wraps err as an ArgumentError.
func NewArgumentError(err error) *ArgumentError {
	return &ArgumentError{Err: err}
}

// Argumentf formats an ArgumentError.
func Argumentf(format string, args ...any) *ArgumentError {
	return &ArgumentError{Err: fmt.Errorf(format, args...)}
}

// IsArgumentError checks if the error is or wraps an ArgumentError.
func IsArgumentError(err error) bool {
	var argErr *ArgumentError
	return err != nil && errors.As(err, &argErr)
}
