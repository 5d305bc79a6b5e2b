package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrDimensionMismatch is returned when a vector's length does not match
	// the dimension the index was created with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidInput is returned for missing, empty, or non-finite embeddings.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClosed is returned when operating on a closed index.
	ErrClosed = errors.New("index is closed")
)

// StoreError wraps errors with operation context.
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vectors: %v", e.Err)
	}
	return fmt.Sprintf("vectors: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
