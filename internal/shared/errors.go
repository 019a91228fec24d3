package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid input rejected before any write.
	ErrValidation = errors.New("invalid input")
	// ErrNothingToProcess indicates an operation found zero qualifying records.
	ErrNothingToProcess = errors.New("nothing to process")
)
