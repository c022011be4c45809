package domain

import "errors"

// Sentinel errors shared across stores and services. Callers match with
// errors.Is; store implementations wrap them with contextual detail.
var (
	// ErrNotFound indicates a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a uniqueness conflict (e.g. a second
	// case for the same alert, a duplicate rule name).
	ErrAlreadyExists = errors.New("record already exists")

	// ErrValidation indicates invalid entity state at construction time.
	ErrValidation = errors.New("validation error")

	// ErrInvalidInput indicates a malformed store argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCaseResolved indicates an attempt to resolve a case that has
	// already left the PENDING state.
	ErrCaseResolved = errors.New("case already resolved")
)
