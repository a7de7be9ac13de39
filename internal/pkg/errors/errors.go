package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyExists signals a unique-constraint conflict. Callers may
	// treat it as success against the existing record.
	ErrAlreadyExists = errors.New("already exists")
)
