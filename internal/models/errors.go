package models

import "errors"

var (
	// ErrNotFound means the volunteer or request ID is unknown. Callers
	// normally tolerate it: the operation becomes a logged no-op.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID means a request with that ID already exists.
	ErrDuplicateID = errors.New("duplicate request id")
)
