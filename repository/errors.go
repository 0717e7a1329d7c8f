package repository

import "errors"

// Failure taxonomy for repository and cascade operations. Callers test
// with errors.Is; each site wraps the sentinel with detail.
var (
	// ErrAlreadyExists reports a uniqueness-constraint conflict
	// (username, email, region name, drone id, ...).
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound reports a missing entity or a dangling reference.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState reports a reference to an INACTIVE entity, a
	// commander without a region, or a region mismatch between a drone
	// and its operator.
	ErrInvalidState = errors.New("invalid state")
)
