package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry indicates an insert or update violated a unique
	// constraint. The queue-session and assignment invariants rely on this
	// mapping for conflict detection under concurrent writers.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrStaleState indicates a conditional update matched no rows because
	// the record is no longer in the expected status.
	ErrStaleState = errors.New("repository: stale state")
)

var (
	ErrCallNotFound       = ErrNotFound
	ErrAssignmentNotFound = ErrNotFound
	ErrSessionNotFound    = ErrNotFound
)
