package util

import "errors"

var (
	// ErrNotFound marks a referenced video_id that is not indexed.
	ErrNotFound = errors.New("document not found")

	// ErrValidation marks a malformed request, rejected before any store access.
	ErrValidation = errors.New("validation failed")

	// ErrWriteConflict marks a concurrent-write conflict detected by the store.
	ErrWriteConflict = errors.New("index write conflict")
)
