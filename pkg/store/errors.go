package store

import "errors"

// Common errors returned by the store.
var (
	// ErrEmptyPath is returned when no database path is configured.
	ErrEmptyPath = errors.New("database path is empty")

	// ErrClosed is returned when using a closed store.
	ErrClosed = errors.New("store is closed")
)
