package discovery

import "errors"

var (
	// ErrProjectNotFound means the encoded project directory is missing.
	ErrProjectNotFound = errors.New("claude project not found")

	// ErrNotDirectory means a project path points at a regular file.
	ErrNotDirectory = errors.New("project path is not a directory")
)
