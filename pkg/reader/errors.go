package reader

import "errors"

var (
	// ErrFileNotFound means the session log vanished between discovery and read.
	ErrFileNotFound = errors.New("session log not found")

	// ErrPermissionDenied means the session log is not readable.
	ErrPermissionDenied = errors.New("session log not readable")

	// ErrFileTooLarge means the session log is bigger than Config.MaxFileSize.
	ErrFileTooLarge = errors.New("session log exceeds size limit")

	// ErrInvalidOffset means a stored or requested byte offset is negative.
	ErrInvalidOffset = errors.New("negative byte offset")

	// ErrReaderClosed is returned by every method after Close.
	ErrReaderClosed = errors.New("usage reader closed")

	// ErrMissingDependency means New was given a nil parser or offset store.
	ErrMissingDependency = errors.New("usage reader needs a parser and offset store")
)
