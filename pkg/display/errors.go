package display

import "errors"

var (
	// ErrUnknownFormat is returned for an unsupported format name.
	ErrUnknownFormat = errors.New("unknown output format")

	// ErrNoDimensions is returned when grouped output has no dimensions.
	ErrNoDimensions = errors.New("no dimensions specified")
)
