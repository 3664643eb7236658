package events

import "errors"

var (
	// ErrNoResolver is returned when Config.Resolver is nil.
	ErrNoResolver = errors.New("pricing resolver is required")

	// ErrInvalidHoursBack is returned for a negative look-back.
	ErrInvalidHoursBack = errors.New("hours back must not be negative")
)
