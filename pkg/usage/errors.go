package usage

import "errors"

// Common errors returned by the usage pipeline.
var (
	// ErrInvalidCostMode is returned when a cost mode is not cached, calculate or auto.
	ErrInvalidCostMode = errors.New("invalid cost mode: must be cached, calculate, or auto")

	// ErrMissingTimestamp is returned when an event reaching the core has no timestamp.
	ErrMissingTimestamp = errors.New("usage event has no timestamp")
)
