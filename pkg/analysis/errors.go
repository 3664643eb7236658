package analysis

import "errors"

var (
	// ErrInvalidConfig is returned when estimator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid estimator configuration")
)
