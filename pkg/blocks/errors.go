package blocks

import "errors"

// ErrInvalidDuration is returned when the block duration is not a positive
// whole number of hours.
var ErrInvalidDuration = errors.New("invalid block duration: must be a whole number of hours")
