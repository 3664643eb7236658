package usage

import (
	"fmt"
	"strings"
)

// CostMode selects how an event's cost is determined.
type CostMode string

const (
	// CostModeCached trusts the cost recorded in the log.
	CostModeCached CostMode = "cached"

	// CostModeCalculated always recomputes cost from the price table.
	CostModeCalculated CostMode = "calculate"

	// CostModeAuto prefers a positive recorded cost and recomputes otherwise.
	CostModeAuto CostMode = "auto"
)

// Valid reports whether m is one of the known cost modes.
func (m CostMode) Valid() bool {
	switch m {
	case CostModeCached, CostModeCalculated, CostModeAuto:
		return true
	default:
		return false
	}
}

// String returns the mode name.
func (m CostMode) String() string {
	return string(m)
}

// ParseCostMode converts a string to a CostMode.
//
// Matching is case-insensitive and "calculated" is accepted as an alias of
// "calculate". Returns ErrInvalidCostMode for anything else.
func ParseCostMode(s string) (CostMode, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "calculated" {
		normalized = string(CostModeCalculated)
	}

	m := CostMode(normalized)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCostMode, s)
	}
	return m, nil
}
