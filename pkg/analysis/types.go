// Package analysis derives historical insights from session blocks: the
// P90 adaptive token limit, usage trends, session patterns and cost
// statistics.
//
// Example usage:
//
//	est, err := analysis.New(analysis.Config{}, log)
//	if err != nil {
//	    return err
//	}
//	if limit, ok := est.Limit(sessionBlocks, true); ok {
//	    fmt.Printf("P90 limit: %d tokens\n", limit)
//	}
package analysis

import (
	"time"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// Default estimator settings.
const (
	DefaultThreshold = 0.95
	DefaultMinLimit  = 19000
	DefaultCacheTTL  = time.Hour
)

const p90Percentile = 90.0

// DefaultCommonLimits returns the token ceilings of the known plan tiers.
func DefaultCommonLimits() []int {
	return []int{19000, 88000, 220000}
}

// Estimator derives an adaptive token limit from closed session blocks.
type Estimator interface {
	// Limit returns the P90 token limit for blocks.
	//
	// Parameters:
	//   - blocks: Session blocks in timeline order
	//   - useCache: Serve repeated inputs from the time-bucketed cache
	//
	// Returns:
	//   - The limit, never below the configured minimum
	//   - false when blocks is empty
	//
	// Thread-safety: safe for concurrent use.
	Limit(blocks []usage.SessionBlock, useCache bool) (int, bool)

	// Computations returns how many times the limit was actually computed
	// rather than served from cache.
	Computations() int64
}

// Config contains estimator configuration.
type Config struct {
	// CommonLimits are the plan ceilings used to detect limit hits.
	// Default: DefaultCommonLimits().
	CommonLimits []int

	// Threshold is the fraction of a limit that counts as hitting it.
	// Default: 0.95.
	Threshold float64

	// DefaultMinLimit is the floor of every result.
	// Default: 19000.
	DefaultMinLimit int

	// CacheTTL is the width of a cache bucket.
	// Default: 1h.
	CacheTTL time.Duration

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time
}

// Trend summarizes consumption rates across non-gap blocks.
type Trend struct {
	AvgTokensPerHour  float64 `json:"avg_tokens_per_hour"`
	PeakTokensPerHour float64 `json:"peak_tokens_per_hour"`
	TotalTokens       int     `json:"total_tokens"`
	ActiveSessions    int     `json:"active_sessions"`
}

// Patterns summarizes the shape of non-gap sessions.
type Patterns struct {
	AvgSessionMinutes   float64 `json:"avg_session_duration"`
	AvgTokensPerSession float64 `json:"avg_tokens_per_session"`
	SessionCount        int     `json:"session_count"`
	CompletionRate      float64 `json:"completion_rate"`
}

// CostStats summarizes spending across non-gap blocks.
type CostStats struct {
	TotalCost         float64 `json:"total_cost"`
	AvgCostPerSession float64 `json:"avg_cost_per_session"`
	CostPerHour       float64 `json:"cost_per_hour"`
}

// Report combines every analysis of a block list.
type Report struct {
	Trend    Trend     `json:"trend"`
	Patterns Patterns  `json:"patterns"`
	P90Limit *int      `json:"p90_limit"`
	Cost     CostStats `json:"cost_stats"`
}
