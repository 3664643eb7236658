// Package aggregator rolls usage events up into summaries.
//
// Two styles are provided. The Aggregator interface is a streaming,
// thread-safe accumulator grouped by configurable dimensions; it backs the
// stats command and the live monitor. The package-level functions (Daily,
// Monthly, Summarize, ByModel, ResetWindow) are pure calendar rollups over
// an event slice and are independent of session block boundaries.
//
// Example usage:
//
//	agg := aggregator.New(aggregator.Config{
//	    GroupBy: []aggregator.Dimension{aggregator.DimModel},
//	})
//	for _, ev := range events {
//	    agg.Add(ev)
//	}
//	fmt.Printf("Total tokens: %d\n", agg.Stats().TotalTokens)
//
//	for _, day := range aggregator.Daily(events, nil, nil) {
//	    fmt.Printf("%s %s %d\n", day.Date, day.Model, day.Tokens.Total())
//	}
package aggregator

import (
	"time"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// Dimension represents an aggregation dimension.
type Dimension string

const (
	// DimModel aggregates by model name.
	DimModel Dimension = "model"

	// DimSession aggregates by session ID.
	DimSession Dimension = "session"

	// DimProject aggregates by project path.
	DimProject Dimension = "project"

	// DimDate aggregates by UTC date (YYYY-MM-DD).
	DimDate Dimension = "date"

	// DimHour aggregates by UTC hour (YYYY-MM-DD HH:00).
	DimHour Dimension = "hour"
)

// keySeparator joins dimension values in group keys.
const keySeparator = "|"

// Aggregator computes token usage statistics incrementally.
type Aggregator interface {
	// Add adds a usage event to the aggregator.
	Add(ev usage.Event)

	// Stats returns statistics across all events.
	Stats() Statistics

	// GroupedStats returns statistics grouped by configured dimensions.
	//
	// Returns:
	//   - Map of "|"-joined dimension values to statistics
	//
	// For example, if GroupBy is [DimModel, DimSession], keys look like
	// "claude-3-5-sonnet|<session-id>".
	GroupedStats() map[string]Statistics

	// TopSessions returns top N sessions by token usage.
	//
	// Parameters:
	//   - n: Number of sessions to return (0 = all)
	//
	// Returns:
	//   - Session statistics sorted by total tokens descending
	//
	// Requires DimSession in GroupBy; returns nil otherwise.
	TopSessions(n int) []SessionStats

	// Reset clears all aggregated data.
	Reset()
}

// Statistics contains aggregated token usage statistics.
type Statistics struct {
	// Count is the number of events.
	Count int `json:"count"`

	// SessionCount is the number of unique sessions.
	SessionCount int `json:"session_count"`

	// Tokens holds the summed counters.
	Tokens usage.TokenCounts `json:"tokens"`

	// TotalTokens is Tokens.Total(), kept for display convenience.
	TotalTokens int `json:"total_tokens"`

	// CostUSD is the summed cost.
	CostUSD float64 `json:"cost_usd"`

	// AvgTokens is the average tokens per event.
	AvgTokens float64 `json:"avg_tokens"`

	MinTokens int `json:"min_tokens"`
	MaxTokens int `json:"max_tokens"`

	// Percentiles of per-event totals, populated when TrackPercentiles is set.
	P50Tokens int `json:"p50_tokens"`
	P95Tokens int `json:"p95_tokens"`
	P99Tokens int `json:"p99_tokens"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SessionStats contains statistics for a single session.
type SessionStats struct {
	SessionID  string     `json:"session_id"`
	Models     []string   `json:"models"`
	Statistics Statistics `json:"statistics"`
}

// Config contains aggregator configuration.
type Config struct {
	// GroupBy specifies aggregation dimensions.
	//
	// Default: no grouping (overall stats only).
	GroupBy []Dimension

	// TrackPercentiles enables percentile calculation.
	//
	// Percentiles require storing every per-event total in memory.
	TrackPercentiles bool
}

// DailyRollup is the usage of one model on one UTC calendar day.
type DailyRollup struct {
	// Date is formatted YYYY-MM-DD.
	Date       string            `json:"date"`
	Model      string            `json:"model"`
	Tokens     usage.TokenCounts `json:"tokens"`
	CostUSD    float64           `json:"cost_usd"`
	EntryCount int               `json:"entry_count"`
}

// MonthlyRollup is the usage of one model in one UTC calendar month.
type MonthlyRollup struct {
	Year       int               `json:"year"`
	Month      time.Month        `json:"month"`
	Model      string            `json:"model"`
	Tokens     usage.TokenCounts `json:"tokens"`
	CostUSD    float64           `json:"cost_usd"`
	EntryCount int               `json:"entry_count"`
}

// Key returns the month formatted as YYYY-MM.
func (m MonthlyRollup) Key() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// Summary is the overall usage of an event slice.
type Summary struct {
	Tokens     usage.TokenCounts `json:"tokens"`
	CostUSD    float64           `json:"cost_usd"`
	EntryCount int               `json:"entry_count"`
	FirstSeen  time.Time         `json:"first_seen"`
	LastSeen   time.Time         `json:"last_seen"`
	Models     []string          `json:"models"`
}

// ModelBreakdown is the usage attributed to one model.
type ModelBreakdown struct {
	Model      string            `json:"model"`
	Tokens     usage.TokenCounts `json:"tokens"`
	CostUSD    float64           `json:"cost_usd"`
	EntryCount int               `json:"entry_count"`
}

// ResetInfo describes the rolling usage window and when it resets.
type ResetInfo struct {
	// WindowStart is the oldest event inside the trailing window.
	// Zero when the window is empty.
	WindowStart time.Time `json:"window_start"`

	// ResetAt is WindowStart plus the window length.
	ResetAt time.Time `json:"reset_at"`

	// MinutesUntilReset is never negative.
	MinutesUntilReset int `json:"minutes_until_reset"`

	Tokens     int     `json:"tokens"`
	CostUSD    float64 `json:"cost_usd"`
	EntryCount int     `json:"entry_count"`
}
