// Package usage defines the value types shared by the usage aggregation
// pipeline: token-usage events, 5-hour session blocks, burn rates and
// projections.
//
// All types are plain values. Derived quantities such as total tokens and
// block duration are computed by methods rather than stored, so they
// cannot drift from the underlying counters.
//
// Example usage:
//
//	ev := usage.Event{
//	    Timestamp: time.Now(),
//	    Model:     "claude-3-5-sonnet",
//	    Tokens:    usage.TokenCounts{Input: 1200, Output: 300},
//	}
//	fmt.Printf("Tokens: %d\n", ev.Tokens.Total())
package usage

import (
	"time"
)

// DefaultBlockDuration is the nominal length of a session block.
const DefaultBlockDuration = 5 * time.Hour

// UnknownModel is the model name assigned to events without one.
const UnknownModel = "unknown"

// TokenCounts holds the four token counters of a usage observation.
//
// Invariant: all counters are non-negative.
type TokenCounts struct {
	Input         int `json:"input_tokens"`
	Output        int `json:"output_tokens"`
	CacheCreation int `json:"cache_creation_tokens"`
	CacheRead     int `json:"cache_read_tokens"`
}

// Total returns the sum of all four counters.
func (t TokenCounts) Total() int {
	return t.Input + t.Output + t.CacheCreation + t.CacheRead
}

// Add returns the element-wise sum of t and other.
func (t TokenCounts) Add(other TokenCounts) TokenCounts {
	return TokenCounts{
		Input:         t.Input + other.Input,
		Output:        t.Output + other.Output,
		CacheCreation: t.CacheCreation + other.CacheCreation,
		CacheRead:     t.CacheRead + other.CacheRead,
	}
}

// IsZero reports whether every counter is zero.
func (t TokenCounts) IsZero() bool {
	return t == TokenCounts{}
}

// Event is a single token-usage observation.
//
// Invariant: Timestamp is not the zero value.
// Invariant: CostUSD is non-negative.
type Event struct {
	// Timestamp orders all events.
	Timestamp time.Time `json:"timestamp"`

	// Model is the normalized model key.
	Model string `json:"model"`

	// Tokens holds the token counters.
	Tokens TokenCounts `json:"tokens"`

	// CostUSD is the resolved cost of the event.
	CostUSD float64 `json:"cost_usd"`

	// EmbeddedCost is the cost recorded in the source log, if any.
	EmbeddedCost *float64 `json:"embedded_cost_usd,omitempty"`

	// MessageID and RequestID together form the deduplication key.
	MessageID string `json:"message_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// SessionID identifies the conversation the event came from.
	SessionID string `json:"session_id,omitempty"`

	// ProjectPath is the working directory of the conversation.
	ProjectPath string `json:"project_path,omitempty"`
}

// DedupKey returns "message_id:request_id" when both identifiers are
// present and an empty string otherwise.
func (e Event) DedupKey() string {
	if e.MessageID == "" || e.RequestID == "" {
		return ""
	}
	return e.MessageID + ":" + e.RequestID
}

// ModelStats is the per-model breakdown inside a session block.
type ModelStats struct {
	Tokens     TokenCounts `json:"tokens"`
	CostUSD    float64     `json:"cost_usd"`
	EntryCount int         `json:"entry_count"`
}

// SessionBlock is a fixed-duration aggregation window over usage events.
//
// Invariants:
//   - A gap block has no entries, zero tokens and zero cost.
//   - TokenCounts and CostUSD equal the sums over Entries.
//   - Blocks built from one event stream are contiguous and non-overlapping.
type SessionBlock struct {
	// ID is derived from the start time.
	ID string `json:"id"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// ActualEndTime is the timestamp of the last event in the block.
	// Nil for gap blocks.
	ActualEndTime *time.Time `json:"actual_end_time,omitempty"`

	Entries     []Event     `json:"entries"`
	TokenCounts TokenCounts `json:"token_counts"`
	CostUSD     float64     `json:"cost_usd"`

	IsActive bool `json:"is_active"`
	IsGap    bool `json:"is_gap"`

	PerModelStats map[string]ModelStats `json:"per_model_stats"`
	Models        []string              `json:"models"`
}

// TotalTokens returns the total token count of the block.
func (b SessionBlock) TotalTokens() int {
	return b.TokenCounts.Total()
}

// ElapsedMinutes returns the raw minutes between StartTime and
// ActualEndTime, or EndTime when ActualEndTime is nil.
func (b SessionBlock) ElapsedMinutes() float64 {
	end := b.EndTime
	if b.ActualEndTime != nil {
		end = *b.ActualEndTime
	}
	return end.Sub(b.StartTime).Minutes()
}

// DurationMinutes returns ElapsedMinutes floored at 1.0 so it can be used
// as a divisor.
func (b SessionBlock) DurationMinutes() float64 {
	d := b.ElapsedMinutes()
	if d < 1.0 {
		return 1.0
	}
	return d
}

// EndOr returns ActualEndTime, or fallback when the block has none.
func (b SessionBlock) EndOr(fallback time.Time) time.Time {
	if b.ActualEndTime != nil {
		return *b.ActualEndTime
	}
	return fallback
}

// BurnRate is the consumption rate of an active block.
type BurnRate struct {
	TokensPerMinute float64 `json:"tokens_per_minute"`
	CostPerHour     float64 `json:"cost_per_hour"`
}

// UsageProjection extrapolates an active block to the end of its window.
type UsageProjection struct {
	ProjectedTotalTokens int     `json:"projected_total_tokens"`
	ProjectedTotalCost   float64 `json:"projected_total_cost"`
	RemainingMinutes     int     `json:"remaining_minutes"`
}

// EnrichedBlock pairs a session block with its burn rate and projection.
// BurnRate and Projection are nil when not applicable.
type EnrichedBlock struct {
	Block      SessionBlock     `json:"block"`
	BurnRate   *BurnRate        `json:"burn_rate,omitempty"`
	Projection *UsageProjection `json:"projection,omitempty"`
}
