// Package parser decodes the JSON-lines conversation logs written by Claude
// Code into raw usage records.
//
// Only the fields needed for usage accounting are decoded; message content
// blocks are ignored. Lines that are not valid JSON, lack a timestamp or
// carry no usage object are skipped rather than failing the whole file.
//
// Example usage:
//
//	p := parser.New(logger.Default())
//	records, offset, err := p.ParseFile("/path/to/session.jsonl", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, rec := range records {
//	    fmt.Printf("Tokens: %d\n", rec.Message.Usage.TotalTokens())
//	}
package parser

import (
	"time"
)

// Record is one usage-bearing line of a conversation log.
//
// Invariant: Timestamp is not the zero value.
// Invariant: Message.Usage is non-nil with non-negative counts.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
	SessionID  string    `json:"sessionId"`
	Version    string    `json:"version"`
	CurrentDir string    `json:"cwd"`
	RequestID  string    `json:"requestId"`
	Message    Message   `json:"message"`

	// CostUSD is the cost embedded by the client, when it recorded one.
	CostUSD *float64 `json:"costUSD,omitempty"`
}

// Message holds the API response fields relevant to accounting.
type Message struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Usage *Usage `json:"usage"`
}

// Usage contains token consumption metrics for a single API call.
//
// Invariant: All token counts must be >= 0.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// TotalTokens returns the sum of all token types.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens +
		u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// Validate checks if the record satisfies all invariants.
//
// Returns an error if:
//   - Timestamp is zero value
//   - Message.Usage is missing
//   - Any token count is negative
//
// An empty model or session ID is accepted; the collector normalizes them.
func (r *Record) Validate() error {
	if r.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}

	if r.Message.Usage == nil {
		return ErrNoUsage
	}

	return r.Message.Usage.Validate()
}

// Validate checks if all token counts are non-negative.
func (u Usage) Validate() error {
	if u.InputTokens < 0 || u.OutputTokens < 0 ||
		u.CacheCreationInputTokens < 0 || u.CacheReadInputTokens < 0 {
		return ErrNegativeTokenCount
	}
	return nil
}
