// Package pricing maps a model identifier and token counts to a cost in
// USD.
//
// Prices are expressed per million tokens for each of the four token
// types. Model names are normalized to a canonical family key before the
// table lookup, so dated snapshots and casing differences resolve to the
// same price.
//
// Example usage:
//
//	r := pricing.New(pricing.Config{}, logger.Default())
//	cost, err := r.Resolve("claude-3-5-sonnet-20241022", tokens, entry.CostUSD, usage.CostModeAuto)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Cost: $%.4f\n", cost)
package pricing

import (
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// Price holds per-million-token prices for one model.
type Price struct {
	Input      float64 `json:"input" yaml:"input" toml:"input"`
	Output     float64 `json:"output" yaml:"output" toml:"output"`
	CacheWrite float64 `json:"cache_write" yaml:"cache_write" toml:"cache_write"`
	CacheRead  float64 `json:"cache_read" yaml:"cache_read" toml:"cache_read"`
}

// Table maps a canonical model key to its price.
type Table map[string]Price

// Resolver computes event costs.
type Resolver interface {
	// Resolve returns the cost of one event under the given cost mode.
	//
	// Parameters:
	//   - model: Raw or normalized model name
	//   - tokens: Token counts of the event
	//   - embedded: Cost recorded in the log, nil when absent
	//   - mode: Cost mode policy
	//
	// Returns:
	//   - Cost in USD (never negative)
	//   - usage.ErrInvalidCostMode if mode is not recognized
	//
	// Thread-safety: This method is safe for concurrent use.
	Resolve(model string, tokens usage.TokenCounts, embedded *float64, mode usage.CostMode) (float64, error)

	// Calculate recomputes the cost from the price table.
	//
	// Unknown models are priced with the fallback model's rates.
	Calculate(model string, tokens usage.TokenCounts) float64

	// Price returns the price used for a model and whether it was an
	// exact table match (false means the fallback was used).
	Price(model string) (Price, bool)
}

// Config contains resolver configuration.
type Config struct {
	// Table is the price table.
	// Default: DefaultTable().
	Table Table

	// FallbackModel is the table key used for unknown models.
	// Default: "claude-3-5-sonnet".
	FallbackModel string
}
