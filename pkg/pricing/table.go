package pricing

// DefaultFallbackModel is the table key used to price unknown models.
const DefaultFallbackModel = "claude-3-5-sonnet"

// DefaultTable returns the built-in price table (USD per million tokens).
func DefaultTable() Table {
	return Table{
		"claude-3-opus":     {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},
		"claude-3-sonnet":   {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
		"claude-3-haiku":    {Input: 0.25, Output: 1.25, CacheWrite: 0.30, CacheRead: 0.03},
		"claude-3-5-sonnet": {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
		"claude-3-5-haiku":  {Input: 0.80, Output: 4.00, CacheWrite: 1.00, CacheRead: 0.08},
		"claude-opus-4":     {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},
		"claude-opus-4-1":   {Input: 15.00, Output: 75.00, CacheWrite: 18.75, CacheRead: 1.50},
		"claude-opus-4-5":   {Input: 5.00, Output: 25.00, CacheWrite: 6.25, CacheRead: 0.50},
		"claude-sonnet-4":   {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
		"claude-sonnet-4-5": {Input: 3.00, Output: 15.00, CacheWrite: 3.75, CacheRead: 0.30},
		"claude-haiku-4-5":  {Input: 1.00, Output: 5.00, CacheWrite: 1.25, CacheRead: 0.10},
	}
}

// Merge returns a new table with the entries of override laid over t.
// Override keys are normalized the same way lookups are.
func (t Table) Merge(override Table) Table {
	result := make(Table, len(t)+len(override))
	for k, v := range t {
		result[k] = v
	}
	for k, v := range override {
		result[priceKey(k)] = v
	}
	return result
}

// cost returns the USD cost of the given token counts at price p.
func (p Price) cost(input, output, cacheWrite, cacheRead int) float64 {
	return (float64(input)*p.Input +
		float64(output)*p.Output +
		float64(cacheWrite)*p.CacheWrite +
		float64(cacheRead)*p.CacheRead) / 1_000_000
}
