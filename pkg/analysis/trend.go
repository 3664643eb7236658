package analysis

import (
	"github.com/samber/lo"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// AnalyzeTrend computes per-block hourly rates over non-gap blocks.
func AnalyzeTrend(blocks []usage.SessionBlock) Trend {
	valid := nonGap(blocks)

	var t Trend
	var sum float64
	for _, b := range valid {
		t.TotalTokens += b.TotalTokens()
		if b.IsActive {
			t.ActiveSessions++
		}

		rate := float64(b.TotalTokens()) / b.DurationMinutes() * 60
		sum += rate
		t.PeakTokensPerHour = max(t.PeakTokensPerHour, rate)
	}

	if len(valid) > 0 {
		t.AvgTokensPerHour = sum / float64(len(valid))
	}
	return t
}

// AnalyzePatterns computes session averages over non-gap blocks.
func AnalyzePatterns(blocks []usage.SessionBlock) Patterns {
	valid := nonGap(blocks)
	if len(valid) == 0 {
		return Patterns{}
	}

	var minutes float64
	var tokens, completed int
	for _, b := range valid {
		minutes += b.DurationMinutes()
		tokens += b.TotalTokens()
		if !b.IsActive {
			completed++
		}
	}

	n := float64(len(valid))
	return Patterns{
		AvgSessionMinutes:   minutes / n,
		AvgTokensPerSession: float64(tokens) / n,
		SessionCount:        len(valid),
		CompletionRate:      float64(completed) / n,
	}
}

// AnalyzeCost computes spending totals over non-gap blocks.
func AnalyzeCost(blocks []usage.SessionBlock) CostStats {
	valid := nonGap(blocks)
	if len(valid) == 0 {
		return CostStats{}
	}

	var cost, minutes float64
	for _, b := range valid {
		cost += b.CostUSD
		minutes += b.DurationMinutes()
	}

	stats := CostStats{
		TotalCost:         cost,
		AvgCostPerSession: cost / float64(len(valid)),
	}
	if hours := minutes / 60; hours > 0 {
		stats.CostPerHour = cost / hours
	}
	return stats
}

// Analyze runs every analysis over blocks. P90Limit is nil when blocks is
// empty.
func Analyze(blocks []usage.SessionBlock, est Estimator) Report {
	report := Report{
		Trend:    AnalyzeTrend(blocks),
		Patterns: AnalyzePatterns(blocks),
		Cost:     AnalyzeCost(blocks),
	}

	if est != nil {
		if limit, ok := est.Limit(blocks, true); ok {
			report.P90Limit = &limit
		}
	}
	return report
}

func nonGap(blocks []usage.SessionBlock) []usage.SessionBlock {
	return lo.Reject(blocks, func(b usage.SessionBlock, _ int) bool {
		return b.IsGap
	})
}
