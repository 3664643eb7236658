// Package burnrate computes consumption rates and end-of-window projections
// for session blocks.
//
// All functions are pure: blocks are read, never modified. Enrich returns a
// companion view instead of attaching results to the block.
//
// Example usage:
//
//	for _, eb := range burnrate.Enrich(sessionBlocks, time.Now()) {
//	    if eb.Projection != nil {
//	        fmt.Printf("projected: %d tokens\n", eb.Projection.ProjectedTotalTokens)
//	    }
//	}
package burnrate

import (
	"time"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// trailingWindow is the look-back used by Hourly.
const trailingWindow = time.Hour

// Calculate returns the burn rate of an active block.
//
// Returns nil unless the block is active, at least one minute has elapsed
// and the block has consumed tokens.
func Calculate(block usage.SessionBlock) *usage.BurnRate {
	if !block.IsActive || block.IsGap {
		return nil
	}
	if block.ElapsedMinutes() < 1 {
		return nil
	}

	total := block.TotalTokens()
	if total <= 0 {
		return nil
	}

	minutes := block.DurationMinutes()
	return &usage.BurnRate{
		TokensPerMinute: float64(total) / minutes,
		CostPerHour:     block.CostUSD / minutes * 60,
	}
}

// Project extrapolates the block's totals to its EndTime.
//
// Returns nil when no burn rate is available or the window has already
// ended at now.
func Project(block usage.SessionBlock, now time.Time) *usage.UsageProjection {
	rate := Calculate(block)
	if rate == nil {
		return nil
	}

	remaining := block.EndTime.Sub(now)
	if remaining <= 0 {
		return nil
	}

	remainingMinutes := remaining.Minutes()
	costPerMinute := rate.CostPerHour / 60

	return &usage.UsageProjection{
		ProjectedTotalTokens: int(float64(block.TotalTokens()) + rate.TokensPerMinute*remainingMinutes),
		ProjectedTotalCost:   block.CostUSD + costPerMinute*remainingMinutes,
		RemainingMinutes:     int(remainingMinutes),
	}
}

// Hourly returns the tokens-per-minute rate over the hour ending at now.
//
// Each non-gap block's tokens are spread uniformly over
// [StartTime, end], where end is now for the active block and the last
// event otherwise. The share falling inside [now-1h, now] is summed across
// blocks and divided by 60. Blocks outside the window contribute nothing.
func Hourly(blocks []usage.SessionBlock, now time.Time) float64 {
	windowStart := now.Add(-trailingWindow)
	var tokens float64

	for _, b := range blocks {
		if b.IsGap {
			continue
		}

		start := b.StartTime
		end := b.EndOr(now)
		if b.IsActive {
			end = now
		}

		span := end.Sub(start)
		if span <= 0 {
			continue
		}

		from := laterOf(start, windowStart)
		to := earlierOf(end, now)
		overlap := to.Sub(from)
		if overlap <= 0 {
			continue
		}

		tokens += float64(b.TotalTokens()) * (overlap.Seconds() / span.Seconds())
	}

	return tokens / trailingWindow.Minutes()
}

// Enrich pairs every block with its burn rate and projection.
func Enrich(blocks []usage.SessionBlock, now time.Time) []usage.EnrichedBlock {
	out := make([]usage.EnrichedBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, usage.EnrichedBlock{
			Block:      b,
			BurnRate:   Calculate(b),
			Projection: Project(b, now),
		})
	}
	return out
}

// Active returns the enriched active block, or nil when no block is active.
func Active(blocks []usage.SessionBlock, now time.Time) *usage.EnrichedBlock {
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].IsActive && !blocks[i].IsGap {
			return &usage.EnrichedBlock{
				Block:      blocks[i],
				BurnRate:   Calculate(blocks[i]),
				Projection: Project(blocks[i], now),
			}
		}
	}
	return nil
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
