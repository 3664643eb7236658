// Package blocks partitions a stream of usage events into fixed-duration
// session blocks.
//
// The first block starts at the first event's timestamp floored to the
// hour. Each event joins the current block while it falls inside
// [start, start+duration); otherwise the block is closed and a new one is
// opened at the hour containing the event. Idle periods between blocks are
// covered by explicit gap blocks so the returned blocks tile the timeline.
//
// Example usage:
//
//	engine, err := blocks.New(blocks.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sessionBlocks, err := engine.Build(events, time.Now())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, b := range sessionBlocks {
//	    fmt.Printf("%s active=%v tokens=%d\n", b.ID, b.IsActive, b.TotalTokens())
//	}
package blocks

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// gapIDPrefix marks the IDs of gap blocks.
const gapIDPrefix = "gap-"

// Engine builds session blocks from usage events.
type Engine interface {
	// Build partitions events into session blocks.
	//
	// Parameters:
	//   - events: Usage events in any order
	//   - now: Wall-clock time used to decide whether the last block is active
	//
	// Returns:
	//   - Blocks in ascending start order, gap blocks included
	//   - usage.ErrMissingTimestamp if any event has a zero timestamp
	//
	// Events are sorted with a stable sort on a copy; the input slice is
	// never modified. Empty input returns an empty slice.
	//
	// Thread-safety: Build keeps no state between calls.
	Build(events []usage.Event, now time.Time) ([]usage.SessionBlock, error)

	// Duration returns the nominal block duration.
	Duration() time.Duration
}

// Config contains engine configuration.
type Config struct {
	// Duration is the nominal block length. Must be a whole number of hours.
	// Default: 5h.
	Duration time.Duration
}

// engine implements the Engine interface.
type engine struct {
	duration time.Duration
}

// New creates a new windowing engine.
func New(cfg Config) (Engine, error) {
	if cfg.Duration == 0 {
		cfg.Duration = usage.DefaultBlockDuration
	}
	if cfg.Duration < time.Hour || cfg.Duration%time.Hour != 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDuration, cfg.Duration)
	}

	return &engine{duration: cfg.Duration}, nil
}

// Build is a convenience function that partitions events using the default
// 5-hour block duration.
func Build(events []usage.Event, now time.Time) ([]usage.SessionBlock, error) {
	return (&engine{duration: usage.DefaultBlockDuration}).Build(events, now)
}

// Duration implements Engine.Duration.
func (e *engine) Duration() time.Duration {
	return e.duration
}

// Build implements Engine.Build.
func (e *engine) Build(events []usage.Event, now time.Time) ([]usage.SessionBlock, error) {
	if len(events) == 0 {
		return []usage.SessionBlock{}, nil
	}

	sorted := make([]usage.Event, len(events))
	copy(sorted, events)
	for i := range sorted {
		if sorted[i].Timestamp.IsZero() {
			return nil, fmt.Errorf("%w: event %d", usage.ErrMissingTimestamp, i)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	result := make([]usage.SessionBlock, 0, 4)
	var current *accumulator

	for _, ev := range sorted {
		ts := ev.Timestamp.UTC()

		if current != nil && !ts.Before(current.end) {
			closed := current.block()
			result = append(result, closed)

			next := floorHour(ts)
			result = append(result, e.gaps(closed.EndTime, next)...)
			current = nil
		}

		if current == nil {
			current = newAccumulator(floorHour(ts), e.duration)
		}
		current.add(ev)
	}

	last := current.block()
	last.IsActive = now.Before(last.EndTime)
	result = append(result, last)

	return result, nil
}

// gaps returns the gap blocks covering [from, to). A positive hole of H is
// split into max(1, H/duration) blocks; the last one absorbs the remainder.
func (e *engine) gaps(from, to time.Time) []usage.SessionBlock {
	hole := to.Sub(from)
	if hole <= 0 {
		return nil
	}

	n := int(hole / e.duration)
	if n < 1 {
		n = 1
	}

	out := make([]usage.SessionBlock, 0, n)
	for i := 0; i < n; i++ {
		start := from.Add(time.Duration(i) * e.duration)
		end := start.Add(e.duration)
		if i == n-1 {
			end = to
		}

		out = append(out, usage.SessionBlock{
			ID:            gapIDPrefix + start.Format(time.RFC3339),
			StartTime:     start,
			EndTime:       end,
			IsGap:         true,
			Entries:       []usage.Event{},
			PerModelStats: map[string]usage.ModelStats{},
			Models:        []string{},
		})
	}

	return out
}

// accumulator collects events for one open block.
type accumulator struct {
	start   time.Time
	end     time.Time
	entries []usage.Event
	tokens  usage.TokenCounts
	cost    float64
	models  map[string]usage.ModelStats
	last    time.Time
}

func newAccumulator(start time.Time, d time.Duration) *accumulator {
	return &accumulator{
		start:  start,
		end:    start.Add(d),
		models: make(map[string]usage.ModelStats),
	}
}

func (a *accumulator) add(ev usage.Event) {
	a.entries = append(a.entries, ev)
	a.tokens = a.tokens.Add(ev.Tokens)
	a.cost += ev.CostUSD

	ms := a.models[ev.Model]
	ms.Tokens = ms.Tokens.Add(ev.Tokens)
	ms.CostUSD += ev.CostUSD
	ms.EntryCount++
	a.models[ev.Model] = ms

	a.last = ev.Timestamp.UTC()
}

// block materializes the accumulated state as a closed, inactive block.
func (a *accumulator) block() usage.SessionBlock {
	last := a.last
	models := lo.Keys(a.models)
	sort.Strings(models)

	return usage.SessionBlock{
		ID:            a.start.Format(time.RFC3339),
		StartTime:     a.start,
		EndTime:       a.end,
		ActualEndTime: &last,
		Entries:       a.entries,
		TokenCounts:   a.tokens,
		CostUSD:       a.cost,
		PerModelStats: a.models,
		Models:        models,
	}
}

// floorHour truncates t to the start of its UTC hour.
func floorHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
