package aggregator

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// dateLayout formats UTC calendar dates.
const dateLayout = "2006-01-02"

// rollupKey identifies one calendar bucket × model.
type rollupKey struct {
	bucket time.Time
	model  string
}

// rollupValue accumulates one bucket.
type rollupValue struct {
	tokens usage.TokenCounts
	cost   float64
	count  int
}

// Daily groups events by UTC calendar date and model.
//
// Parameters:
//   - events: Usage events in any order
//   - start, end: Optional inclusive date bounds (only the UTC date part is
//     used); nil means unbounded
//
// Returns rollups ordered by date ascending, then by model name.
func Daily(events []usage.Event, start, end *time.Time) []DailyRollup {
	buckets := rollup(events, dayOf, boundsOf(start, end, dayOf))

	out := make([]DailyRollup, 0, len(buckets))
	for _, key := range sortedKeys(buckets) {
		v := buckets[key]
		out = append(out, DailyRollup{
			Date:       key.bucket.Format(dateLayout),
			Model:      key.model,
			Tokens:     v.tokens,
			CostUSD:    v.cost,
			EntryCount: v.count,
		})
	}
	return out
}

// Monthly groups events by UTC (year, month) and model.
//
// Bounds are inclusive at month granularity. Ordering matches Daily.
func Monthly(events []usage.Event, start, end *time.Time) []MonthlyRollup {
	buckets := rollup(events, monthOf, boundsOf(start, end, monthOf))

	out := make([]MonthlyRollup, 0, len(buckets))
	for _, key := range sortedKeys(buckets) {
		v := buckets[key]
		out = append(out, MonthlyRollup{
			Year:       key.bucket.Year(),
			Month:      key.bucket.Month(),
			Model:      key.model,
			Tokens:     v.tokens,
			CostUSD:    v.cost,
			EntryCount: v.count,
		})
	}
	return out
}

// Summarize returns the overall totals of events.
func Summarize(events []usage.Event) Summary {
	s := Summary{Models: []string{}}
	models := make(map[string]struct{})

	for _, ev := range events {
		s.Tokens = s.Tokens.Add(ev.Tokens)
		s.CostUSD += ev.CostUSD
		s.EntryCount++
		models[modelOf(ev)] = struct{}{}

		ts := ev.Timestamp.UTC()
		if s.FirstSeen.IsZero() || ts.Before(s.FirstSeen) {
			s.FirstSeen = ts
		}
		if s.LastSeen.IsZero() || ts.After(s.LastSeen) {
			s.LastSeen = ts
		}
	}

	if len(models) > 0 {
		s.Models = lo.Keys(models)
		sort.Strings(s.Models)
	}
	return s
}

// ByModel returns per-model totals sorted by cost descending, then by
// model name.
func ByModel(events []usage.Event) []ModelBreakdown {
	grouped := lo.GroupBy(events, modelOf)

	out := make([]ModelBreakdown, 0, len(grouped))
	for model, evs := range grouped {
		b := ModelBreakdown{Model: model}
		for _, ev := range evs {
			b.Tokens = b.Tokens.Add(ev.Tokens)
			b.CostUSD += ev.CostUSD
			b.EntryCount++
		}
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CostUSD != out[j].CostUSD {
			return out[i].CostUSD > out[j].CostUSD
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// ResetWindow describes the trailing usage window ending at now.
//
// The window opens at the oldest event within (now-window, now]; the
// limit resets window after that event. An empty window yields a zero
// ResetInfo.
func ResetWindow(events []usage.Event, now time.Time, window time.Duration) ResetInfo {
	if window <= 0 {
		window = usage.DefaultBlockDuration
	}
	cutoff := now.Add(-window)

	var info ResetInfo
	for _, ev := range events {
		if !ev.Timestamp.After(cutoff) || ev.Timestamp.After(now) {
			continue
		}
		if info.WindowStart.IsZero() || ev.Timestamp.Before(info.WindowStart) {
			info.WindowStart = ev.Timestamp.UTC()
		}
		info.Tokens += ev.Tokens.Total()
		info.CostUSD += ev.CostUSD
		info.EntryCount++
	}

	if info.EntryCount == 0 {
		return ResetInfo{}
	}

	info.ResetAt = info.WindowStart.Add(window)
	info.MinutesUntilReset = max(0, int(info.ResetAt.Sub(now).Minutes()))
	return info
}

// rollup sums events into calendar buckets, skipping those outside bounds.
func rollup(events []usage.Event, bucketOf func(time.Time) time.Time, inBounds func(time.Time) bool) map[rollupKey]*rollupValue {
	buckets := make(map[rollupKey]*rollupValue)

	for _, ev := range events {
		bucket := bucketOf(ev.Timestamp)
		if !inBounds(bucket) {
			continue
		}

		key := rollupKey{bucket: bucket, model: modelOf(ev)}
		v, ok := buckets[key]
		if !ok {
			v = &rollupValue{}
			buckets[key] = v
		}
		v.tokens = v.tokens.Add(ev.Tokens)
		v.cost += ev.CostUSD
		v.count++
	}

	return buckets
}

// boundsOf builds an inclusive bucket filter from optional bounds.
func boundsOf(start, end *time.Time, bucketOf func(time.Time) time.Time) func(time.Time) bool {
	var first, last time.Time
	if start != nil {
		first = bucketOf(*start)
	}
	if end != nil {
		last = bucketOf(*end)
	}

	return func(bucket time.Time) bool {
		if start != nil && bucket.Before(first) {
			return false
		}
		if end != nil && bucket.After(last) {
			return false
		}
		return true
	}
}

func sortedKeys(buckets map[rollupKey]*rollupValue) []rollupKey {
	keys := lo.Keys(buckets)
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].bucket.Equal(keys[j].bucket) {
			return keys[i].bucket.Before(keys[j].bucket)
		}
		return keys[i].model < keys[j].model
	})
	return keys
}

func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func monthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func modelOf(ev usage.Event) string {
	if ev.Model == "" {
		return usage.UnknownModel
	}
	return ev.Model
}
