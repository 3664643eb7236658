package aggregator

import (
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// aggregator implements the Aggregator interface.
type aggregator struct {
	config Config

	mu      sync.RWMutex
	overall *group
	groups  map[string]*group
}

// group holds statistics for one dimension combination.
type group struct {
	counts   []int
	sessions map[string]struct{}
	models   map[string]struct{}
	stats    Statistics
}

func newGroup() *group {
	return &group{
		counts:   make([]int, 0),
		sessions: make(map[string]struct{}),
		models:   make(map[string]struct{}),
	}
}

// New creates a new aggregator.
func New(cfg Config) Aggregator {
	return &aggregator{
		config:  cfg,
		overall: newGroup(),
		groups:  make(map[string]*group),
	}
}

// Add implements Aggregator.Add.
func (a *aggregator) Add(ev usage.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.update(a.overall, ev)

	if len(a.config.GroupBy) > 0 {
		key := a.dimensionKey(ev)
		g, exists := a.groups[key]
		if !exists {
			g = newGroup()
			a.groups[key] = g
		}
		a.update(g, ev)
	}
}

// Stats implements Aggregator.Stats.
func (a *aggregator) Stats() Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.finalize(a.overall)
}

// GroupedStats implements Aggregator.GroupedStats.
func (a *aggregator) GroupedStats() map[string]Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make(map[string]Statistics, len(a.groups))
	for key, g := range a.groups {
		result[key] = a.finalize(g)
	}
	return result
}

// TopSessions implements Aggregator.TopSessions.
func (a *aggregator) TopSessions(n int) []SessionStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sessionIdx := lo.IndexOf(a.config.GroupBy, DimSession)
	if sessionIdx < 0 {
		return nil
	}

	sessions := make(map[string]*SessionStats)
	models := make(map[string]map[string]struct{})

	for key, g := range a.groups {
		parts := strings.Split(key, keySeparator)
		if sessionIdx >= len(parts) {
			continue
		}
		sessionID := parts[sessionIdx]

		if _, ok := models[sessionID]; !ok {
			models[sessionID] = make(map[string]struct{})
		}
		for m := range g.models {
			models[sessionID][m] = struct{}{}
		}

		stats := a.finalize(g)
		if existing, exists := sessions[sessionID]; exists {
			existing.Statistics = mergeStats(existing.Statistics, stats)
			continue
		}
		sessions[sessionID] = &SessionStats{
			SessionID:  sessionID,
			Statistics: stats,
		}
	}

	result := make([]SessionStats, 0, len(sessions))
	for id, s := range sessions {
		s.Models = lo.Keys(models[id])
		sort.Strings(s.Models)
		s.Statistics.SessionCount = 1
		result = append(result, *s)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Statistics.TotalTokens != result[j].Statistics.TotalTokens {
			return result[i].Statistics.TotalTokens > result[j].Statistics.TotalTokens
		}
		return result[i].SessionID < result[j].SessionID
	})

	if n > 0 && n < len(result) {
		result = result[:n]
	}

	return result
}

// Reset implements Aggregator.Reset.
func (a *aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.overall = newGroup()
	a.groups = make(map[string]*group)
}

// update folds one event into a group.
func (a *aggregator) update(g *group, ev usage.Event) {
	total := ev.Tokens.Total()
	stats := &g.stats

	stats.Count++
	stats.Tokens = stats.Tokens.Add(ev.Tokens)
	stats.TotalTokens = stats.Tokens.Total()
	stats.CostUSD += ev.CostUSD
	stats.AvgTokens = float64(stats.TotalTokens) / float64(stats.Count)

	if stats.Count == 1 {
		stats.MinTokens = total
		stats.MaxTokens = total
	} else {
		stats.MinTokens = min(stats.MinTokens, total)
		stats.MaxTokens = max(stats.MaxTokens, total)
	}

	if stats.FirstSeen.IsZero() || ev.Timestamp.Before(stats.FirstSeen) {
		stats.FirstSeen = ev.Timestamp
	}
	if stats.LastSeen.IsZero() || ev.Timestamp.After(stats.LastSeen) {
		stats.LastSeen = ev.Timestamp
	}

	if ev.SessionID != "" {
		g.sessions[ev.SessionID] = struct{}{}
	}
	g.models[ev.Model] = struct{}{}

	if a.config.TrackPercentiles {
		g.counts = append(g.counts, total)
	}
}

// finalize returns a copy of the group's statistics with derived fields.
func (a *aggregator) finalize(g *group) Statistics {
	stats := g.stats
	stats.SessionCount = len(g.sessions)

	if a.config.TrackPercentiles && len(g.counts) > 0 {
		values := lo.Map(g.counts, func(c int, _ int) float64 { return float64(c) })
		sort.Float64s(values)

		stats.P50Tokens = int(Percentile(values, 50))
		stats.P95Tokens = int(Percentile(values, 95))
		stats.P99Tokens = int(Percentile(values, 99))
	}

	return stats
}

// dimensionKey creates a unique key for the configured dimensions.
func (a *aggregator) dimensionKey(ev usage.Event) string {
	parts := make([]string, 0, len(a.config.GroupBy))
	ts := ev.Timestamp.UTC()

	for _, dim := range a.config.GroupBy {
		switch dim {
		case DimModel:
			parts = append(parts, ev.Model)
		case DimSession:
			parts = append(parts, ev.SessionID)
		case DimProject:
			parts = append(parts, ev.ProjectPath)
		case DimDate:
			parts = append(parts, ts.Format(dateLayout))
		case DimHour:
			parts = append(parts, ts.Format("2006-01-02 15:00"))
		}
	}

	return strings.Join(parts, keySeparator)
}

// mergeStats merges two Statistics values. Percentiles are not mergeable
// and are taken from the larger side.
func mergeStats(s1, s2 Statistics) Statistics {
	result := Statistics{
		Count:   s1.Count + s2.Count,
		Tokens:  s1.Tokens.Add(s2.Tokens),
		CostUSD: s1.CostUSD + s2.CostUSD,
	}
	result.TotalTokens = result.Tokens.Total()
	if result.Count > 0 {
		result.AvgTokens = float64(result.TotalTokens) / float64(result.Count)
	}

	result.MinTokens = min(s1.MinTokens, s2.MinTokens)
	result.MaxTokens = max(s1.MaxTokens, s2.MaxTokens)

	larger := s1
	if s2.Count > s1.Count {
		larger = s2
	}
	result.P50Tokens = larger.P50Tokens
	result.P95Tokens = larger.P95Tokens
	result.P99Tokens = larger.P99Tokens

	result.FirstSeen = s1.FirstSeen
	if s2.FirstSeen.Before(s1.FirstSeen) {
		result.FirstSeen = s2.FirstSeen
	}
	result.LastSeen = s1.LastSeen
	if s2.LastSeen.After(s1.LastSeen) {
		result.LastSeen = s2.LastSeen
	}

	return result
}
