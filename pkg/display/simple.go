package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/analysis"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/monitor"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// simpleFormatter writes one line per item.
type simpleFormatter struct {
	config Config
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *simpleFormatter) FormatBlocks(w io.Writer, blocks []usage.EnrichedBlock, limit int) error {
	for _, eb := range blocks {
		b := eb.Block
		if b.IsGap {
			if _, err := fmt.Fprintf(w, "%s gap until %s\n", formatTime(b.StartTime), formatTime(b.EndTime)); err != nil {
				return err
			}
			continue
		}

		line := fmt.Sprintf("%s %s tokens %s", formatTime(b.StartTime), formatNumber(b.TotalTokens()), formatCost(b.CostUSD))
		if limit > 0 {
			line += fmt.Sprintf(" (%s%% of limit)", formatFloat(float64(b.TotalTokens())*100/float64(limit), 1))
		}
		if b.IsActive {
			line += " [active]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// FormatDaily implements Formatter.FormatDaily.
func (f *simpleFormatter) FormatDaily(w io.Writer, rows []aggregator.DailyRollup) error {
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s %s: %s tokens, %s (%d entries)\n",
			r.Date, r.Model, formatNumber(r.Tokens.Total()), formatCost(r.CostUSD), r.EntryCount); err != nil {
			return err
		}
	}
	return nil
}

// FormatMonthly implements Formatter.FormatMonthly.
func (f *simpleFormatter) FormatMonthly(w io.Writer, rows []aggregator.MonthlyRollup) error {
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s %s: %s tokens, %s (%d entries)\n",
			r.Key(), r.Model, formatNumber(r.Tokens.Total()), formatCost(r.CostUSD), r.EntryCount); err != nil {
			return err
		}
	}
	return nil
}

// FormatSummary implements Formatter.FormatSummary.
func (f *simpleFormatter) FormatSummary(w io.Writer, s aggregator.Summary) error {
	_, err := fmt.Fprintf(w, "Entries: %d | Tokens: %s | Cost: %s | Models: %s\n",
		s.EntryCount, formatNumber(s.Tokens.Total()), formatCost(s.CostUSD), strings.Join(s.Models, ","))
	return err
}

// FormatModels implements Formatter.FormatModels.
func (f *simpleFormatter) FormatModels(w io.Writer, rows []aggregator.ModelBreakdown) error {
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s: %s tokens, %s (%d entries)\n",
			r.Model, formatNumber(r.Tokens.Total()), formatCost(r.CostUSD), r.EntryCount); err != nil {
			return err
		}
	}
	return nil
}

// FormatReset implements Formatter.FormatReset.
func (f *simpleFormatter) FormatReset(w io.Writer, info aggregator.ResetInfo) error {
	if info.EntryCount == 0 {
		_, err := fmt.Fprintln(w, "No usage in the current window")
		return err
	}
	_, err := fmt.Fprintf(w, "Resets at %s (in %d min) | Tokens: %s | Cost: %s\n",
		formatTime(info.ResetAt), info.MinutesUntilReset, formatNumber(info.Tokens), formatCost(info.CostUSD))
	return err
}

// FormatStats implements Formatter.FormatStats.
func (f *simpleFormatter) FormatStats(w io.Writer, stats aggregator.Statistics) error {
	_, err := fmt.Fprintf(w, "Entries: %d | Sessions: %d | Total: %s | Avg: %s | Min: %s | Max: %s\n",
		stats.Count,
		stats.SessionCount,
		formatNumber(stats.TotalTokens),
		formatFloat(stats.AvgTokens, 1),
		formatNumber(stats.MinTokens),
		formatNumber(stats.MaxTokens))
	return err
}

// FormatGroupedStats implements Formatter.FormatGroupedStats.
func (f *simpleFormatter) FormatGroupedStats(w io.Writer, grouped map[string]aggregator.Statistics, dimensions []string) error {
	if len(dimensions) == 0 {
		return ErrNoDimensions
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		stats := grouped[key]
		if _, err := fmt.Fprintf(w, "%s: %d entries, %s tokens (avg: %s)\n",
			key, stats.Count, formatNumber(stats.TotalTokens), formatFloat(stats.AvgTokens, 1)); err != nil {
			return err
		}
	}
	return nil
}

// FormatTopSessions implements Formatter.FormatTopSessions.
func (f *simpleFormatter) FormatTopSessions(w io.Writer, sessions []aggregator.SessionStats) error {
	for i, s := range sessions {
		if _, err := fmt.Fprintf(w, "#%d: %s (%s) - %s tokens in %d entries\n",
			i+1, s.SessionID, strings.Join(s.Models, ","),
			formatNumber(s.Statistics.TotalTokens), s.Statistics.Count); err != nil {
			return err
		}
	}
	return nil
}

// FormatReport implements Formatter.FormatReport.
func (f *simpleFormatter) FormatReport(w io.Writer, r analysis.Report) error {
	limit := "-"
	if r.P90Limit != nil {
		limit = formatNumber(*r.P90Limit)
	}
	_, err := fmt.Fprintf(w, "Sessions: %d | Avg tokens/h: %s | Total cost: %s | P90 limit: %s\n",
		r.Patterns.SessionCount, formatFloat(r.Trend.AvgTokensPerHour, 1), formatCost(r.Cost.TotalCost), limit)
	return err
}

// FormatSessions implements Formatter.FormatSessions.
func (f *simpleFormatter) FormatSessions(w io.Writer, sessions []discovery.SessionFile) error {
	for _, s := range sessions {
		if _, err := fmt.Fprintf(w, "%s %s\n", sessionLabel(s), s.DecodedPath); err != nil {
			return err
		}
	}
	return nil
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *simpleFormatter) FormatSnapshot(w io.Writer, s monitor.Snapshot) error {
	line := fmt.Sprintf("%s tokens: %s cost: %s rate: %s tok/min limit: %s",
		formatTime(s.Timestamp),
		formatNumber(s.Summary.Tokens.Total()),
		formatCost(s.Summary.CostUSD),
		formatFloat(s.HourlyBurnRate, 1),
		formatNumber(s.P90Limit))
	if s.Active != nil {
		line += fmt.Sprintf(" block: %s", formatNumber(s.Active.Block.TotalTokens()))
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
