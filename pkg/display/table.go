package display

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/analysis"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/monitor"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *tableFormatter) FormatBlocks(w io.Writer, blocks []usage.EnrichedBlock, limit int) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Session Blocks", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Start (UTC)", "Status", "Models", "Tokens", "Cost", "Burn Rate"}
	if limit > 0 {
		header = append(header, "% Limit")
	}

	rows := make([][]string, 0, len(blocks))
	highlight := make(map[int]bool)
	for _, eb := range blocks {
		b := eb.Block
		status := "closed"
		switch {
		case b.IsGap:
			status = "gap"
		case b.IsActive:
			status = "ACTIVE"
			highlight[len(rows)] = true
		}

		rate := "-"
		if eb.BurnRate != nil {
			rate = formatFloat(eb.BurnRate.TokensPerMinute, 1) + " tok/min"
		}

		row := []string{
			formatTime(b.StartTime),
			status,
			strings.Join(b.Models, ", "),
			formatNumber(b.TotalTokens()),
			formatCost(b.CostUSD),
			rate,
		}
		if limit > 0 {
			row = append(row, formatFloat(float64(b.TotalTokens())*100/float64(limit), 1)+"%")
		}
		rows = append(rows, row)
	}

	return f.writeTable(w, st, header, rows, highlight)
}

// FormatDaily implements Formatter.FormatDaily.
func (f *tableFormatter) FormatDaily(w io.Writer, rows []aggregator.DailyRollup) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Daily Usage", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Date", "Model", "Input", "Output", "Cache Write", "Cache Read", "Total", "Cost"}
	cells := make([][]string, 0, len(rows)+1)
	var total usage.TokenCounts
	var cost float64
	for _, r := range rows {
		cells = append(cells, append([]string{r.Date, r.Model}, tokenCells(r.Tokens, r.CostUSD)...))
		total = total.Add(r.Tokens)
		cost += r.CostUSD
	}
	if len(rows) > 0 {
		cells = append(cells, append([]string{"Total", ""}, tokenCells(total, cost)...))
	}

	return f.writeTable(w, st, header, cells, nil)
}

// FormatMonthly implements Formatter.FormatMonthly.
func (f *tableFormatter) FormatMonthly(w io.Writer, rows []aggregator.MonthlyRollup) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Monthly Usage", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Month", "Model", "Input", "Output", "Cache Write", "Cache Read", "Total", "Cost"}
	cells := make([][]string, 0, len(rows)+1)
	var total usage.TokenCounts
	var cost float64
	for _, r := range rows {
		cells = append(cells, append([]string{r.Key(), r.Model}, tokenCells(r.Tokens, r.CostUSD)...))
		total = total.Add(r.Tokens)
		cost += r.CostUSD
	}
	if len(rows) > 0 {
		cells = append(cells, append([]string{"Total", ""}, tokenCells(total, cost)...))
	}

	return f.writeTable(w, st, header, cells, nil)
}

// FormatSummary implements Formatter.FormatSummary.
func (f *tableFormatter) FormatSummary(w io.Writer, s aggregator.Summary) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Usage Summary", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Entries", formatNumber(s.EntryCount)},
		{"Input Tokens", formatNumber(s.Tokens.Input)},
		{"Output Tokens", formatNumber(s.Tokens.Output)},
		{"Cache Write Tokens", formatNumber(s.Tokens.CacheCreation)},
		{"Cache Read Tokens", formatNumber(s.Tokens.CacheRead)},
		{"Total Tokens", formatNumber(s.Tokens.Total())},
		{"Cost", formatCost(s.CostUSD)},
		{"First Seen", formatTime(s.FirstSeen)},
		{"Last Seen", formatTime(s.LastSeen)},
		{"Models", strings.Join(s.Models, ", ")},
	}
	if s.EntryCount == 0 {
		rows = nil
	}

	return f.writeTable(w, st, []string{"Metric", "Value"}, rows, nil)
}

// FormatModels implements Formatter.FormatModels.
func (f *tableFormatter) FormatModels(w io.Writer, rows []aggregator.ModelBreakdown) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Usage by Model", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Model", "Entries", "Input", "Output", "Cache Write", "Cache Read", "Total", "Cost"}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, append([]string{r.Model, formatNumber(r.EntryCount)}, tokenCells(r.Tokens, r.CostUSD)...))
	}

	return f.writeTable(w, st, header, cells, nil)
}

// FormatReset implements Formatter.FormatReset.
func (f *tableFormatter) FormatReset(w io.Writer, info aggregator.ResetInfo) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Usage Window", f.config.Compact); err != nil {
		return err
	}

	if info.EntryCount == 0 {
		_, err := fmt.Fprintln(w, "No usage in the current window")
		return err
	}

	rows := [][]string{
		{"Window Start", formatTime(info.WindowStart)},
		{"Resets At", formatTime(info.ResetAt)},
		{"Minutes Until Reset", formatNumber(info.MinutesUntilReset)},
		{"Tokens", formatNumber(info.Tokens)},
		{"Cost", formatCost(info.CostUSD)},
		{"Entries", formatNumber(info.EntryCount)},
	}

	return f.writeTable(w, st, []string{"Metric", "Value"}, rows, nil)
}

// FormatStats implements Formatter.FormatStats.
func (f *tableFormatter) FormatStats(w io.Writer, stats aggregator.Statistics) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Token Usage Statistics", f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Entries", formatNumber(stats.Count)},
		{"Sessions", formatNumber(stats.SessionCount)},
		{"Total Tokens", formatNumber(stats.TotalTokens)},
		{"Input Tokens", formatNumber(stats.Tokens.Input)},
		{"Output Tokens", formatNumber(stats.Tokens.Output)},
		{"Cost", formatCost(stats.CostUSD)},
		{"Average Tokens", formatFloat(stats.AvgTokens, 2)},
		{"Min Tokens", formatNumber(stats.MinTokens)},
		{"Max Tokens", formatNumber(stats.MaxTokens)},
	}

	if f.config.ShowPercentiles {
		rows = append(rows,
			[]string{"P50 Tokens", formatNumber(stats.P50Tokens)},
			[]string{"P95 Tokens", formatNumber(stats.P95Tokens)},
			[]string{"P99 Tokens", formatNumber(stats.P99Tokens)},
		)
	}

	if !stats.FirstSeen.IsZero() {
		rows = append(rows,
			[]string{"First Seen", formatTime(stats.FirstSeen)},
			[]string{"Last Seen", formatTime(stats.LastSeen)},
		)
	}

	return f.writeTable(w, st, []string{"Metric", "Value"}, rows, nil)
}

// FormatGroupedStats implements Formatter.FormatGroupedStats.
func (f *tableFormatter) FormatGroupedStats(w io.Writer, grouped map[string]aggregator.Statistics, dimensions []string) error {
	if len(dimensions) == 0 {
		return ErrNoDimensions
	}

	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Grouped Statistics", f.config.Compact); err != nil {
		return err
	}

	header := append(append([]string{}, dimensions...), "Entries", "Total", "Cost", "Avg", "Min/Max")

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		stats := grouped[key]
		row := make([]string, len(dimensions), len(header))
		copy(row, strings.Split(key, "|"))
		row = append(row,
			formatNumber(stats.Count),
			formatNumber(stats.TotalTokens),
			formatCost(stats.CostUSD),
			formatFloat(stats.AvgTokens, 1),
			formatNumber(stats.MinTokens)+"/"+formatNumber(stats.MaxTokens),
		)
		rows = append(rows, row)
	}

	return f.writeTable(w, st, header, rows, nil)
}

// FormatTopSessions implements Formatter.FormatTopSessions.
func (f *tableFormatter) FormatTopSessions(w io.Writer, sessions []aggregator.SessionStats) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Top Sessions by Token Usage", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Rank", "Session ID", "Models", "Entries", "Total Tokens", "Cost"}
	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		rows[i] = []string{
			fmt.Sprintf("#%d", i+1),
			s.SessionID,
			strings.Join(s.Models, ", "),
			formatNumber(s.Statistics.Count),
			formatNumber(s.Statistics.TotalTokens),
			formatCost(s.Statistics.CostUSD),
		}
	}

	return f.writeTable(w, st, header, rows, nil)
}

// FormatReport implements Formatter.FormatReport.
func (f *tableFormatter) FormatReport(w io.Writer, r analysis.Report) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Block Analysis", f.config.Compact); err != nil {
		return err
	}

	limit := "-"
	if r.P90Limit != nil {
		limit = formatNumber(*r.P90Limit)
	}

	rows := [][]string{
		{"Sessions", formatNumber(r.Patterns.SessionCount)},
		{"Active Sessions", formatNumber(r.Trend.ActiveSessions)},
		{"Avg Tokens / Hour", formatFloat(r.Trend.AvgTokensPerHour, 1)},
		{"Peak Tokens / Hour", formatFloat(r.Trend.PeakTokensPerHour, 1)},
		{"Avg Session Minutes", formatFloat(r.Patterns.AvgSessionMinutes, 1)},
		{"Avg Tokens / Session", formatFloat(r.Patterns.AvgTokensPerSession, 1)},
		{"Completion Rate", formatFloat(r.Patterns.CompletionRate*100, 1) + "%"},
		{"Total Cost", formatCost(r.Cost.TotalCost)},
		{"Avg Cost / Session", formatCost(r.Cost.AvgCostPerSession)},
		{"Cost / Hour", formatCost(r.Cost.CostPerHour)},
		{"P90 Limit", limit},
	}

	return f.writeTable(w, st, []string{"Metric", "Value"}, rows, nil)
}

// FormatSessions implements Formatter.FormatSessions.
func (f *tableFormatter) FormatSessions(w io.Writer, sessions []discovery.SessionFile) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Conversation Logs", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Session ID", "Project", "Size", "Modified (UTC)"}
	rows := make([][]string, len(sessions))
	for i, s := range sessions {
		rows[i] = []string{
			sessionLabel(s),
			s.DecodedPath,
			humanize.IBytes(uint64(max(s.Size, 0))), // nolint:gosec
			formatTime(s.ModTime),
		}
	}

	return f.writeTable(w, st, header, rows, nil)
}

// sessionLabel names a log by session, marking subagent logs.
func sessionLabel(s discovery.SessionFile) string {
	id := s.SessionID
	if id == "" {
		id = "-"
	}
	if s.Subagent {
		return id + " (agent)"
	}
	return id
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *tableFormatter) FormatSnapshot(w io.Writer, s monitor.Snapshot) error {
	st := newStyles(w, f.config.Color)
	if err := writeHeader(w, st, "Live Usage · "+formatTime(s.Timestamp), f.config.Compact); err != nil {
		return err
	}

	rows := [][]string{
		{"Total Tokens", formatNumber(s.Summary.Tokens.Total())},
		{"Total Cost", formatCost(s.Summary.CostUSD)},
		{"Hourly Burn Rate", formatFloat(s.HourlyBurnRate, 1) + " tok/min"},
		{"P90 Limit", formatNumber(s.P90Limit)},
		{"New Since Last", fmt.Sprintf("%s entries, %s tokens", formatNumber(s.Delta.NewEvents), formatNumber(s.Delta.Tokens))},
	}

	if a := s.Active; a != nil {
		rows = append(rows,
			[]string{"Active Block", formatTime(a.Block.StartTime) + " → " + formatTime(a.Block.EndTime)},
			[]string{"Block Tokens", formatNumber(a.Block.TotalTokens())},
			[]string{"Block Cost", formatCost(a.Block.CostUSD)},
		)
		if s.P90Limit > 0 {
			rows = append(rows, []string{"Limit Used",
				formatFloat(float64(a.Block.TotalTokens())*100/float64(s.P90Limit), 1) + "%"})
		}
		if a.BurnRate != nil {
			rows = append(rows,
				[]string{"Burn Rate", formatFloat(a.BurnRate.TokensPerMinute, 1) + " tok/min"},
				[]string{"Cost Rate", formatCost(a.BurnRate.CostPerHour) + "/h"},
			)
		}
		if p := a.Projection; p != nil {
			rows = append(rows,
				[]string{"Projected Tokens", formatNumber(p.ProjectedTotalTokens)},
				[]string{"Projected Cost", formatCost(p.ProjectedTotalCost)},
				[]string{"Minutes Remaining", formatNumber(p.RemainingMinutes)},
			)
		}
	} else {
		rows = append(rows, []string{"Active Block", "none"})
	}

	return f.writeTable(w, st, []string{"Metric", "Value"}, rows, nil)
}

func tokenCells(t usage.TokenCounts, cost float64) []string {
	return []string{
		formatNumber(t.Input),
		formatNumber(t.Output),
		formatNumber(t.CacheCreation),
		formatNumber(t.CacheRead),
		formatNumber(t.Total()),
		formatCost(cost),
	}
}

// writeTable writes an aligned table. Rows listed in highlight are styled
// as active.
func (f *tableFormatter) writeTable(w io.Writer, st styles, header []string, rows [][]string, highlight map[int]bool) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len([]rune(h))
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := len([]rune(cell)); i < len(widths) && n > widths[i] {
				widths[i] = n
			}
		}
	}

	if _, err := fmt.Fprintln(w, st.header.Render(f.joinRow(header, widths))); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if _, err := fmt.Fprintln(w, st.muted.Render(f.joinRow(separator, widths))); err != nil {
			return err
		}
	}

	for i, row := range rows {
		line := f.joinRow(row, widths)
		if highlight[i] {
			line = st.active.Render(line)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}
	return nil
}

// joinRow pads cells to their column widths.
func (f *tableFormatter) joinRow(cells []string, widths []int) string {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		b.WriteString(cell)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", max(widths[i]-len([]rune(cell)), 0)))
		}
	}
	return b.String()
}
