package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/analysis"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/monitor"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// blocksDocument is the JSON shape of FormatBlocks.
type blocksDocument struct {
	Limit  int                   `json:"limit,omitempty"`
	Blocks []usage.EnrichedBlock `json:"blocks"`
}

func (f *jsonFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *jsonFormatter) FormatBlocks(w io.Writer, blocks []usage.EnrichedBlock, limit int) error {
	if blocks == nil {
		blocks = []usage.EnrichedBlock{}
	}
	return f.encode(w, blocksDocument{Limit: limit, Blocks: blocks})
}

// FormatDaily implements Formatter.FormatDaily.
func (f *jsonFormatter) FormatDaily(w io.Writer, rows []aggregator.DailyRollup) error {
	if rows == nil {
		rows = []aggregator.DailyRollup{}
	}
	return f.encode(w, rows)
}

// FormatMonthly implements Formatter.FormatMonthly.
func (f *jsonFormatter) FormatMonthly(w io.Writer, rows []aggregator.MonthlyRollup) error {
	if rows == nil {
		rows = []aggregator.MonthlyRollup{}
	}
	return f.encode(w, rows)
}

// FormatSummary implements Formatter.FormatSummary.
func (f *jsonFormatter) FormatSummary(w io.Writer, s aggregator.Summary) error {
	return f.encode(w, s)
}

// FormatModels implements Formatter.FormatModels.
func (f *jsonFormatter) FormatModels(w io.Writer, rows []aggregator.ModelBreakdown) error {
	if rows == nil {
		rows = []aggregator.ModelBreakdown{}
	}
	return f.encode(w, rows)
}

// FormatReset implements Formatter.FormatReset.
func (f *jsonFormatter) FormatReset(w io.Writer, info aggregator.ResetInfo) error {
	return f.encode(w, info)
}

// FormatStats implements Formatter.FormatStats.
func (f *jsonFormatter) FormatStats(w io.Writer, stats aggregator.Statistics) error {
	return f.encode(w, stats)
}

// FormatGroupedStats implements Formatter.FormatGroupedStats.
func (f *jsonFormatter) FormatGroupedStats(w io.Writer, grouped map[string]aggregator.Statistics, dimensions []string) error {
	if len(dimensions) == 0 {
		return ErrNoDimensions
	}
	return f.encode(w, grouped)
}

// FormatTopSessions implements Formatter.FormatTopSessions.
func (f *jsonFormatter) FormatTopSessions(w io.Writer, sessions []aggregator.SessionStats) error {
	if sessions == nil {
		sessions = []aggregator.SessionStats{}
	}
	return f.encode(w, sessions)
}

// FormatReport implements Formatter.FormatReport.
func (f *jsonFormatter) FormatReport(w io.Writer, r analysis.Report) error {
	return f.encode(w, r)
}

// FormatSessions implements Formatter.FormatSessions.
func (f *jsonFormatter) FormatSessions(w io.Writer, sessions []discovery.SessionFile) error {
	if sessions == nil {
		sessions = []discovery.SessionFile{}
	}
	return f.encode(w, sessions)
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *jsonFormatter) FormatSnapshot(w io.Writer, s monitor.Snapshot) error {
	return f.encode(w, s)
}
