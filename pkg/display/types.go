// Package display renders usage reports as tables, JSON or simple text.
//
// Example usage:
//
//	f := display.New(display.Config{
//	    Format: display.FormatTable,
//	    Color:  display.IsTerminal(os.Stdout),
//	})
//	if err := f.FormatDaily(os.Stdout, aggregator.Daily(events, nil, nil)); err != nil {
//	    return err
//	}
package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/analysis"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/monitor"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays reports as aligned tables.
	FormatTable Format = "table"

	// FormatJSON displays reports as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays reports as one line per item.
	FormatSimple Format = "simple"
)

// ParseFormat validates a format name. The empty string selects FormatTable.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatSimple:
		return Format(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Formatter renders usage reports.
type Formatter interface {
	// FormatBlocks renders session blocks with their burn rates.
	//
	// Parameters:
	//   - w: Output writer
	//   - blocks: Enriched blocks in start order
	//   - limit: Token limit used for the usage percentage (0 hides it)
	FormatBlocks(w io.Writer, blocks []usage.EnrichedBlock, limit int) error

	// FormatDaily renders per-day, per-model rollups.
	FormatDaily(w io.Writer, rows []aggregator.DailyRollup) error

	// FormatMonthly renders per-month, per-model rollups.
	FormatMonthly(w io.Writer, rows []aggregator.MonthlyRollup) error

	// FormatSummary renders overall totals.
	FormatSummary(w io.Writer, s aggregator.Summary) error

	// FormatModels renders the per-model breakdown.
	FormatModels(w io.Writer, rows []aggregator.ModelBreakdown) error

	// FormatReset renders the rolling window reset information.
	FormatReset(w io.Writer, info aggregator.ResetInfo) error

	// FormatStats renders streaming aggregator statistics.
	FormatStats(w io.Writer, stats aggregator.Statistics) error

	// FormatGroupedStats renders statistics keyed by dimension values.
	//
	// Returns ErrNoDimensions when dimensions is empty.
	FormatGroupedStats(w io.Writer, grouped map[string]aggregator.Statistics, dimensions []string) error

	// FormatTopSessions renders the heaviest sessions.
	FormatTopSessions(w io.Writer, sessions []aggregator.SessionStats) error

	// FormatReport renders block analysis results.
	FormatReport(w io.Writer, r analysis.Report) error

	// FormatSessions renders discovered log files.
	FormatSessions(w io.Writer, sessions []discovery.SessionFile) error

	// FormatSnapshot renders one live monitor snapshot.
	FormatSnapshot(w io.Writer, s monitor.Snapshot) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Color enables styled headers in table output.
	Color bool

	// Compact removes separators and blank lines.
	Compact bool

	// ShowPercentiles adds percentile rows to statistics tables.
	ShowPercentiles bool
}
