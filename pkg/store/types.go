// Package store persists usage events and their calendar rollups in SQLite.
//
// Events are keyed by their deduplication key so repeated syncs of the same
// logs never double count. The daily_usage and monthly_usage tables are
// derived data: RebuildRollups recomputes them from usage_events through
// the aggregator, so they always agree with the in-memory reports.
//
// Example usage:
//
//	st, err := store.Open(store.Config{Path: "~/.local/share/usage-monitor/usage.db"}, log)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	if _, err := st.SaveEvents(ctx, events); err != nil {
//	    return err
//	}
//	if err := st.RebuildRollups(ctx); err != nil {
//	    return err
//	}
//	daily, err := st.DailyUsage(ctx, nil, nil)
package store

import (
	"context"
	"time"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// Store is the relational persistence layer for usage data.
type Store interface {
	// SaveEvents upserts events keyed by their deduplication key.
	//
	// Returns the number of events that were not stored before.
	SaveEvents(ctx context.Context, events []usage.Event) (int, error)

	// RebuildRollups recomputes daily_usage and monthly_usage from all
	// stored events in a single transaction.
	RebuildRollups(ctx context.Context) error

	// Events loads stored events with Timestamp >= since, ordered by time.
	// A zero since loads everything.
	Events(ctx context.Context, since time.Time) ([]usage.Event, error)

	// DailyUsage returns daily rollups between the optional inclusive
	// bounds, ordered by date then model.
	DailyUsage(ctx context.Context, start, end *time.Time) ([]aggregator.DailyRollup, error)

	// MonthlyUsage returns monthly rollups ordered by month then model.
	MonthlyUsage(ctx context.Context) ([]aggregator.MonthlyRollup, error)

	// Close closes the database.
	Close() error
}

// Config contains store configuration.
type Config struct {
	// Path is the SQLite database file. A leading ~ is expanded and
	// missing parent directories are created.
	Path string
}
