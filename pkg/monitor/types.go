// Package monitor runs the live usage pipeline.
//
// A monitor discovers conversation logs, reads them incrementally, turns
// new records into priced events and recomputes a Snapshot (session
// blocks, active block burn rate, hourly burn rate, P90 limit, summary)
// after every change. Snapshots are broadcast to subscribers through a Hub.
//
// The same pipeline serves one-shot reports: Sync reads everything that is
// new without starting the watcher. Subagent logs are read alongside the
// session logs they belong to.
//
// Example usage:
//
//	m, err := monitor.New(monitor.Config{
//	    Discoverer: disc,
//	    Reader:     rd,
//	    Collector:  col,
//	    Engine:     eng,
//	    Estimator:  est,
//	    Watcher:    w,
//	}, log)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	sub := m.Subscribe()
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	for snap := range sub.Updates {
//	    render(snap)
//	}
package monitor

import (
	"context"
	"time"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/analysis"
	"github.com/0xmhha/usage-monitor/pkg/blocks"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/events"
	"github.com/0xmhha/usage-monitor/pkg/reader"
	"github.com/0xmhha/usage-monitor/pkg/store"
	"github.com/0xmhha/usage-monitor/pkg/usage"
	"github.com/0xmhha/usage-monitor/pkg/watcher"
)

// Snapshot is the computed usage state at one instant.
type Snapshot struct {
	// Timestamp is the wall-clock time the snapshot was computed for.
	Timestamp time.Time `json:"timestamp"`

	// Blocks are all session blocks, gap blocks included.
	Blocks []usage.SessionBlock `json:"blocks"`

	// Active is the enriched active block, nil when none is active.
	Active *usage.EnrichedBlock `json:"active,omitempty"`

	// HourlyBurnRate is tokens per minute over the last hour.
	HourlyBurnRate float64 `json:"hourly_burn_rate"`

	// P90Limit is the estimated per-block token limit.
	P90Limit int `json:"p90_limit"`

	// Summary totals every collected event.
	Summary aggregator.Summary `json:"summary"`

	// Delta is the change since the previous snapshot.
	Delta Delta `json:"delta"`
}

// Delta is the change between two consecutive snapshots.
type Delta struct {
	NewEvents int     `json:"new_events"`
	Tokens    int     `json:"tokens"`
	CostUSD   float64 `json:"cost_usd"`
}

// Subscription is a registered snapshot consumer.
type Subscription struct {
	// ID identifies the subscription for Unsubscribe.
	ID string

	// Updates receives snapshots. It is closed on Unsubscribe or when the
	// hub closes.
	Updates <-chan Snapshot
}

// Monitor runs the usage pipeline.
type Monitor interface {
	// Sync discovers logs, reads every new record and recomputes the
	// snapshot. The snapshot is also published to subscribers.
	//
	// Returns ErrNoSessions when no log file matches.
	Sync(ctx context.Context) (Snapshot, error)

	// Start performs an initial Sync and then follows the watcher until
	// ctx is cancelled or Stop is called. Start does not block.
	//
	// Returns ErrInvalidConfig when no watcher is configured.
	Start(ctx context.Context) error

	// Stop halts live processing.
	Stop() error

	// Snapshot returns the most recent snapshot.
	Snapshot() Snapshot

	// Events returns a copy of every collected event in arrival order.
	Events() []usage.Event

	// Subscribe registers a snapshot consumer.
	Subscribe() Subscription

	// Unsubscribe removes a consumer and closes its channel.
	Unsubscribe(id string)

	// Close stops the monitor and closes all subscriptions.
	Close() error
}

// Config holds the monitor's collaborators and settings.
type Config struct {
	// Discoverer finds log files. Required.
	Discoverer discovery.Discoverer

	// Reader reads logs incrementally. Required.
	Reader reader.Reader

	// Collector turns records into events. Required.
	Collector events.Collector

	// Engine builds session blocks. Required.
	Engine blocks.Engine

	// Estimator computes the P90 limit. Required.
	Estimator analysis.Estimator

	// Watcher feeds file changes. Required by Start only.
	Watcher watcher.Watcher

	// Store persists new events when set.
	Store store.Store

	// SessionIDs restricts the monitor to these sessions (empty means all).
	// Subagent logs count toward their parent session.
	SessionIDs []string

	// ProjectDirs restricts the monitor to these project directories
	// (absolute, under one of the Discoverer's base dirs). Empty means
	// every project.
	ProjectDirs []string

	// HoursBack drops events older than this many hours, measured from
	// Clock at every recompute, so a long-running monitor keeps a sliding
	// window. 0 keeps everything.
	HoursBack int

	// RefreshInterval republishes the snapshot with a fresh clock so
	// active flags and projections advance between writes.
	// Default: 10s.
	RefreshInterval time.Duration

	// Hub configures snapshot broadcasting.
	Hub HubConfig

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time
}

// HubConfig configures a Hub.
type HubConfig struct {
	// MinInterval is the minimum spacing between broadcasts.
	// Default: 250ms.
	MinInterval time.Duration

	// Buffer is the per-subscriber channel capacity.
	// Default: 4.
	Buffer int
}
