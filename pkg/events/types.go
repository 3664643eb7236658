// Package events turns raw log records into priced, deduplicated usage
// events ready for the windowing engine.
//
// The collector drops records older than the configured look-back, records
// without any tokens and records already seen under the same
// "message_id:request_id" key. The seen-set persists across calls so
// incremental reads of a growing log stay deduplicated.
//
// Example usage:
//
//	c, err := events.New(events.Config{
//	    Resolver: pricing.New(pricing.Config{}, log),
//	    CostMode: usage.CostModeAuto,
//	}, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	evs := c.Collect(records)
package events

import (
	"time"

	"github.com/0xmhha/usage-monitor/pkg/parser"
	"github.com/0xmhha/usage-monitor/pkg/pricing"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// Collector converts parser records into usage events.
type Collector interface {
	// Collect filters, deduplicates and prices records.
	//
	// Parameters:
	//   - records: Raw records in file order
	//
	// Returns:
	//   - Events in input order; records that are filtered out are dropped
	//
	// Thread-safety: safe for concurrent use.
	Collect(records []parser.Record) []usage.Event

	// Seen returns the number of distinct dedup keys recorded so far.
	Seen() int

	// Reset forgets every dedup key.
	Reset()
}

// Config contains collector configuration.
type Config struct {
	// Resolver prices events. Required.
	Resolver pricing.Resolver

	// CostMode selects how costs are resolved.
	// Default: usage.CostModeAuto.
	CostMode usage.CostMode

	// HoursBack drops records older than now minus this many hours.
	// Default: 0 (no cutoff).
	HoursBack int

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time
}
