package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/usage-monitor/pkg/logger"
	"github.com/0xmhha/usage-monitor/pkg/parser"
	"github.com/0xmhha/usage-monitor/pkg/pricing"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// collector implements the Collector interface.
type collector struct {
	config Config
	logger logger.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// New creates a new event collector.
//
// Returns an error if the resolver is missing, the cost mode is unknown or
// HoursBack is negative.
func New(cfg Config, log logger.Logger) (Collector, error) {
	if cfg.Resolver == nil {
		return nil, ErrNoResolver
	}
	if cfg.CostMode == "" {
		cfg.CostMode = usage.CostModeAuto
	}
	if !cfg.CostMode.Valid() {
		return nil, fmt.Errorf("%w: %q", usage.ErrInvalidCostMode, string(cfg.CostMode))
	}
	if cfg.HoursBack < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHoursBack, cfg.HoursBack)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = logger.Noop()
	}

	return &collector{
		config: cfg,
		logger: log,
		seen:   make(map[string]struct{}),
	}, nil
}

// Collect implements Collector.Collect.
func (c *collector) Collect(records []parser.Record) []usage.Event {
	var cutoff time.Time
	if c.config.HoursBack > 0 {
		cutoff = c.config.Clock().Add(-time.Duration(c.config.HoursBack) * time.Hour)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]usage.Event, 0, len(records))
	var old, empty, dupes int

	for i := range records {
		rec := &records[i]

		if !cutoff.IsZero() && rec.Timestamp.Before(cutoff) {
			old++
			continue
		}

		tokens := tokensOf(rec)
		if tokens.IsZero() {
			empty++
			continue
		}

		ev := usage.Event{
			Timestamp:    rec.Timestamp.UTC(),
			Model:        pricing.NormalizeModel(rec.Message.Model),
			Tokens:       tokens,
			EmbeddedCost: rec.CostUSD,
			MessageID:    rec.Message.ID,
			RequestID:    rec.RequestID,
			SessionID:    rec.SessionID,
			ProjectPath:  rec.CurrentDir,
		}

		if key := ev.DedupKey(); key != "" {
			if _, dup := c.seen[key]; dup {
				dupes++
				continue
			}
			c.seen[key] = struct{}{}
		}

		cost, err := c.config.Resolver.Resolve(ev.Model, ev.Tokens, ev.EmbeddedCost, c.config.CostMode)
		if err != nil {
			// Unreachable with a validated mode.
			c.logger.Warn("failed to resolve cost", "model", ev.Model, "error", err)
		}
		ev.CostUSD = max(cost, 0)

		out = append(out, ev)
	}

	if old+empty+dupes > 0 {
		c.logger.Debug("records filtered",
			"too_old", old,
			"no_tokens", empty,
			"duplicates", dupes,
			"kept", len(out))
	}

	return out
}

// Seen implements Collector.Seen.
func (c *collector) Seen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Reset implements Collector.Reset.
func (c *collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]struct{})
}

func tokensOf(rec *parser.Record) usage.TokenCounts {
	u := rec.Message.Usage
	if u == nil {
		return usage.TokenCounts{}
	}
	return usage.TokenCounts{
		Input:         u.InputTokens,
		Output:        u.OutputTokens,
		CacheCreation: u.CacheCreationInputTokens,
		CacheRead:     u.CacheReadInputTokens,
	}
}
