package pricing

import (
	"fmt"
	"sync"

	"github.com/0xmhha/usage-monitor/pkg/logger"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// resolver implements the Resolver interface.
type resolver struct {
	table    Table
	fallback string
	logger   logger.Logger

	// warned records unknown models already reported.
	warned sync.Map
}

// New creates a new pricing resolver.
//
// Parameters:
//   - cfg: Resolver configuration
//   - log: Logger instance
//
// Returns a configured Resolver. Table keys are normalized on the way in.
func New(cfg Config, log logger.Logger) Resolver {
	if cfg.Table == nil {
		cfg.Table = DefaultTable()
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultFallbackModel
	}

	table := Table{}.Merge(cfg.Table)
	fallback := priceKey(cfg.FallbackModel)

	if _, ok := table[fallback]; !ok {
		log.Warn("fallback model not in price table, unknown models will cost 0",
			"fallback", cfg.FallbackModel)
	}

	return &resolver{
		table:    table,
		fallback: fallback,
		logger:   log,
	}
}

// Resolve implements Resolver.Resolve.
func (r *resolver) Resolve(model string, tokens usage.TokenCounts, embedded *float64, mode usage.CostMode) (float64, error) {
	switch mode {
	case usage.CostModeCached:
		if embedded != nil && *embedded >= 0 {
			return *embedded, nil
		}
		return 0, nil
	case usage.CostModeCalculated:
		return r.Calculate(model, tokens), nil
	case usage.CostModeAuto:
		if embedded != nil && *embedded > 0 {
			return *embedded, nil
		}
		return r.Calculate(model, tokens), nil
	default:
		return 0, fmt.Errorf("%w: %q", usage.ErrInvalidCostMode, string(mode))
	}
}

// Calculate implements Resolver.Calculate.
func (r *resolver) Calculate(model string, tokens usage.TokenCounts) float64 {
	p, _ := r.Price(model)
	return p.cost(tokens.Input, tokens.Output, tokens.CacheCreation, tokens.CacheRead)
}

// Price implements Resolver.Price.
func (r *resolver) Price(model string) (Price, bool) {
	key := priceKey(model)
	if p, ok := r.table[key]; ok {
		return p, true
	}

	if _, seen := r.warned.LoadOrStore(key, struct{}{}); !seen {
		r.logger.Debug("no price for model, using fallback",
			"model", model,
			"fallback", r.fallback)
	}

	return r.table[r.fallback], false
}
