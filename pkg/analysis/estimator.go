package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/logger"
	"github.com/0xmhha/usage-monitor/pkg/usage"
)

// cacheEntry is a result computed during one TTL bucket.
type cacheEntry struct {
	bucket int64
	limit  int
}

// estimator implements the Estimator interface.
type estimator struct {
	config Config
	logger logger.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry

	computations atomic.Int64
}

// New creates a new P90 limit estimator.
//
// Zero-valued fields of cfg are replaced with defaults.
func New(cfg Config, log logger.Logger) (Estimator, error) {
	if len(cfg.CommonLimits) == 0 {
		cfg.CommonLimits = DefaultCommonLimits()
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.DefaultMinLimit == 0 {
		cfg.DefaultMinLimit = DefaultMinLimit
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = logger.Noop()
	}

	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v out of range [0, 1]", ErrInvalidConfig, cfg.Threshold)
	}
	if cfg.DefaultMinLimit < 0 {
		return nil, fmt.Errorf("%w: negative minimum limit", ErrInvalidConfig)
	}
	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("%w: negative cache TTL", ErrInvalidConfig)
	}
	if lo.SomeBy(cfg.CommonLimits, func(l int) bool { return l <= 0 }) {
		return nil, fmt.Errorf("%w: common limits must be positive", ErrInvalidConfig)
	}

	return &estimator{
		config: cfg,
		logger: log,
		cache:  make(map[string]cacheEntry),
	}, nil
}

// Limit implements Estimator.Limit.
func (e *estimator) Limit(blocks []usage.SessionBlock, useCache bool) (int, bool) {
	if len(blocks) == 0 {
		return 0, false
	}

	if !useCache {
		return e.compute(blocks), true
	}

	bucket := e.config.Clock().UnixNano() / e.config.CacheTTL.Nanoseconds()
	key := fingerprint(blocks)

	e.mu.Lock()
	defer e.mu.Unlock()

	if entry, ok := e.cache[key]; ok && entry.bucket == bucket {
		return entry.limit, true
	}

	limit := e.compute(blocks)
	e.cache[key] = cacheEntry{bucket: bucket, limit: limit}
	return limit, true
}

// Computations implements Estimator.Computations.
func (e *estimator) Computations() int64 {
	return e.computations.Load()
}

// compute selects the candidate pool and returns max(P90, minimum).
func (e *estimator) compute(blocks []usage.SessionBlock) int {
	e.computations.Add(1)

	closed := lo.Filter(blocks, func(b usage.SessionBlock, _ int) bool {
		return !b.IsGap && !b.IsActive && b.TotalTokens() > 0
	})

	pool := lo.Filter(closed, func(b usage.SessionBlock, _ int) bool {
		return e.hitLimit(b.TotalTokens())
	})
	if len(pool) == 0 {
		pool = closed
	}
	if len(pool) == 0 {
		return e.config.DefaultMinLimit
	}

	totals := lo.Map(pool, func(b usage.SessionBlock, _ int) float64 {
		return float64(b.TotalTokens())
	})
	sort.Float64s(totals)

	p90 := int(aggregator.Percentile(totals, p90Percentile))
	e.logger.Debug("computed p90 limit",
		"candidates", len(totals),
		"p90", p90,
	)

	return max(p90, e.config.DefaultMinLimit)
}

// hitLimit reports whether tokens reached threshold × L for any common limit.
func (e *estimator) hitLimit(tokens int) bool {
	return lo.SomeBy(e.config.CommonLimits, func(limit int) bool {
		return float64(tokens) >= float64(limit)*e.config.Threshold
	})
}

// fingerprint encodes the (gap, active, total) triple of every block.
func fingerprint(blocks []usage.SessionBlock) string {
	var sb strings.Builder
	sb.Grow(len(blocks) * 12)

	for _, b := range blocks {
		sb.WriteString(strconv.FormatBool(b.IsGap))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatBool(b.IsActive))
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(b.TotalTokens()))
		sb.WriteByte(';')
	}

	return sb.String()
}
