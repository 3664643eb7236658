// Package config provides configuration management for usage-monitor.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority, applied by the caller)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Claude dirs: %v\n", cfg.ClaudeConfigDirs)
package config

import (
	"strings"
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - ClaudeConfigDirs must have at least one directory
// - RefreshInterval and DebounceInterval must be > 0
// - CostMode must be auto, cached or calculate
// - BlockDuration must be a positive whole number of hours
// - LimitThreshold must be in (0, 1].
type Config struct {
	// Claude configuration roots; session logs live under <dir>/projects.
	ClaudeConfigDirs []string `yaml:"claude_config_dirs"`

	// Monitoring settings
	Monitoring MonitoringConfig `yaml:"monitoring"`

	// Usage interpretation settings
	Usage UsageConfig `yaml:"usage"`

	// P90 limit estimation settings
	P90 P90Config `yaml:"p90"`

	// Pricing settings
	Pricing PricingConfig `yaml:"pricing"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// MonitoringConfig contains live monitoring settings.
type MonitoringConfig struct {
	// Periodic snapshot rebuild while watching
	RefreshInterval time.Duration `yaml:"refresh_interval"`

	// Quiet period before a file change is reported
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Minimum spacing between snapshot broadcasts
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Consecutive watcher errors before the circuit breaker opens
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`
}

// UsageConfig controls how log records become usage events.
type UsageConfig struct {
	// Cost mode (auto, cached, calculate)
	CostMode string `yaml:"cost_mode"`

	// Ignore events older than this many hours (0 keeps everything)
	HoursBack int `yaml:"hours_back"`

	// Session block length
	BlockDuration time.Duration `yaml:"block_duration"`
}

// P90Config tunes the adaptive limit estimator.
type P90Config struct {
	// Known plan token ceilings
	CommonLimits []int `yaml:"common_limits"`

	// Fraction of a ceiling that counts as hitting it
	LimitThreshold float64 `yaml:"limit_threshold"`

	// Floor of every estimate
	DefaultMinLimit int `yaml:"default_min_limit"`

	// Width of a cache bucket
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// PricingConfig contains price table settings.
type PricingConfig struct {
	// Optional YAML, TOML or LiteLLM JSON file merged over the built-in table
	OverridesFile string `yaml:"overrides_file"`

	// Table key used for unknown models
	FallbackModel string `yaml:"fallback_model"`

	// Download the LiteLLM price list on startup
	FetchOnline bool `yaml:"fetch_online"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Output format (table, json, simple)
	Format string `yaml:"format"`

	// Enable colored output when writing to a terminal
	ColorEnabled bool `yaml:"color_enabled"`

	// Show percentile columns in statistics
	ShowPercentiles bool `yaml:"show_percentiles"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Path to the BoltDB file holding reader offsets
	DBPath string `yaml:"db_path"`

	// Path to the SQLite usage history (empty disables it)
	SQLitePath string `yaml:"sqlite_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

var (
	validCostModes = map[string]bool{"auto": true, "cached": true, "calculate": true}
	validFormats   = map[string]bool{"table": true, "json": true, "simple": true}
	validLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormat = map[string]bool{"text": true, "json": true}
)

// Validate checks if the configuration satisfies all invariants.
//
// Returns the first violated invariant as one of the package's sentinel
// errors.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if len(c.ClaudeConfigDirs) == 0 {
		return ErrNoClaudeDirs
	}
	for _, dir := range c.ClaudeConfigDirs {
		if strings.TrimSpace(dir) == "" {
			return ErrNoClaudeDirs
		}
	}

	if c.Monitoring.RefreshInterval <= 0 {
		return ErrInvalidRefreshInterval
	}
	if c.Monitoring.DebounceInterval <= 0 {
		return ErrInvalidDebounceInterval
	}
	if c.Monitoring.BroadcastInterval < 0 {
		return ErrInvalidBroadcastInterval
	}
	if c.Monitoring.CircuitBreakerThreshold < 0 {
		return ErrInvalidCircuitBreaker
	}

	if !validCostModes[c.Usage.CostMode] {
		return ErrInvalidCostMode
	}
	if c.Usage.HoursBack < 0 {
		return ErrInvalidHoursBack
	}
	if c.Usage.BlockDuration < time.Hour || c.Usage.BlockDuration%time.Hour != 0 {
		return ErrInvalidBlockDuration
	}

	if c.P90.LimitThreshold <= 0 || c.P90.LimitThreshold > 1 {
		return ErrInvalidLimitThreshold
	}
	if c.P90.DefaultMinLimit < 0 {
		return ErrInvalidMinLimit
	}
	for _, limit := range c.P90.CommonLimits {
		if limit <= 0 {
			return ErrInvalidCommonLimits
		}
	}
	if c.P90.CacheTTL <= 0 {
		return ErrInvalidCacheTTL
	}

	if !validFormats[c.Display.Format] {
		return ErrInvalidDisplayFormat
	}

	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}
	if !validLogFormat[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		ClaudeConfigDirs: defaultClaudeDirs(),
		Monitoring: MonitoringConfig{
			RefreshInterval:         10 * time.Second,
			DebounceInterval:        500 * time.Millisecond,
			BroadcastInterval:       250 * time.Millisecond,
			CircuitBreakerThreshold: 5,
		},
		Usage: UsageConfig{
			CostMode:      "auto",
			HoursBack:     0,
			BlockDuration: 5 * time.Hour,
		},
		P90: P90Config{
			CommonLimits:    []int{19000, 88000, 220000},
			LimitThreshold:  0.95,
			DefaultMinLimit: 19000,
			CacheTTL:        time.Hour,
		},
		Pricing: PricingConfig{
			FallbackModel: "claude-3-5-sonnet",
		},
		Display: DisplayConfig{
			Format:       "table",
			ColorEnabled: true,
		},
		Storage: StorageConfig{
			DBPath:     defaultDBPath(),
			SQLitePath: defaultSQLitePath(),
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Output: "stderr",
			Format: "text",
		},
	}
}
