package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoClaudeDirs is returned when no Claude config directories are specified.
	ErrNoClaudeDirs = errors.New("no Claude config directories specified")

	// ErrInvalidRefreshInterval is returned when the refresh interval is <= 0.
	ErrInvalidRefreshInterval = errors.New("invalid refresh interval: must be > 0")

	// ErrInvalidDebounceInterval is returned when the debounce interval is <= 0.
	ErrInvalidDebounceInterval = errors.New("invalid debounce interval: must be > 0")

	// ErrInvalidBroadcastInterval is returned when the broadcast interval is negative.
	ErrInvalidBroadcastInterval = errors.New("invalid broadcast interval: must be >= 0")

	// ErrInvalidCircuitBreaker is returned when the breaker threshold is negative.
	ErrInvalidCircuitBreaker = errors.New("invalid circuit breaker threshold: must be >= 0")

	// ErrInvalidCostMode is returned when the cost mode is not recognized.
	ErrInvalidCostMode = errors.New("invalid cost mode: must be auto, cached, or calculate")

	// ErrInvalidHoursBack is returned when hours_back is negative.
	ErrInvalidHoursBack = errors.New("invalid hours back: must be >= 0")

	// ErrInvalidBlockDuration is returned when the block duration is not a
	// positive whole number of hours.
	ErrInvalidBlockDuration = errors.New("invalid block duration: must be a whole number of hours")

	// ErrInvalidLimitThreshold is returned when the threshold is outside (0, 1].
	ErrInvalidLimitThreshold = errors.New("invalid limit threshold: must be in (0, 1]")

	// ErrInvalidMinLimit is returned when the default minimum limit is negative.
	ErrInvalidMinLimit = errors.New("invalid default min limit: must be >= 0")

	// ErrInvalidCommonLimits is returned when a common limit is <= 0.
	ErrInvalidCommonLimits = errors.New("invalid common limits: must all be > 0")

	// ErrInvalidCacheTTL is returned when the cache TTL is <= 0.
	ErrInvalidCacheTTL = errors.New("invalid cache ttl: must be > 0")

	// ErrInvalidDisplayFormat is returned when the display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or simple")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
