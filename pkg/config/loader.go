package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Environment variables read by the loader.
const (
	EnvClaudeConfigDir = "CLAUDE_CONFIG_DIR"
	EnvConfigPath      = "USAGE_MONITOR_CONFIG"
	EnvDBPath          = "USAGE_MONITOR_DB"
	EnvSQLitePath      = "USAGE_MONITOR_SQLITE"
	EnvLogLevel        = "USAGE_MONITOR_LOG_LEVEL"
	EnvCostMode        = "USAGE_MONITOR_COST_MODE"
	EnvHoursBack       = "USAGE_MONITOR_HOURS_BACK"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile overlays a specific file on top of the defaults without
	// applying environment overrides or validation.
	LoadFromFile(path string) (*Config, error)

	// Path returns the configuration file the loader reads. The file may not
	// exist.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
	explicit   bool
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, USAGE_MONITOR_CONFIG is consulted and then
// DefaultPath(). A missing file is only an error when the path was given
// explicitly.
func NewLoader(configPath string) Loader {
	explicit := configPath != ""
	if !explicit {
		if env := os.Getenv(EnvConfigPath); env != "" {
			configPath = env
			explicit = true
		}
	}
	if configPath == "" {
		configPath = DefaultPath()
	}

	return &loader{
		configPath: configPath,
		explicit:   explicit,
	}
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	return l.configPath
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg, err := l.LoadFromFile(l.configPath)
	if err != nil {
		if !errors.Is(err, ErrConfigNotFound) || l.explicit {
			return nil, fmt.Errorf("failed to load config from %s: %w", l.configPath, err)
		}
		cfg = Default()
	}

	if err := applyEnvVars(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
//
// Keys present in the file replace the matching default; absent keys keep
// their default value.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	cfg := Default()
	// Decoding into a populated slice overwrites element-wise, so lists
	// named in the file start empty.
	if k.Exists("claude_config_dirs") {
		cfg.ClaudeConfigDirs = nil
	}
	if k.Exists("p90.common_limits") {
		cfg.P90.CommonLimits = nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - CLAUDE_CONFIG_DIR: Comma-separated list of Claude directories
//   - USAGE_MONITOR_DB: Offset database path
//   - USAGE_MONITOR_SQLITE: Usage history path
//   - USAGE_MONITOR_LOG_LEVEL: Log level
//   - USAGE_MONITOR_COST_MODE: Cost mode
//   - USAGE_MONITOR_HOURS_BACK: Event age cutoff in hours
func applyEnvVars(cfg *Config) error {
	if envDirs := os.Getenv(EnvClaudeConfigDir); envDirs != "" {
		var dirs []string
		for _, dir := range strings.Split(envDirs, ",") {
			if dir = strings.TrimSpace(dir); dir != "" {
				dirs = append(dirs, dir)
			}
		}
		cfg.ClaudeConfigDirs = dirs
	}

	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}

	if sqlitePath, ok := os.LookupEnv(EnvSQLitePath); ok {
		cfg.Storage.SQLitePath = sqlitePath
	}

	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}

	if costMode := os.Getenv(EnvCostMode); costMode != "" {
		cfg.Usage.CostMode = strings.ToLower(costMode)
	}

	if hours := os.Getenv(EnvHoursBack); hours != "" {
		n, err := strconv.Atoi(hours)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidHoursBack, EnvHoursBack, hours)
		}
		cfg.Usage.HoursBack = n
	}

	return nil
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file,
// applying environment overrides and validation.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Marshal renders the configuration as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
