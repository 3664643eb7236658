package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable the loader reads for the test's duration.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvClaudeConfigDir, EnvConfigPath, EnvDBPath, EnvSQLitePath,
		EnvLogLevel, EnvCostMode, EnvHoursBack,
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if len(cfg.ClaudeConfigDirs) == 0 {
		t.Error("ClaudeConfigDirs is empty")
	}
	if cfg.Usage.CostMode != "auto" {
		t.Errorf("CostMode = %q, want auto", cfg.Usage.CostMode)
	}
	if cfg.Usage.BlockDuration != 5*time.Hour {
		t.Errorf("BlockDuration = %v, want 5h", cfg.Usage.BlockDuration)
	}
	if !reflect.DeepEqual(cfg.P90.CommonLimits, []int{19000, 88000, 220000}) {
		t.Errorf("CommonLimits = %v", cfg.P90.CommonLimits)
	}
	if cfg.P90.DefaultMinLimit != 19000 {
		t.Errorf("DefaultMinLimit = %d, want 19000", cfg.P90.DefaultMinLimit)
	}
	if cfg.Pricing.FallbackModel != "claude-3-5-sonnet" {
		t.Errorf("FallbackModel = %q", cfg.Pricing.FallbackModel)
	}
	if !strings.Contains(cfg.Storage.DBPath, AppName) {
		t.Errorf("DBPath %q does not live under %s", cfg.Storage.DBPath, AppName)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid default config", func(c *Config) {}, nil},
		{"no claude directories", func(c *Config) { c.ClaudeConfigDirs = nil }, ErrNoClaudeDirs},
		{"blank claude directory", func(c *Config) { c.ClaudeConfigDirs = []string{" "} }, ErrNoClaudeDirs},
		{"zero refresh interval", func(c *Config) { c.Monitoring.RefreshInterval = 0 }, ErrInvalidRefreshInterval},
		{"zero debounce", func(c *Config) { c.Monitoring.DebounceInterval = 0 }, ErrInvalidDebounceInterval},
		{"negative broadcast interval", func(c *Config) { c.Monitoring.BroadcastInterval = -time.Second }, ErrInvalidBroadcastInterval},
		{"negative breaker", func(c *Config) { c.Monitoring.CircuitBreakerThreshold = -1 }, ErrInvalidCircuitBreaker},
		{"unknown cost mode", func(c *Config) { c.Usage.CostMode = "guess" }, ErrInvalidCostMode},
		{"negative hours back", func(c *Config) { c.Usage.HoursBack = -1 }, ErrInvalidHoursBack},
		{"fractional block", func(c *Config) { c.Usage.BlockDuration = 90 * time.Minute }, ErrInvalidBlockDuration},
		{"zero threshold", func(c *Config) { c.P90.LimitThreshold = 0 }, ErrInvalidLimitThreshold},
		{"threshold above one", func(c *Config) { c.P90.LimitThreshold = 1.5 }, ErrInvalidLimitThreshold},
		{"negative min limit", func(c *Config) { c.P90.DefaultMinLimit = -5 }, ErrInvalidMinLimit},
		{"zero common limit", func(c *Config) { c.P90.CommonLimits = []int{19000, 0} }, ErrInvalidCommonLimits},
		{"zero cache ttl", func(c *Config) { c.P90.CacheTTL = 0 }, ErrInvalidCacheTTL},
		{"unknown display format", func(c *Config) { c.Display.Format = "html" }, ErrInvalidDisplayFormat},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.ClaudeConfigDirs = []string{"/path"}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `claude_config_dirs:
  - /data/claude
usage:
  cost_mode: calculate
  hours_back: 48
  block_duration: 3h
p90:
  common_limits: [50000]
  cache_ttl: 30m
monitoring:
  refresh_interval: 2s
display:
  format: json
  color_enabled: false
storage:
  sqlite_path: ""
`)

	cfg, err := NewLoader(path).LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if !reflect.DeepEqual(cfg.ClaudeConfigDirs, []string{"/data/claude"}) {
		t.Errorf("ClaudeConfigDirs = %v", cfg.ClaudeConfigDirs)
	}
	if cfg.Usage.CostMode != "calculate" || cfg.Usage.HoursBack != 48 {
		t.Errorf("Usage = %+v", cfg.Usage)
	}
	if cfg.Usage.BlockDuration != 3*time.Hour {
		t.Errorf("BlockDuration = %v, want 3h", cfg.Usage.BlockDuration)
	}
	if !reflect.DeepEqual(cfg.P90.CommonLimits, []int{50000}) {
		t.Errorf("CommonLimits = %v, want [50000]", cfg.P90.CommonLimits)
	}
	if cfg.P90.CacheTTL != 30*time.Minute {
		t.Errorf("CacheTTL = %v, want 30m", cfg.P90.CacheTTL)
	}
	if cfg.Monitoring.RefreshInterval != 2*time.Second {
		t.Errorf("RefreshInterval = %v, want 2s", cfg.Monitoring.RefreshInterval)
	}
	if cfg.Display.Format != "json" || cfg.Display.ColorEnabled {
		t.Errorf("Display = %+v", cfg.Display)
	}
	if cfg.Storage.SQLitePath != "" {
		t.Errorf("SQLitePath = %q, want empty", cfg.Storage.SQLitePath)
	}

	// Keys absent from the file keep their defaults.
	if cfg.Monitoring.DebounceInterval != 500*time.Millisecond {
		t.Errorf("DebounceInterval = %v, want default", cfg.Monitoring.DebounceInterval)
	}
	if cfg.P90.LimitThreshold != 0.95 {
		t.Errorf("LimitThreshold = %v, want default", cfg.P90.LimitThreshold)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want default", cfg.Logging.Level)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	clearEnv(t)

	l := NewLoader("")
	_, err := l.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("missing file error = %v, want ErrConfigNotFound", err)
	}

	bad := writeConfig(t, "usage: [unclosed")
	_, err = l.LoadFromFile(bad)
	if !errors.Is(err, ErrInvalidYAML) {
		t.Errorf("bad yaml error = %v, want ErrInvalidYAML", err)
	}
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvClaudeConfigDir, "/tmp/claude")

	l := &loader{configPath: filepath.Join(t.TempDir(), "absent.yaml")}
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Usage.CostMode != "auto" {
		t.Errorf("CostMode = %q, want auto", cfg.Usage.CostMode)
	}
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	clearEnv(t)

	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoad_InvalidFileFailsValidation(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "claude_config_dirs: [/x]\nusage:\n  cost_mode: guess\n")
	_, err := LoadFromFile(path)
	if !errors.Is(err, ErrInvalidCostMode) {
		t.Errorf("LoadFromFile() error = %v, want ErrInvalidCostMode", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, "claude_config_dirs: [/from/file]\nusage:\n  cost_mode: cached\n")
	t.Setenv(EnvClaudeConfigDir, " /a , /b ,,")
	t.Setenv(EnvDBPath, "/tmp/offsets.db")
	t.Setenv(EnvSQLitePath, "")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvCostMode, "Calculate")
	t.Setenv(EnvHoursBack, "12")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if !reflect.DeepEqual(cfg.ClaudeConfigDirs, []string{"/a", "/b"}) {
		t.Errorf("ClaudeConfigDirs = %v, want [/a /b]", cfg.ClaudeConfigDirs)
	}
	if cfg.Storage.DBPath != "/tmp/offsets.db" {
		t.Errorf("DBPath = %q", cfg.Storage.DBPath)
	}
	if cfg.Storage.SQLitePath != "" {
		t.Errorf("SQLitePath = %q, want empty", cfg.Storage.SQLitePath)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Usage.CostMode != "calculate" {
		t.Errorf("CostMode = %q, want calculate", cfg.Usage.CostMode)
	}
	if cfg.Usage.HoursBack != 12 {
		t.Errorf("HoursBack = %d, want 12", cfg.Usage.HoursBack)
	}
}

func TestLoad_InvalidHoursBackEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvClaudeConfigDir, "/a")
	t.Setenv(EnvHoursBack, "yesterday")

	l := &loader{configPath: filepath.Join(t.TempDir(), "absent.yaml")}
	if _, err := l.Load(); !errors.Is(err, ErrInvalidHoursBack) {
		t.Errorf("Load() error = %v, want ErrInvalidHoursBack", err)
	}
}

func TestNewLoader_Path(t *testing.T) {
	clearEnv(t)

	if got := NewLoader("").Path(); got != DefaultPath() {
		t.Errorf("Path() = %q, want %q", got, DefaultPath())
	}
	if got := NewLoader("/etc/um.yaml").Path(); got != "/etc/um.yaml" {
		t.Errorf("Path() = %q, want /etc/um.yaml", got)
	}

	t.Setenv(EnvConfigPath, "/env/um.yaml")
	if got := NewLoader("").Path(); got != "/env/um.yaml" {
		t.Errorf("Path() = %q, want /env/um.yaml", got)
	}
}

func TestSave(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.ClaudeConfigDirs = []string{"/saved"}
	cfg.Usage.CostMode = "cached"
	cfg.Usage.BlockDuration = 2 * time.Hour
	cfg.P90.CommonLimits = []int{1000}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Usage.CostMode = "nope"

	err := Save(cfg, filepath.Join(t.TempDir(), "config.yaml"))
	if !errors.Is(err, ErrInvalidCostMode) {
		t.Errorf("Save() error = %v, want ErrInvalidCostMode", err)
	}
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	for _, key := range []string{"claude_config_dirs:", "cost_mode: auto", "block_duration: 5h0m0s", "common_limits:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Marshal() output missing %q", key)
		}
	}
}
