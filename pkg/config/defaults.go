package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// AppName names the per-user configuration and data directories.
const AppName = "usage-monitor"

// defaultClaudeDirs returns the default Claude configuration roots.
//
// Searches in order:
// 1. $XDG_CONFIG_HOME/claude (new default)
// 2. ~/.claude (legacy)
//
// Returns all candidates that exist. When none exist the legacy path is
// returned so discovery reports an empty result instead of failing.
func defaultClaudeDirs() []string {
	candidates := []string{filepath.Join(xdg.ConfigHome, "claude")}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, ".claude"))
	}

	var dirs []string
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}

	if len(dirs) == 0 {
		return candidates[len(candidates)-1:]
	}

	return dirs
}

// defaultDBPath returns the default reader offset database path.
//
// Returns: $XDG_DATA_HOME/usage-monitor/offsets.db.
func defaultDBPath() string {
	return filepath.Join(xdg.DataHome, AppName, "offsets.db")
}

// defaultSQLitePath returns the default usage history database path.
//
// Returns: $XDG_DATA_HOME/usage-monitor/usage.sqlite.
func defaultSQLitePath() string {
	return filepath.Join(xdg.DataHome, AppName, "usage.sqlite")
}

// DefaultPath returns the default configuration file path.
//
// Returns: $XDG_CONFIG_HOME/usage-monitor/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}
