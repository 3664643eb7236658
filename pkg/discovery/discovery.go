// Package discovery finds Claude Code conversation logs on disk.
//
// Claude Code stores one JSONL file per conversation under
// <config-dir>/projects/<encoded-project-path>/<session-uuid>.jsonl, where
// the project directory name is the working directory with path
// separators replaced by dashes. Subagents write their own logs, either as
// agent-<id>.jsonl next to the session log or under
// <session-uuid>/subagents/; those are discovered too, since they carry
// billable usage.
//
// Example usage:
//
//	d := discovery.New(discovery.ProjectsDirs([]string{"~/.claude"}), log)
//	sessions, err := d.Discover()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range sessions {
//	    fmt.Printf("Session: %s, Project: %s\n", s.SessionID, s.DecodedPath)
//	}
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// projectsSubdir is the directory under a Claude config dir holding logs.
	projectsSubdir = "projects"

	logExt = ".jsonl"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// SessionFile represents a discovered conversation log.
type SessionFile struct {
	// SessionID is the UUID of the conversation the log belongs to. Empty
	// for a subagent log whose parent session is not encoded in its path.
	SessionID string `json:"session_id"`

	// FilePath is the absolute path to the JSONL file.
	FilePath string `json:"file_path"`

	// ProjectDir is the encoded project directory containing the file.
	ProjectDir string `json:"project_dir"`

	// DecodedPath is the working directory the project directory encodes.
	DecodedPath string `json:"project_path"`

	// Subagent marks logs written by subagents (agent-*.jsonl).
	Subagent bool `json:"subagent,omitempty"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModTime is the last modification time.
	ModTime time.Time `json:"mod_time"`
}

// Discoverer provides methods for discovering conversation logs.
type Discoverer interface {
	// Discover scans every base directory and returns all session files,
	// ordered by modification time (oldest first).
	//
	// Missing base directories are skipped with a warning. Every .jsonl
	// file below a project directory is returned, subagent logs included.
	Discover() ([]SessionFile, error)

	// DiscoverProject returns session files for one project directory.
	//
	// Returns ErrProjectNotFound if the directory does not exist and
	// ErrNotDirectory if the path is a regular file.
	DiscoverProject(projectDir string) ([]SessionFile, error)

	// BaseDirs returns the expanded directories Discover scans.
	BaseDirs() []string
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	baseDirs []string
	logger   Logger
}

// New creates a new Discoverer instance.
//
// Parameters:
//   - baseDirs: Projects directories to scan (e.g. ~/.claude/projects)
//   - logger: Logger instance for diagnostic messages
func New(baseDirs []string, logger Logger) Discoverer {
	expanded := make([]string, 0, len(baseDirs))
	seen := make(map[string]struct{}, len(baseDirs))
	for _, dir := range baseDirs {
		dir = filepath.Clean(ExpandHome(dir))
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}
		expanded = append(expanded, dir)
	}

	return &discoverer{
		baseDirs: expanded,
		logger:   logger,
	}
}

// ProjectsDirs maps Claude config directories to their projects
// subdirectories.
func ProjectsDirs(configDirs []string) []string {
	out := make([]string, 0, len(configDirs))
	for _, dir := range configDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		out = append(out, filepath.Join(ExpandHome(dir), projectsSubdir))
	}
	return out
}

// BaseDirs implements Discoverer.BaseDirs.
func (d *discoverer) BaseDirs() []string {
	out := make([]string, len(d.baseDirs))
	copy(out, d.baseDirs)
	return out
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover() ([]SessionFile, error) {
	var all []SessionFile

	for _, baseDir := range d.baseDirs {
		if _, err := os.Stat(baseDir); err != nil {
			if os.IsNotExist(err) {
				d.logger.Warn("directory not found, skipping", "path", baseDir)
				continue
			}
			return nil, fmt.Errorf("failed to stat directory %s: %w", baseDir, err)
		}

		sessions, err := d.scanBaseDirectory(baseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", baseDir, err)
		}

		all = append(all, sessions...)
	}

	sortSessions(all)

	d.logger.Debug("discovery complete", "total_sessions", len(all))
	return all, nil
}

// DiscoverProject implements Discoverer.DiscoverProject.
func (d *discoverer) DiscoverProject(projectDir string) ([]SessionFile, error) {
	expanded := ExpandHome(projectDir)

	info, err := os.Stat(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, expanded)
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", expanded, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, expanded)
	}

	sessions, err := d.scanProjectDirectory(expanded)
	if err != nil {
		return nil, err
	}

	sortSessions(sessions)
	return sessions, nil
}

// scanBaseDirectory scans a base directory for project subdirectories.
func (d *discoverer) scanBaseDirectory(baseDir string) ([]SessionFile, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var sessions []SessionFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		projectDir := filepath.Join(baseDir, entry.Name())
		projectSessions, err := d.scanProjectDirectory(projectDir)
		if err != nil {
			d.logger.Warn("failed to scan project directory",
				"path", projectDir,
				"error", err)
			continue
		}

		sessions = append(sessions, projectSessions...)
	}

	return sessions, nil
}

// scanProjectDirectory walks a project directory for JSONL logs,
// including subagent logs nested under <session>/subagents/.
func (d *discoverer) scanProjectDirectory(projectDir string) ([]SessionFile, error) {
	decoded := DecodeProjectPath(filepath.Base(projectDir))
	var sessions []SessionFile

	err := filepath.WalkDir(projectDir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == projectDir {
				return walkErr
			}
			d.logger.Warn("failed to walk path", "path", path, "error", walkErr)
			return nil
		}
		if entry.IsDir() || filepath.Ext(path) != logExt {
			return nil
		}

		rel, err := filepath.Rel(projectDir, path)
		if err != nil {
			return nil
		}
		sessionID, subagent := sessionForLog(strings.Split(rel, string(filepath.Separator)))

		info, err := entry.Info()
		if err != nil {
			d.logger.Warn("failed to get file info",
				"path", path,
				"error", err)
			return nil
		}

		sessions = append(sessions, SessionFile{
			SessionID:   sessionID,
			FilePath:    path,
			ProjectDir:  projectDir,
			DecodedPath: decoded,
			Subagent:    subagent,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	d.logger.Debug("scanned project directory",
		"path", projectDir,
		"sessions_found", len(sessions))

	return sessions, nil
}

// sessionForLog labels a log by its path components below the project
// directory. A <uuid>.jsonl is a main session log. Any other name is a
// subagent log belonging to the nearest enclosing <uuid> directory, or to
// no known session when it sits directly in the project directory.
func sessionForLog(parts []string) (sessionID string, subagent bool) {
	last := len(parts) - 1
	if id := strings.TrimSuffix(parts[last], logExt); IsValidSessionID(id) {
		return id, false
	}
	for i := last - 1; i >= 0; i-- {
		if IsValidSessionID(parts[i]) {
			return parts[i], true
		}
	}
	return "", true
}

// Locate classifies path against the projects directories in baseDirs.
//
// Returns ok=false unless path is a .jsonl file inside a project
// directory of one of baseDirs.
func Locate(baseDirs []string, path string) (projectDir, sessionID string, subagent, ok bool) {
	if filepath.Ext(path) != logExt {
		return "", "", false, false
	}
	path = filepath.Clean(path)

	for _, base := range baseDirs {
		rel, err := filepath.Rel(filepath.Clean(base), path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) < 2 {
			continue
		}
		sessionID, subagent = sessionForLog(parts[1:])
		return filepath.Join(filepath.Clean(base), parts[0]), sessionID, subagent, true
	}
	return "", "", false, false
}

// EncodeProjectPath is the inverse of DecodeProjectPath: it names the
// project directory Claude Code keeps for a working directory,
// "/Users/me/app" → "-Users-me-app".
func EncodeProjectPath(path string) string {
	if path == "" {
		return ""
	}
	return strings.ReplaceAll(filepath.ToSlash(filepath.Clean(path)), "/", "-")
}

// ProjectDirFor joins a projects directory with a project given either as
// a working directory ("/srv/app") or as an already encoded name
// ("-srv-app").
func ProjectDirFor(baseDir, project string) string {
	name := project
	if strings.ContainsRune(filepath.ToSlash(project), '/') {
		name = EncodeProjectPath(ExpandHome(project))
	}
	return filepath.Join(baseDir, name)
}

// DecodeProjectPath turns an encoded project directory name back into the
// working directory it was created for: "-Users-me-app" → "/Users/me/app".
//
// The encoding is lossy (dashes inside directory names are
// indistinguishable from separators); the result is a best-effort label.
func DecodeProjectPath(name string) string {
	if name == "" {
		return ""
	}
	if !strings.HasPrefix(name, "-") {
		return name
	}
	return strings.ReplaceAll(name, "-", "/")
}

// IsValidSessionID reports whether id is a canonical 36-character UUID.
func IsValidSessionID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}

func sortSessions(sessions []SessionFile) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].ModTime.Equal(sessions[j].ModTime) {
			return sessions[i].ModTime.Before(sessions[j].ModTime)
		}
		return sessions[i].FilePath < sessions[j].FilePath
	})
}
