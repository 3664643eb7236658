package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/burnrate"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/logger"
	"github.com/0xmhha/usage-monitor/pkg/usage"
	"github.com/0xmhha/usage-monitor/pkg/watcher"
)

// DefaultRefreshInterval is how often an idle monitor republishes.
const DefaultRefreshInterval = 10 * time.Second

// monitor implements the Monitor interface.
type monitor struct {
	config Config
	logger logger.Logger
	hub      *Hub
	filter   map[string]struct{}
	projects map[string]struct{}

	mu       sync.Mutex
	running  bool
	closed   bool
	stop     chan struct{}
	events   []usage.Event
	snapshot Snapshot
}

// New creates a monitor.
//
// Parameters:
//   - cfg: Collaborators and settings
//   - log: Logger instance
//
// Returns:
//   - Configured Monitor
//   - ErrInvalidConfig if a required collaborator is missing
func New(cfg Config, log logger.Logger) (Monitor, error) {
	switch {
	case cfg.Discoverer == nil:
		return nil, fmt.Errorf("%w: discoverer is required", ErrInvalidConfig)
	case cfg.Reader == nil:
		return nil, fmt.Errorf("%w: reader is required", ErrInvalidConfig)
	case cfg.Collector == nil:
		return nil, fmt.Errorf("%w: collector is required", ErrInvalidConfig)
	case cfg.Engine == nil:
		return nil, fmt.Errorf("%w: engine is required", ErrInvalidConfig)
	case cfg.Estimator == nil:
		return nil, fmt.Errorf("%w: estimator is required", ErrInvalidConfig)
	case cfg.HoursBack < 0:
		return nil, fmt.Errorf("%w: negative hours back %d", ErrInvalidConfig, cfg.HoursBack)
	}

	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	filter := lo.SliceToMap(cfg.SessionIDs, func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	projects := lo.SliceToMap(cfg.ProjectDirs, func(dir string) (string, struct{}) {
		return filepath.Clean(dir), struct{}{}
	})

	log.Debug("monitor created",
		"refresh_interval", cfg.RefreshInterval,
		"session_filter", cfg.SessionIDs,
		"project_dirs", cfg.ProjectDirs,
		"hours_back", cfg.HoursBack,
		"store", cfg.Store != nil)

	return &monitor{
		config:   cfg,
		logger:   log,
		hub:      NewHub(cfg.Hub, log),
		filter:   filter,
		projects: projects,
	}, nil
}

// Sync implements Monitor.Sync.
func (m *monitor) Sync(ctx context.Context) (Snapshot, error) {
	if m.isClosed() {
		return Snapshot{}, ErrMonitorClosed
	}

	sessions, err := m.discover()
	if err != nil {
		return Snapshot{}, err
	}

	sessions = lo.Filter(sessions, func(s discovery.SessionFile, _ int) bool {
		return m.wanted(s.SessionID)
	})
	if len(sessions) == 0 {
		return Snapshot{}, ErrNoSessions
	}

	var fresh []usage.Event
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return Snapshot{}, err
		}
		fresh = append(fresh, m.ingest(ctx, s.FilePath, s.SessionID)...)
	}

	m.logger.Info("sync complete",
		"sessions", len(sessions),
		"new_events", len(fresh))

	return m.apply(ctx, fresh)
}

// Start implements Monitor.Start.
func (m *monitor) Start(ctx context.Context) error {
	if m.config.Watcher == nil {
		return fmt.Errorf("%w: watcher is required for live mode", ErrInvalidConfig)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrMonitorRunning
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	if _, err := m.Sync(ctx); err != nil {
		m.setRunning(false)
		return fmt.Errorf("initial sync failed: %w", err)
	}

	if err := m.config.Watcher.Start(ctx, m.config.Discoverer.BaseDirs()); err != nil {
		m.setRunning(false)
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	go m.loop(ctx, stop)

	m.logger.Info("live monitor started")
	return nil
}

// Stop implements Monitor.Stop.
func (m *monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMonitorClosed
	}
	if !m.running {
		return ErrMonitorNotRunning
	}

	close(m.stop)
	m.running = false

	if err := m.config.Watcher.Stop(); err != nil {
		m.logger.Warn("failed to stop watcher", "error", err)
	}

	m.logger.Info("live monitor stopped")
	return nil
}

// Snapshot implements Monitor.Snapshot.
func (m *monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// Events implements Monitor.Events.
func (m *monitor) Events() []usage.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]usage.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Subscribe implements Monitor.Subscribe.
func (m *monitor) Subscribe() Subscription {
	return m.hub.Subscribe()
}

// Unsubscribe implements Monitor.Unsubscribe.
func (m *monitor) Unsubscribe(id string) {
	m.hub.Unsubscribe(id)
}

// Close implements Monitor.Close.
func (m *monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.running {
		close(m.stop)
		m.running = false
	}
	m.mu.Unlock()

	m.hub.Close()

	if m.config.Watcher != nil {
		if err := m.config.Watcher.Close(); err != nil {
			m.logger.Warn("failed to close watcher", "error", err)
		}
	}

	m.logger.Info("monitor closed")
	return nil
}

// loop follows the watcher and the refresh ticker.
func (m *monitor) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(m.config.RefreshInterval)
	defer ticker.Stop()

	changes := m.config.Watcher.Changes()
	errs := m.config.Watcher.Errors()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return

		case change, ok := <-changes:
			if !ok {
				m.logger.Info("watcher change feed closed")
				return
			}
			m.handleChange(ctx, change)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, watcher.ErrCircuitBreakerOpen) {
				m.logger.Error("watcher circuit breaker open; relying on periodic refresh")
				continue
			}
			m.logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			if _, err := m.apply(ctx, nil); err != nil {
				m.logger.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

// discover lists the logs in scope: every project, or only the
// configured project directories.
func (m *monitor) discover() ([]discovery.SessionFile, error) {
	if len(m.config.ProjectDirs) == 0 {
		sessions, err := m.config.Discoverer.Discover()
		if err != nil {
			return nil, fmt.Errorf("failed to discover sessions: %w", err)
		}
		return sessions, nil
	}

	var sessions []discovery.SessionFile
	for _, dir := range m.config.ProjectDirs {
		found, err := m.config.Discoverer.DiscoverProject(dir)
		switch {
		case errors.Is(err, discovery.ErrProjectNotFound):
			// A project usually exists under only one config dir.
			m.logger.Debug("project directory not found", "path", dir)
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to discover project %s: %w", dir, err)
		}
		sessions = append(sessions, found...)
	}
	return sessions, nil
}

// inProject reports whether projectDir is one of the configured projects.
func (m *monitor) inProject(projectDir string) bool {
	if len(m.projects) == 0 {
		return true
	}
	_, ok := m.projects[filepath.Clean(projectDir)]
	return ok
}

// handleChange ingests one changed log file.
func (m *monitor) handleChange(ctx context.Context, change watcher.Change) {
	projectDir, id, _, ok := discovery.Locate(m.config.Discoverer.BaseDirs(), change.Path)
	if !ok || !m.inProject(projectDir) || !m.wanted(id) {
		return
	}

	switch change.Op {
	case watcher.OpRemove, watcher.OpRename:
		// A recreated file must be read from the start.
		if err := m.config.Reader.Reset(change.Path); err != nil {
			m.logger.Warn("failed to reset read position", "path", change.Path, "error", err)
		}
		return
	}

	fresh := m.ingest(ctx, change.Path, id)
	if len(fresh) == 0 {
		return
	}

	if _, err := m.apply(ctx, fresh); err != nil {
		m.logger.Warn("failed to apply change", "path", change.Path, "error", err)
	}
}

// ingest reads and collects new events from one file. Read failures are
// logged and yield no events. sessionID is the session the file belongs
// to; when it is unknown and a session filter is set, events are filtered
// by the session recorded in each line.
func (m *monitor) ingest(ctx context.Context, path, sessionID string) []usage.Event {
	records, err := m.config.Reader.Read(ctx, path)
	if err != nil {
		m.logger.Warn("failed to read session file", "path", path, "error", err)
		return nil
	}
	if len(records) == 0 {
		return nil
	}

	fresh := m.config.Collector.Collect(records)
	if sessionID == "" && len(m.filter) > 0 {
		fresh = lo.Filter(fresh, func(ev usage.Event, _ int) bool {
			_, ok := m.filter[ev.SessionID]
			return ok
		})
	}
	m.logger.Debug("file ingested",
		"path", path,
		"records", len(records),
		"events", len(fresh))
	return fresh
}

// apply appends fresh events, persists them, recomputes the snapshot and
// publishes it.
func (m *monitor) apply(ctx context.Context, fresh []usage.Event) (Snapshot, error) {
	if len(fresh) > 0 && m.config.Store != nil {
		if _, err := m.config.Store.SaveEvents(ctx, fresh); err != nil {
			m.logger.Warn("failed to persist events", "count", len(fresh), "error", err)
		}
	}

	now := m.config.Clock()

	m.mu.Lock()
	m.events = append(m.events, fresh...)
	if m.config.HoursBack > 0 {
		cutoff := now.Add(-time.Duration(m.config.HoursBack) * time.Hour)
		m.events = lo.Filter(m.events, func(ev usage.Event, _ int) bool {
			return !ev.Timestamp.Before(cutoff)
		})
	}
	all := make([]usage.Event, len(m.events))
	copy(all, m.events)
	m.mu.Unlock()

	snap, err := m.compute(all, fresh, now)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()

	if _, err := m.hub.Publish(snap); err != nil && !errors.Is(err, ErrThrottled) {
		m.logger.Debug("snapshot not published", "error", err)
	}

	return snap, nil
}

// compute derives a snapshot from a private copy of the events. fresh are
// the events added since the previous snapshot.
func (m *monitor) compute(all, fresh []usage.Event, now time.Time) (Snapshot, error) {
	sessionBlocks, err := m.config.Engine.Build(all, now)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to build blocks: %w", err)
	}

	limit, _ := m.config.Estimator.Limit(sessionBlocks, true)
	summary := aggregator.Summarize(all)
	added := aggregator.Summarize(fresh)

	return Snapshot{
		Timestamp:      now,
		Blocks:         sessionBlocks,
		Active:         burnrate.Active(sessionBlocks, now),
		HourlyBurnRate: burnrate.Hourly(sessionBlocks, now),
		P90Limit:       limit,
		Summary:        summary,
		Delta: Delta{
			NewEvents: added.EntryCount,
			Tokens:    added.Tokens.Total(),
			CostUSD:   added.CostUSD,
		},
	}, nil
}

// wanted applies the session filter. Logs of unknown session pass and are
// filtered per event in ingest.
func (m *monitor) wanted(sessionID string) bool {
	if len(m.filter) == 0 || sessionID == "" {
		return true
	}
	_, ok := m.filter[sessionID]
	return ok
}

func (m *monitor) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *monitor) setRunning(running bool) {
	m.mu.Lock()
	m.running = running
	m.mu.Unlock()
}
