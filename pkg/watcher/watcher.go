package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/usage-monitor/pkg/discovery"
	"github.com/0xmhha/usage-monitor/pkg/logger"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config

	changes chan Change
	errors  chan error

	mu      sync.Mutex
	running bool
	closed  bool
	stop    chan struct{}

	pending  map[string]*time.Timer
	lastOp   map[string]Op
	failures int
	tripped  bool
}

// New creates a new file system watcher.
//
// Parameters:
//   - cfg: Watcher configuration (zero values take defaults)
//   - log: Logger instance
func New(cfg Config, log logger.Logger) (Watcher, error) {
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = DefaultDebounceInterval
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.Match == nil {
		cfg.Match = IsLogFile
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	log.Debug("file watcher created", "debounce_interval", cfg.DebounceInterval)

	return &watcher{
		fsw:     fsw,
		logger:  log,
		config:  cfg,
		changes: make(chan Change, cfg.BufferSize),
		errors:  make(chan error, 10),
		pending: make(map[string]*time.Timer),
		lastOp:  make(map[string]Op),
	}, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context, paths []string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.running = true
	w.stop = make(chan struct{})
	stop := w.stop
	w.mu.Unlock()

	roots := make([]string, 0, len(paths))
	for _, path := range paths {
		expanded := discovery.ExpandHome(path)
		if _, err := os.Stat(expanded); err != nil {
			if os.IsNotExist(err) {
				w.logger.Warn("watch path does not exist, skipping", "path", expanded)
				continue
			}
			w.setRunning(false)
			return fmt.Errorf("failed to stat path %s: %w", expanded, err)
		}
		roots = append(roots, expanded)
	}

	if len(roots) == 0 {
		w.setRunning(false)
		return ErrInvalidPath
	}

	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			w.setRunning(false)
			return fmt.Errorf("failed to add path %s: %w", root, err)
		}
	}

	w.logger.Info("watcher started", "paths", roots)

	go w.loop(ctx, stop)
	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.running {
		return ErrNotStarted
	}

	close(w.stop)
	w.running = false
	w.logger.Info("watcher stopped")
	return nil
}

// Changes implements Watcher.Changes.
func (w *watcher) Changes() <-chan Change {
	return w.changes
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.running {
		close(w.stop)
		w.running = false
	}
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	close(w.changes)
	close(w.errors)
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *watcher) setRunning(running bool) {
	w.mu.Lock()
	w.running = running
	w.mu.Unlock()
}

// loop forwards fsnotify notifications until stopped.
func (w *watcher) loop(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher loop exiting", "reason", ctx.Err())
			return
		case <-stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.fail(err)
		}
	}
}

// handle maps one fsnotify event onto the change feed.
func (w *watcher) handle(ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.fail(err)
			}
			return
		}
	}

	if !w.config.Match(ev.Name) {
		return
	}

	op, ok := translate(ev.Op)
	if !ok {
		return
	}

	w.mu.Lock()
	w.failures = 0
	w.tripped = false
	w.mu.Unlock()

	w.debounce(ev.Name, op)
}

func translate(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	default:
		return 0, false
	}
}

// debounce restarts the quiet-period timer for path.
func (w *watcher) debounce(path string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.lastOp[path] = op
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.config.DebounceInterval)
		return
	}

	w.pending[path] = time.AfterFunc(w.config.DebounceInterval, func() {
		w.flush(path)
	})
}

// flush delivers the pending change for path. A full channel drops the
// change; the next write to the file produces another one.
func (w *watcher) flush(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	op := w.lastOp[path]
	delete(w.pending, path)
	delete(w.lastOp, path)

	select {
	case w.changes <- Change{Path: path, Op: op, Timestamp: time.Now()}:
	default:
		w.logger.Warn("change channel full, dropping change", "path", path)
	}
}

// fail records a watcher error and trips the breaker at the threshold.
func (w *watcher) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	w.failures++
	w.logger.Error("watcher error", "error", err, "failure_count", w.failures)

	report := err
	if w.failures >= w.config.CircuitBreakerThreshold {
		if w.tripped {
			return
		}
		w.tripped = true
		report = ErrCircuitBreakerOpen
	}

	select {
	case w.errors <- report:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

// addTree watches root and every directory beneath it.
func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("error walking path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			if path == root {
				return addErr
			}
			w.logger.Warn("failed to add subdirectory", "path", path, "error", addErr)
			return nil
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}
