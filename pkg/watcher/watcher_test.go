package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/usage-monitor/pkg/logger"
)

const testDebounce = 50 * time.Millisecond

// startWatcher starts a watcher on dir and registers cleanup.
func startWatcher(t *testing.T, dir string, cfg Config) Watcher {
	t.Helper()

	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = testDebounce
	}
	w, err := New(cfg, logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, w.Start(ctx, []string{dir}))
	return w
}

// nextChange waits for one change or fails the test.
func nextChange(t *testing.T, w Watcher) Change {
	t.Helper()

	select {
	case c, ok := <-w.Changes():
		require.True(t, ok, "change channel closed")
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

// expectQuiet asserts that no change arrives within d.
func expectQuiet(t *testing.T, w Watcher, d time.Duration) {
	t.Helper()

	select {
	case c := <-w.Changes():
		t.Errorf("unexpected change: %+v", c)
	case <-time.After(d):
	}
}

func TestNew_Defaults(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	impl, ok := w.(*watcher)
	require.True(t, ok)
	assert.Equal(t, DefaultDebounceInterval, impl.config.DebounceInterval)
	assert.Equal(t, 5, impl.config.CircuitBreakerThreshold)
	assert.Equal(t, 100, cap(impl.changes))
	assert.True(t, impl.config.Match("a/b.jsonl"))
	assert.False(t, impl.config.Match("a/b.json"))
}

func TestStart_Errors(t *testing.T) {
	t.Run("no existing path", func(t *testing.T) {
		w, err := New(Config{}, logger.Noop())
		require.NoError(t, err)
		defer func() { _ = w.Close() }()

		err = w.Start(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
		assert.True(t, errors.Is(err, ErrInvalidPath))

		// A failed start leaves the watcher startable.
		assert.NoError(t, w.Start(context.Background(), []string{t.TempDir()}))
	})

	t.Run("already started", func(t *testing.T) {
		w := startWatcher(t, t.TempDir(), Config{})
		assert.True(t, errors.Is(w.Start(context.Background(), []string{t.TempDir()}), ErrAlreadyStarted))
	})

	t.Run("after close", func(t *testing.T) {
		w, err := New(Config{}, logger.Noop())
		require.NoError(t, err)
		require.NoError(t, w.Close())
		assert.True(t, errors.Is(w.Start(context.Background(), []string{t.TempDir()}), ErrWatcherClosed))
	})
}

func TestStopAndClose(t *testing.T) {
	w, err := New(Config{}, logger.Noop())
	require.NoError(t, err)

	assert.True(t, errors.Is(w.Stop(), ErrNotStarted))

	require.NoError(t, w.Start(context.Background(), []string{t.TempDir()}))
	assert.NoError(t, w.Stop())

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close(), "Close must be idempotent")
	assert.True(t, errors.Is(w.Stop(), ErrWatcherClosed))

	_, open := <-w.Changes()
	assert.False(t, open)
	_, open = <-w.Errors()
	assert.False(t, open)
}

func TestChange_NewFile(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Config{})

	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0600))

	c := nextChange(t, w)
	assert.Equal(t, path, c.Path)
	assert.Contains(t, []Op{OpCreate, OpWrite}, c.Op)
	assert.False(t, c.Timestamp.IsZero())
}

func TestChange_Append(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0600))

	w := startWatcher(t, dir, Config{})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600) // nolint:gosec
	require.NoError(t, err)
	_, err = f.WriteString("{}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	c := nextChange(t, w)
	assert.Equal(t, path, c.Path)
	assert.Equal(t, OpWrite, c.Op)
}

func TestChange_Remove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0600))

	w := startWatcher(t, dir, Config{})
	require.NoError(t, os.Remove(path))

	c := nextChange(t, w)
	assert.Equal(t, OpRemove, c.Op)
}

func TestChange_Debounced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	w := startWatcher(t, dir, Config{DebounceInterval: 200 * time.Millisecond})

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("line\n"), 0600))
		time.Sleep(20 * time.Millisecond)
	}

	c := nextChange(t, w)
	assert.Equal(t, path, c.Path)
	expectQuiet(t, w, 400*time.Millisecond)
}

func TestChange_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Config{})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600))
	expectQuiet(t, w, 300*time.Millisecond)
}

func TestChange_CustomMatch(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Config{
		Match: func(path string) bool { return filepath.Ext(path) == ".log" },
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.jsonl"), []byte("x"), 0600))
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	c := nextChange(t, w)
	assert.Equal(t, path, c.Path)
}

func TestChange_ExistingSubdirectory(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "-Users-dev-app")
	require.NoError(t, os.MkdirAll(project, 0700))

	w := startWatcher(t, dir, Config{})

	path := filepath.Join(project, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0600))

	assert.Equal(t, path, nextChange(t, w).Path)
}

func TestChange_NewProjectDirectory(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, Config{})

	project := filepath.Join(dir, "-Users-dev-new")
	require.NoError(t, os.MkdirAll(project, 0700))

	// Give the loop time to register the new directory.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(project, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0600))

	assert.Equal(t, path, nextChange(t, w).Path)
}

func TestCircuitBreaker(t *testing.T) {
	w, err := New(Config{CircuitBreakerThreshold: 2}, logger.Noop())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	impl := w.(*watcher)
	boom := errors.New("boom")

	impl.fail(boom)
	impl.fail(boom)
	impl.fail(boom)

	assert.Equal(t, boom, <-w.Errors())
	assert.Equal(t, ErrCircuitBreakerOpen, <-w.Errors())
	select {
	case err := <-w.Errors():
		t.Errorf("breaker reported twice: %v", err)
	default:
	}

	// A handled notification closes the breaker again.
	impl.handle(fsnotify.Event{Name: "x.jsonl", Op: fsnotify.Write})
	assert.Zero(t, impl.failures)
	assert.False(t, impl.tripped)
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{Op(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}
