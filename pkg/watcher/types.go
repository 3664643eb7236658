// Package watcher turns file system notifications under the Claude projects
// directories into a debounced feed of log file changes.
//
// Claude Code appends to a conversation log many times per response, so
// raw notifications are coalesced per path: a change is delivered once the
// file has been quiet for the debounce interval. Directories created after
// Start (new projects) are added to the watch set automatically.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{}, log)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"~/.claude/projects"}); err != nil {
//	    return err
//	}
//	for change := range w.Changes() {
//	    fmt.Printf("%s %s\n", change.Op, change.Path)
//	}
package watcher

import (
	"context"
	"strings"
	"time"
)

// DefaultDebounceInterval is the quiet period before a change is delivered.
const DefaultDebounceInterval = 500 * time.Millisecond

// Op describes what happened to a watched file.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Change is a debounced notification for one log file.
type Change struct {
	// Path is the file that changed.
	Path string

	// Op is the last operation observed during the debounce window.
	Op Op

	// Timestamp is when the last raw notification arrived.
	Timestamp time.Time
}

// Watcher delivers debounced log file changes.
type Watcher interface {
	// Start begins watching the given directories recursively.
	//
	// Parameters:
	//   - ctx: Context; cancelling it stops event processing
	//   - paths: Root directories (a leading ~ is expanded)
	//
	// Missing paths are skipped. Returns ErrInvalidPath when none of the
	// paths exist. Start returns once the watches are registered; changes
	// are processed in a background goroutine.
	Start(ctx context.Context, paths []string) error

	// Stop halts event processing without releasing the watcher.
	Stop() error

	// Changes returns the debounced change feed.
	// The channel is closed by Close.
	Changes() <-chan Change

	// Errors returns non-fatal watcher errors. ErrCircuitBreakerOpen is
	// sent once repeated failures cross the configured threshold.
	// The channel is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases its resources. Safe to call
	// more than once.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval is the quiet period per path before delivery.
	// Default: 500ms.
	DebounceInterval time.Duration

	// CircuitBreakerThreshold is the number of consecutive notification
	// errors after which the watcher reports ErrCircuitBreakerOpen.
	// A successfully handled notification resets the count.
	// Default: 5.
	CircuitBreakerThreshold int

	// BufferSize is the capacity of the change channel.
	// Default: 100.
	BufferSize int

	// Match selects which files produce changes.
	// Default: files ending in ".jsonl".
	Match func(path string) bool
}

// IsLogFile reports whether path names a JSONL conversation log.
func IsLogFile(path string) bool {
	return strings.HasSuffix(path, ".jsonl")
}
