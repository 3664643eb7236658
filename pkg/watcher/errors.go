package watcher

import "errors"

var (
	// ErrWatcherClosed is returned by Start and Stop after Close.
	ErrWatcherClosed = errors.New("log watcher closed")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("log watcher already running")

	// ErrNotStarted is returned by Stop before Start.
	ErrNotStarted = errors.New("log watcher not running")

	// ErrCircuitBreakerOpen is sent on Errors once consecutive change
	// handlers have failed past the configured threshold.
	ErrCircuitBreakerOpen = errors.New("change handler failing repeatedly, notifications paused")

	// ErrInvalidPath means none of the configured projects directories exist.
	ErrInvalidPath = errors.New("no projects directory to watch")
)
