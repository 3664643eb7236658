package monitor

import "errors"

var (
	// ErrMonitorClosed is returned by every lifecycle method after Close.
	ErrMonitorClosed = errors.New("usage monitor closed")

	// ErrMonitorRunning is returned by a second Start.
	ErrMonitorRunning = errors.New("usage monitor already running")

	// ErrMonitorNotRunning is returned by Stop before Start.
	ErrMonitorNotRunning = errors.New("usage monitor not running")

	// ErrNoSessions means discovery found no conversation logs to read.
	ErrNoSessions = errors.New("no claude sessions found")

	// ErrInvalidConfig means Config lacks a collaborator the call needs.
	ErrInvalidConfig = errors.New("usage monitor config incomplete")

	// ErrThrottled means a snapshot arrived within the hub's minimum interval.
	ErrThrottled = errors.New("snapshot broadcast throttled")

	// ErrHubClosed is returned by Publish after Close.
	ErrHubClosed = errors.New("snapshot hub closed")
)
