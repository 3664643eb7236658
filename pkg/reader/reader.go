package reader

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/0xmhha/usage-monitor/pkg/logger"
	"github.com/0xmhha/usage-monitor/pkg/parser"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 100 * time.Millisecond
)

// reader implements the Reader interface.
type reader struct {
	offsets PositionStore
	parser  parser.Parser
	logger  logger.Logger
	retry   backoff
	maxSize int64

	closed atomic.Bool
}

// New creates a Reader that tails session logs from their stored offsets.
//
// Parameters:
//   - cfg: Reader configuration; zero retry and size fields take defaults
//   - log: Logger instance
//
// Returns:
//   - Configured Reader
//   - ErrMissingDependency if the store or parser is nil
func New(cfg Config, log logger.Logger) (Reader, error) {
	switch {
	case cfg.PositionStore == nil:
		return nil, fmt.Errorf("%w: offset store", ErrMissingDependency)
	case cfg.Parser == nil:
		return nil, fmt.Errorf("%w: parser", ErrMissingDependency)
	}

	r := &reader{
		offsets: cfg.PositionStore,
		parser:  cfg.Parser,
		logger:  log,
		retry:   backoff{base: cfg.RetryDelay, attempts: cfg.MaxRetries},
		maxSize: cfg.MaxFileSize,
	}
	if r.retry.attempts == 0 {
		r.retry.attempts = defaultMaxRetries
	}
	if r.retry.base == 0 {
		r.retry.base = defaultRetryDelay
	}
	if r.maxSize == 0 {
		r.maxSize = parser.MaxFileSize
	}

	return r, nil
}

// Read implements Reader.Read.
func (r *reader) Read(ctx context.Context, path string) ([]parser.Record, error) {
	if r.closed.Load() {
		return nil, ErrReaderClosed
	}

	from, err := r.offsets.GetPosition(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load offset for %s: %w", path, err)
	}

	records, to, err := r.tail(ctx, path, from)
	if err != nil {
		return nil, err
	}

	// A failed save only means the next Read repeats these records, and
	// the event collector drops repeats by message and request id.
	if to != from {
		if err := r.offsets.SetPosition(path, to); err != nil {
			r.logger.Error("failed to save offset", "path", path, "offset", to, "error", err)
		}
	}

	r.logger.Debug("session log read", "path", path, "records", len(records), "from", from, "to", to)
	return records, nil
}

// ReadFrom implements Reader.ReadFrom.
func (r *reader) ReadFrom(ctx context.Context, path string, offset int64) ([]parser.Record, int64, error) {
	switch {
	case r.closed.Load():
		return nil, 0, ErrReaderClosed
	case offset < 0:
		return nil, 0, ErrInvalidOffset
	}
	return r.tail(ctx, path, offset)
}

// Reset implements Reader.Reset.
func (r *reader) Reset(path string) error {
	if r.closed.Load() {
		return ErrReaderClosed
	}
	if err := r.offsets.SetPosition(path, 0); err != nil {
		return fmt.Errorf("failed to reset offset for %s: %w", path, err)
	}
	r.logger.Info("offset reset", "path", path)
	return nil
}

// Close implements Reader.Close. The offset store is owned by the caller.
func (r *reader) Close() error {
	r.closed.Store(true)
	return nil
}

// statLog sizes a session log, mapping OS errors onto package sentinels.
func statLog(path string) (int64, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return info.Size(), nil
	case os.IsNotExist(err):
		return 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case os.IsPermission(err):
		return 0, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
}

// readSince parses the records appended to path after offset.
func (r *reader) readSince(ctx context.Context, path string, offset int64) ([]parser.Record, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, offset, err
	}

	size, err := statLog(path)
	if err != nil {
		return nil, offset, err
	}
	if size > r.maxSize {
		return nil, offset, fmt.Errorf("%w: %s (%d bytes)", ErrFileTooLarge, path, size)
	}

	// A log shorter than its stored offset was rewritten.
	if offset > size {
		r.logger.Warn("session log shrank, rereading", "path", path, "offset", offset, "size", size)
		offset = 0
	}
	if offset == size {
		return []parser.Record{}, offset, nil
	}

	records, next, err := r.parser.ParseFile(path, offset)
	if err != nil {
		return nil, offset, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, next, nil
}
