// Package reader reads conversation logs incrementally, remembering how far
// each file has been consumed.
//
// Offsets are persisted in a bbolt database so a restart resumes where the
// previous run stopped. A file that shrinks below its stored offset is
// treated as rewritten and read again from the start.
//
// Example usage:
//
//	db, err := reader.OpenDB(cfg.Storage.DBPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	store, err := reader.NewBoltPositionStore(db)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := reader.New(reader.Config{
//	    PositionStore: store,
//	    Parser:        parser.New(log),
//	}, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	records, err := r.Read(ctx, "/path/to/session.jsonl")
package reader

import (
	"context"
	"time"

	"github.com/0xmhha/usage-monitor/pkg/parser"
)

// PositionStore remembers how many bytes of each session log have been
// consumed. Offsets always fall on a line boundary.
type PositionStore interface {
	// GetPosition returns the stored offset for path, or 0 when the log
	// has never been read.
	GetPosition(path string) (int64, error)

	// SetPosition records offset for path. Negative offsets are rejected
	// with ErrInvalidOffset.
	SetPosition(path string, offset int64) error

	// Positions returns a copy of every stored offset keyed by path.
	Positions() (map[string]int64, error)

	// Clear forgets every offset so the next read starts from scratch.
	Clear() error
}

// Reader tails session logs, returning only records appended since the
// previous call.
type Reader interface {
	// Read returns the records written to path since its stored offset and
	// advances the offset past them.
	//
	// Parameters:
	//   - ctx: Cancels the read and any retry backoff
	//   - path: Absolute path to a session log
	//
	// Returns:
	//   - New records, empty when the log has not grown
	//   - ErrFileNotFound once retries are exhausted for a missing log,
	//     or the first non-transient error
	Read(ctx context.Context, path string) ([]parser.Record, error)

	// ReadFrom parses path starting at offset and returns the records with
	// the offset after the last complete line. The stored offset is left
	// untouched.
	ReadFrom(ctx context.Context, path string, offset int64) ([]parser.Record, int64, error)

	// Reset rewinds the stored offset for path to zero.
	Reset(path string) error

	// Close marks the reader unusable. It does not close the PositionStore.
	Close() error
}

// Config contains reader configuration.
type Config struct {
	// PositionStore holds per-log offsets. Required.
	PositionStore PositionStore

	// Parser turns log lines into records. Required.
	Parser parser.Parser

	// MaxRetries bounds retries of transient failures such as a log that
	// does not exist yet. Default: 3.
	MaxRetries int

	// RetryDelay is the first backoff pause; each retry doubles it.
	// Default: 100ms.
	RetryDelay time.Duration

	// MaxFileSize rejects logs above this many bytes.
	// Default: parser.MaxFileSize.
	MaxFileSize int64
}
