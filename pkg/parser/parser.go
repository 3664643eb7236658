package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/usage-monitor/pkg/logger"
)

const (
	// MaxFileSize is the maximum allowed JSONL file size (100MB).
	MaxFileSize = 100 * 1024 * 1024

	// MaxLineLength is the maximum allowed line length (10MB). Conversation
	// lines embed tool output and can be large.
	MaxLineLength = 10 * 1024 * 1024

	readBufferSize = 64 * 1024
)

// Parser provides methods for parsing Claude Code JSONL files.
type Parser interface {
	// ParseFile reads a JSONL file from the given offset and returns
	// the parsed records along with the new file offset.
	//
	// Parameters:
	//   - path: Path to the JSONL file
	//   - offset: Byte offset to start reading from (0 for beginning)
	//
	// Returns:
	//   - Slice of successfully parsed records
	//   - New offset, just past the last consumed line
	//   - Error if file cannot be read or is too large
	//
	// Malformed lines are logged and skipped. A trailing line without a
	// newline that does not parse is treated as a write in progress: it is
	// left unconsumed so the next call sees it whole.
	//
	// Thread-safety: This method is safe to call concurrently with different files.
	ParseFile(path string, offset int64) ([]Record, int64, error)

	// ParseLine parses a single JSONL line into a Record.
	//
	// Returns ErrMalformedJSON for invalid JSON and a validation error
	// (ErrInvalidTimestamp, ErrNoUsage, ErrNegativeTokenCount) otherwise.
	//
	// Thread-safety: This method is thread-safe.
	ParseLine(line []byte) (*Record, error)
}

// jsonlParser implements the Parser interface.
type jsonlParser struct {
	logger logger.Logger
}

// New creates a new Parser instance.
func New(log logger.Logger) Parser {
	if log == nil {
		log = logger.Noop()
	}
	return &jsonlParser{logger: log}
}

// ParseFile implements Parser.ParseFile.
func (p *jsonlParser) ParseFile(path string, offset int64) ([]Record, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, offset, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return nil, offset, fmt.Errorf("%w: size=%d, max=%d",
			ErrFileTooLarge, info.Size(), MaxFileSize)
	}

	// #nosec G304: path comes from discovery or the watcher
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return nil, offset, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			p.logger.Debug("failed to close file", "path", path, "error", closeErr)
		}
	}()

	if offset > 0 {
		if _, seekErr := f.Seek(offset, io.SeekStart); seekErr != nil {
			return nil, offset, fmt.Errorf("failed to seek to offset %d: %w", offset, seekErr)
		}
	}

	records := make([]Record, 0, 100)
	br := bufio.NewReaderSize(f, readBufferSize)
	consumed := offset
	lineNum := 0
	skipped := 0

	for {
		line, readErr := br.ReadBytes('\n')
		if len(line) == 0 && errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return records, consumed, fmt.Errorf("failed to read line %d: %w", lineNum+1, readErr)
		}

		complete := readErr == nil
		lineNum++

		rec, parseErr := p.parseBytes(line)
		if parseErr != nil && !complete && errors.Is(parseErr, ErrMalformedJSON) {
			// Partial trailing write; leave it for the next read.
			break
		}

		consumed += int64(len(line))
		if parseErr != nil {
			skipped++
			if !errors.Is(parseErr, ErrNoUsage) {
				p.logger.Debug("skipping line",
					"path", path,
					"error", &ParseError{Line: lineNum, Data: string(bytes.TrimSpace(line)), Err: parseErr})
			}
		} else {
			records = append(records, *rec)
		}

		if !complete {
			break
		}
	}

	p.logger.Debug("parsed file",
		"path", path,
		"records", len(records),
		"skipped", skipped,
		"offset", consumed)

	return records, consumed, nil
}

// ParseLine implements Parser.ParseLine.
func (p *jsonlParser) ParseLine(line []byte) (*Record, error) {
	return p.parseBytes(line)
}

func (p *jsonlParser) parseBytes(line []byte) (*Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedJSON)
	}
	if len(line) > MaxLineLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrLineTooLong, len(line))
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &rec, nil
}
