package parser

import (
	"errors"
	"fmt"
)

// Common errors returned by the parser package.
var (
	// ErrInvalidTimestamp is returned when a record has a zero timestamp.
	ErrInvalidTimestamp = errors.New("invalid timestamp: must not be zero")

	// ErrNoUsage is returned for lines without a message.usage object.
	ErrNoUsage = errors.New("record has no usage")

	// ErrNegativeTokenCount is returned when any token count is negative.
	ErrNegativeTokenCount = errors.New("invalid token count: must be non-negative")

	// ErrMalformedJSON is returned when a JSONL line cannot be parsed.
	ErrMalformedJSON = errors.New("malformed JSON line")

	// ErrLineTooLong is returned for lines above MaxLineLength.
	ErrLineTooLong = errors.New("line exceeds maximum length")

	// ErrFileTooLarge is returned when a file exceeds the maximum size limit.
	ErrFileTooLarge = errors.New("file size exceeds maximum limit")
)

// maxErrorData bounds the line excerpt in ParseError messages.
const maxErrorData = 100

// ParseError provides context about a skipped line.
type ParseError struct {
	Line int    // Line number relative to the read offset (1-indexed)
	Data string // The offending line
	Err  error  // Underlying error
}

func (e *ParseError) Error() string {
	data := e.Data
	if len(data) > maxErrorData {
		data = data[:maxErrorData] + "..."
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s: %v", e.Line, data, e.Err)
	}
	return fmt.Sprintf("parse error: %s: %v", data, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
