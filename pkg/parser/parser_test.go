package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/0xmhha/usage-monitor/pkg/logger"
)

const (
	lineFull    = `{"timestamp":"2024-01-15T10:30:00Z","type":"assistant","sessionId":"a1b2c3d4-e5f6-7890-abcd-ef1234567890","version":"1.0.0","cwd":"/path/to/project","requestId":"req_123","message":{"id":"msg_123","model":"claude-sonnet-4-20250514","usage":{"input_tokens":100,"output_tokens":50,"cache_creation_input_tokens":20,"cache_read_input_tokens":10},"content":[{"type":"text","text":"response"}]},"costUSD":0.05}`
	lineMinimal = `{"timestamp":"2024-01-15T10:31:00Z","message":{"usage":{"input_tokens":10,"output_tokens":5}}}`
	lineUser    = `{"timestamp":"2024-01-15T10:29:00Z","type":"user","message":{"role":"user","content":"hello"}}`
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
		check   func(t *testing.T, rec *Record)
	}{
		{
			name: "valid record with all fields",
			line: lineFull,
			check: func(t *testing.T, rec *Record) {
				if rec.SessionID != "a1b2c3d4-e5f6-7890-abcd-ef1234567890" {
					t.Errorf("SessionID = %s", rec.SessionID)
				}
				if rec.RequestID != "req_123" || rec.Message.ID != "msg_123" {
					t.Errorf("ids = %s/%s, want msg_123/req_123", rec.Message.ID, rec.RequestID)
				}
				if rec.Message.Usage.TotalTokens() != 180 {
					t.Errorf("TotalTokens = %d, want 180", rec.Message.Usage.TotalTokens())
				}
				if rec.CostUSD == nil || *rec.CostUSD != 0.05 {
					t.Errorf("CostUSD = %v, want 0.05", rec.CostUSD)
				}
				if rec.CurrentDir != "/path/to/project" {
					t.Errorf("CurrentDir = %s", rec.CurrentDir)
				}
			},
		},
		{
			name: "model and session are optional",
			line: lineMinimal,
			check: func(t *testing.T, rec *Record) {
				if rec.Message.Model != "" {
					t.Errorf("Model = %q, want empty", rec.Message.Model)
				}
				if rec.CostUSD != nil {
					t.Errorf("CostUSD = %v, want nil", *rec.CostUSD)
				}
				if rec.Message.Usage.TotalTokens() != 15 {
					t.Errorf("TotalTokens = %d, want 15", rec.Message.Usage.TotalTokens())
				}
			},
		},
		{name: "empty line", line: "", wantErr: ErrMalformedJSON},
		{name: "invalid json", line: `{"invalid json`, wantErr: ErrMalformedJSON},
		{name: "user line without usage", line: lineUser, wantErr: ErrNoUsage},
		{
			name:    "missing timestamp",
			line:    `{"message":{"model":"m","usage":{"input_tokens":10}}}`,
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "negative tokens",
			line:    `{"timestamp":"2024-01-15T10:30:00Z","message":{"usage":{"input_tokens":10,"output_tokens":-5}}}`,
			wantErr: ErrNegativeTokenCount,
		},
	}

	p := New(logger.Noop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := p.ParseLine([]byte(tt.line))

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseLine() error = %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name      string
		content   string
		wantCount int
	}{
		{
			name:      "multiple records",
			content:   lineFull + "\n" + lineMinimal + "\n",
			wantCount: 2,
		},
		{
			name:      "malformed and usage-less lines are skipped",
			content:   lineFull + "\n{\"invalid json line\n" + lineUser + "\n\n" + lineMinimal + "\n",
			wantCount: 2,
		},
		{
			name:      "complete final line without newline",
			content:   lineFull + "\n" + lineMinimal,
			wantCount: 2,
		},
		{
			name:      "empty file",
			content:   "",
			wantCount: 0,
		},
	}

	p := New(logger.Noop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, strings.ReplaceAll(tt.name, " ", "_")+".jsonl")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("failed to create test file: %v", err)
			}

			records, offset, err := p.ParseFile(path, 0)
			if err != nil {
				t.Fatalf("ParseFile() error = %v", err)
			}
			if len(records) != tt.wantCount {
				t.Errorf("ParseFile() got %d records, want %d", len(records), tt.wantCount)
			}
			if offset != int64(len(tt.content)) {
				t.Errorf("ParseFile() offset = %d, want %d", offset, len(tt.content))
			}
		})
	}

	t.Run("non-existent file", func(t *testing.T) {
		if _, _, err := p.ParseFile(filepath.Join(tmpDir, "missing.jsonl"), 0); err == nil {
			t.Error("ParseFile() error = nil, want error")
		}
	})
}

func TestParseFile_IncrementalWithPartialWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	p := New(logger.Noop())

	first := lineFull + "\n"
	partial := lineMinimal[:30]
	if err := os.WriteFile(path, []byte(first+partial), 0600); err != nil {
		t.Fatal(err)
	}

	records, offset, err := p.ParseFile(path, 0)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if offset != int64(len(first)) {
		t.Fatalf("offset = %d, want %d (partial line must not be consumed)", offset, len(first))
	}

	// Finish the write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(lineMinimal[30:] + "\n"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	records, offset2, err := p.ParseFile(path, offset)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if !records[0].Timestamp.Equal(time.Date(2024, 1, 15, 10, 31, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", records[0].Timestamp)
	}
	if offset2 <= offset {
		t.Errorf("offset did not advance: %d -> %d", offset, offset2)
	}
}

func TestUsageValidate(t *testing.T) {
	tests := []struct {
		name    string
		usage   Usage
		wantErr bool
	}{
		{"all zero", Usage{}, false},
		{"all positive", Usage{1, 2, 3, 4}, false},
		{"negative input", Usage{InputTokens: -1}, true},
		{"negative cache read", Usage{CacheReadInputTokens: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.usage.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	err := &ParseError{Line: 3, Data: strings.Repeat("x", 150), Err: ErrMalformedJSON}
	if !errors.Is(err, ErrMalformedJSON) {
		t.Error("ParseError must unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "line 3") || !strings.Contains(err.Error(), "...") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func BenchmarkParseLine(b *testing.B) {
	p := New(logger.Noop())
	line := []byte(lineFull)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = p.ParseLine(line)
	}
}
