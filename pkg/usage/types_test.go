package usage

import (
	"errors"
	"testing"
	"time"
)

func TestTokenCounts_Total(t *testing.T) {
	t.Parallel()

	tc := TokenCounts{Input: 100, Output: 50, CacheCreation: 25, CacheRead: 10}
	if got := tc.Total(); got != 185 {
		t.Errorf("Total() = %d, want 185", got)
	}

	sum := tc.Add(TokenCounts{Input: 1, Output: 2, CacheCreation: 3, CacheRead: 4})
	if sum.Total() != 195 {
		t.Errorf("Add().Total() = %d, want 195", sum.Total())
	}
	if tc.Total() != 185 {
		t.Error("Add() modified the receiver")
	}
}

func TestEvent_DedupKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"both present", Event{MessageID: "msg_1", RequestID: "req_1"}, "msg_1:req_1"},
		{"missing request", Event{MessageID: "msg_1"}, ""},
		{"missing message", Event{RequestID: "req_1"}, ""},
		{"none", Event{}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.ev.DedupKey(); got != tt.want {
				t.Errorf("DedupKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionBlock_Duration(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	last := start.Add(30 * time.Second)

	b := SessionBlock{
		StartTime:     start,
		EndTime:       start.Add(DefaultBlockDuration),
		ActualEndTime: &last,
	}

	if got := b.ElapsedMinutes(); got != 0.5 {
		t.Errorf("ElapsedMinutes() = %f, want 0.5", got)
	}
	if got := b.DurationMinutes(); got != 1.0 {
		t.Errorf("DurationMinutes() = %f, want 1.0 (floored)", got)
	}

	gap := SessionBlock{StartTime: start, EndTime: start.Add(2 * time.Hour), IsGap: true}
	if got := gap.DurationMinutes(); got != 120 {
		t.Errorf("gap DurationMinutes() = %f, want 120", got)
	}
}

func TestParseCostMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    CostMode
		wantErr bool
	}{
		{"cached", CostModeCached, false},
		{"calculate", CostModeCalculated, false},
		{"Calculated", CostModeCalculated, false},
		{" AUTO ", CostModeAuto, false},
		{"bogus", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCostMode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCostMode) {
					t.Errorf("ParseCostMode(%q) error = %v, want ErrInvalidCostMode", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCostMode(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseCostMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
