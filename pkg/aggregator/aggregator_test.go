package aggregator

import (
	"sync"
	"testing"
	"time"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

var t0 = time.Date(2024, 7, 15, 9, 30, 0, 0, time.UTC)

func ev(session, model string, ts time.Time, input, output int, cost float64) usage.Event {
	return usage.Event{
		Timestamp: ts,
		SessionID: session,
		Model:     model,
		Tokens:    usage.TokenCounts{Input: input, Output: output},
		CostUSD:   cost,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	agg := New(Config{})
	if agg == nil {
		t.Fatal("New() returned nil")
	}
	if stats := agg.Stats(); stats.Count != 0 {
		t.Errorf("Stats().Count = %d, want 0", stats.Count)
	}
}

func TestAdd_MultipleEvents(t *testing.T) {
	t.Parallel()

	agg := New(Config{TrackPercentiles: true})

	events := []usage.Event{
		ev("session-1", "claude-3-5-sonnet", t0, 100, 50, 0.01),
		ev("session-1", "claude-3-5-sonnet", t0.Add(time.Minute), 200, 100, 0.02),
		ev("session-2", "claude-3-opus", t0.Add(2*time.Minute), 150, 75, 0.03),
	}
	for _, e := range events {
		agg.Add(e)
	}

	stats := agg.Stats()
	if stats.Count != 3 {
		t.Errorf("Stats().Count = %d, want 3", stats.Count)
	}
	if stats.SessionCount != 2 {
		t.Errorf("Stats().SessionCount = %d, want 2", stats.SessionCount)
	}
	if stats.TotalTokens != 675 {
		t.Errorf("Stats().TotalTokens = %d, want 675", stats.TotalTokens)
	}
	if stats.Tokens.Input != 450 {
		t.Errorf("Stats().Tokens.Input = %d, want 450", stats.Tokens.Input)
	}
	if stats.AvgTokens != 225.0 {
		t.Errorf("Stats().AvgTokens = %f, want 225.0", stats.AvgTokens)
	}
	if stats.MinTokens != 150 || stats.MaxTokens != 300 {
		t.Errorf("Stats() min/max = %d/%d, want 150/300", stats.MinTokens, stats.MaxTokens)
	}
	if diff := stats.CostUSD - 0.06; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Stats().CostUSD = %f, want 0.06", stats.CostUSD)
	}
	if !stats.FirstSeen.Equal(t0) || !stats.LastSeen.Equal(t0.Add(2*time.Minute)) {
		t.Errorf("Stats() first/last = %v/%v", stats.FirstSeen, stats.LastSeen)
	}
}

func TestGroupedStats_ByModel(t *testing.T) {
	t.Parallel()

	agg := New(Config{GroupBy: []Dimension{DimModel}})
	agg.Add(ev("s1", "claude-3-5-sonnet", t0, 100, 50, 0))
	agg.Add(ev("s1", "claude-3-opus", t0, 300, 100, 0))
	agg.Add(ev("s2", "claude-3-5-sonnet", t0, 200, 100, 0))

	grouped := agg.GroupedStats()
	if len(grouped) != 2 {
		t.Fatalf("GroupedStats() returned %d groups, want 2", len(grouped))
	}
	if got := grouped["claude-3-5-sonnet"].TotalTokens; got != 450 {
		t.Errorf("sonnet TotalTokens = %d, want 450", got)
	}
	if got := grouped["claude-3-opus"].Count; got != 1 {
		t.Errorf("opus Count = %d, want 1", got)
	}
}

func TestGroupedStats_ByDateAndHour(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dim  Dimension
		want []string
	}{
		{DimDate, []string{"2024-07-14", "2024-07-15"}},
		{DimHour, []string{"2024-07-14 09:00", "2024-07-15 09:00", "2024-07-15 10:00"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.dim), func(t *testing.T) {
			t.Parallel()

			agg := New(Config{GroupBy: []Dimension{tt.dim}})
			agg.Add(ev("s", "m", t0.Add(-24*time.Hour), 1, 0, 0))
			agg.Add(ev("s", "m", t0, 1, 0, 0))
			agg.Add(ev("s", "m", t0.Add(45*time.Minute), 1, 0, 0))

			grouped := agg.GroupedStats()
			if len(grouped) != len(tt.want) {
				t.Fatalf("GroupedStats() returned %d groups, want %d", len(grouped), len(tt.want))
			}
			for _, key := range tt.want {
				if _, ok := grouped[key]; !ok {
					t.Errorf("GroupedStats() missing key %q", key)
				}
			}
		})
	}
}

func TestTopSessions(t *testing.T) {
	t.Parallel()

	agg := New(Config{GroupBy: []Dimension{DimSession, DimModel}})
	agg.Add(ev("session-1", "claude-3-5-sonnet", t0, 1000, 500, 0))
	agg.Add(ev("session-2", "claude-3-5-sonnet", t0, 2000, 1000, 0))
	agg.Add(ev("session-2", "claude-3-opus", t0, 100, 0, 0))
	agg.Add(ev("session-3", "claude-3-5-sonnet", t0, 500, 250, 0))

	top := agg.TopSessions(2)
	if len(top) != 2 {
		t.Fatalf("TopSessions(2) returned %d sessions, want 2", len(top))
	}
	if top[0].SessionID != "session-2" || top[0].Statistics.TotalTokens != 3100 {
		t.Errorf("TopSessions[0] = %s/%d, want session-2/3100", top[0].SessionID, top[0].Statistics.TotalTokens)
	}
	if len(top[0].Models) != 2 {
		t.Errorf("TopSessions[0].Models = %v, want 2 models", top[0].Models)
	}
	if top[1].SessionID != "session-1" {
		t.Errorf("TopSessions[1].SessionID = %s, want session-1", top[1].SessionID)
	}

	if got := New(Config{GroupBy: []Dimension{DimModel}}).TopSessions(1); got != nil {
		t.Errorf("TopSessions without session dimension = %v, want nil", got)
	}
}

func TestPercentiles(t *testing.T) {
	t.Parallel()

	agg := New(Config{TrackPercentiles: true})
	for _, n := range []int{100, 150, 200, 250, 300} {
		agg.Add(ev("s", "m", t0, n, 0, 0))
	}

	stats := agg.Stats()
	if stats.P50Tokens != 200 {
		t.Errorf("Stats().P50Tokens = %d, want 200", stats.P50Tokens)
	}
	if stats.P95Tokens != 290 {
		t.Errorf("Stats().P95Tokens = %d, want 290", stats.P95Tokens)
	}
	if stats.P99Tokens < 297 || stats.P99Tokens > 298 {
		t.Errorf("Stats().P99Tokens = %d, want ~298", stats.P99Tokens)
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	values := []float64{1000, 2000, 3000, 4000, 5000, 6000, 7000, 8000, 9000, 10000}

	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"p90 interpolates", values, 90, 9100},
		{"median of even count", values, 50, 5500},
		{"p0 is minimum", values, 0, 1000},
		{"p100 is maximum", values, 100, 10000},
		{"single value", []float64{42}, 90, 42},
		{"empty", nil, 90, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Percentile(tt.values, tt.p)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("Percentile(%v) = %f, want %f", tt.p, got, tt.want)
			}
		})
	}

	if got := int(Percentile(values, 90)); got != 9100 {
		t.Errorf("int(Percentile(90)) = %d, want 9100", got)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()

	agg := New(Config{GroupBy: []Dimension{DimModel}, TrackPercentiles: true})
	agg.Add(ev("s", "m", t0, 100, 50, 0))
	agg.Reset()

	if stats := agg.Stats(); stats.Count != 0 || stats.TotalTokens != 0 {
		t.Errorf("Stats() after reset = %+v, want zero", stats)
	}
	if grouped := agg.GroupedStats(); len(grouped) != 0 {
		t.Errorf("GroupedStats() returned %d groups after reset, want 0", len(grouped))
	}
}

func TestConcurrency(t *testing.T) {
	t.Parallel()

	agg := New(Config{GroupBy: []Dimension{DimSession}, TrackPercentiles: true})

	const goroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				agg.Add(ev("session-1", "m", t0, 100, 50, 0))
				_ = agg.Stats()
			}
		}()
	}
	wg.Wait()

	if got := agg.Stats().Count; got != goroutines*eventsPerGoroutine {
		t.Errorf("Stats().Count = %d, want %d", got, goroutines*eventsPerGoroutine)
	}
}
