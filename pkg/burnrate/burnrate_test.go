package burnrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/usage-monitor/pkg/usage"
)

var start = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func block(from time.Time, lastOffset time.Duration, tokens int, cost float64, active bool) usage.SessionBlock {
	last := from.Add(lastOffset)
	return usage.SessionBlock{
		ID:            from.Format(time.RFC3339),
		StartTime:     from,
		EndTime:       from.Add(5 * time.Hour),
		ActualEndTime: &last,
		TokenCounts:   usage.TokenCounts{Input: tokens},
		CostUSD:       cost,
		IsActive:      active,
	}
}

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		block usage.SessionBlock
		want  *usage.BurnRate
	}{
		{
			name:  "active block",
			block: block(start, 2*time.Hour, 1200, 2.4, true),
			want:  &usage.BurnRate{TokensPerMinute: 10, CostPerHour: 1.2},
		},
		{
			name:  "inactive block",
			block: block(start, 2*time.Hour, 1200, 2.4, false),
		},
		{
			name:  "less than a minute elapsed",
			block: block(start, 30*time.Second, 1200, 2.4, true),
		},
		{
			name:  "no tokens",
			block: block(start, 2*time.Hour, 0, 0, true),
		},
		{
			name:  "gap block",
			block: usage.SessionBlock{StartTime: start, EndTime: start.Add(5 * time.Hour), IsGap: true, IsActive: true},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Calculate(tt.block)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, tt.want.TokensPerMinute, got.TokensPerMinute, 1e-9)
			assert.InDelta(t, tt.want.CostPerHour, got.CostPerHour, 1e-9)
		})
	}
}

func TestProject(t *testing.T) {
	t.Parallel()

	b := block(start, 2*time.Hour, 1200, 2.4, true)

	got := Project(b, start.Add(2*time.Hour))
	require.NotNil(t, got)
	assert.Equal(t, 3000, got.ProjectedTotalTokens)
	assert.InDelta(t, 6.0, got.ProjectedTotalCost, 1e-9)
	assert.Equal(t, 180, got.RemainingMinutes)

	t.Run("remaining minutes are truncated", func(t *testing.T) {
		got := Project(b, start.Add(4*time.Hour+59*time.Minute+30*time.Second))
		require.NotNil(t, got)
		assert.Equal(t, 0, got.RemainingMinutes)
	})

	t.Run("window already ended", func(t *testing.T) {
		assert.Nil(t, Project(b, b.EndTime))
		assert.Nil(t, Project(b, b.EndTime.Add(time.Minute)))
	})

	t.Run("no burn rate", func(t *testing.T) {
		assert.Nil(t, Project(block(start, 2*time.Hour, 1200, 2.4, false), start.Add(2*time.Hour)))
	})
}

func TestHourly(t *testing.T) {
	t.Parallel()

	now := start.Add(2 * time.Hour)

	blocks := []usage.SessionBlock{
		// Entirely before the trailing hour.
		block(start.Add(-4*time.Hour), time.Hour, 5000, 1, false),
		{StartTime: start.Add(-3 * time.Hour), EndTime: start, IsGap: true},
		// Half of this closed block overlaps [now-1h, now].
		block(start, 90*time.Minute, 900, 1, false),
		// Active block spans two hours up to now.
		block(start, 30*time.Minute, 1200, 1, true),
	}

	// (300 + 600) / 60
	assert.InDelta(t, 15.0, Hourly(blocks, now), 1e-9)
	assert.Zero(t, Hourly(nil, now))
	assert.Zero(t, Hourly(blocks[:2], now))
}

func TestEnrich_DoesNotMutate(t *testing.T) {
	t.Parallel()

	now := start.Add(2 * time.Hour)
	blocks := []usage.SessionBlock{
		block(start.Add(-10*time.Hour), time.Hour, 100, 1, false),
		block(start, 2*time.Hour, 1200, 2.4, true),
	}
	before := make([]usage.SessionBlock, len(blocks))
	copy(before, blocks)

	got := Enrich(blocks, now)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].BurnRate)
	assert.Nil(t, got[0].Projection)
	assert.NotNil(t, got[1].BurnRate)
	assert.NotNil(t, got[1].Projection)
	assert.Equal(t, before, blocks)

	active := Active(blocks, now)
	require.NotNil(t, active)
	assert.Equal(t, blocks[1].ID, active.Block.ID)
	assert.Nil(t, Active(blocks[:1], now))
}
