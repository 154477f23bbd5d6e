package slices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 11, 5, 12, 0, 0, 0, time.UTC)

func TestToWeek(t *testing.T) {
	assert.Equal(t, "2025-W45", ToWeek(now))
	assert.Equal(t, "2020-W53", ToWeek(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-W01", ToWeek(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-11-05", ToDay(now))
}

func TestWeekDates(t *testing.T) {
	assert.Equal(t, []string{
		"2025-11-03", "2025-11-04", "2025-11-05", "2025-11-06",
		"2025-11-07", "2025-11-08", "2025-11-09",
	}, WeekDates("2025-W45"))
	assert.Equal(t, "2024-12-30", WeekDates("2025-W01")[0])
	assert.Nil(t, WeekDates("2025-11-05"))
}

func TestRange(t *testing.T) {
	from, to, ok := Range("2025-W45")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC), to)

	from, to, ok = Range("2025-11-05")
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, to.Sub(from))

	_, _, ok = Range("last week")
	assert.False(t, ok)
}

func TestPreviousPeriod(t *testing.T) {
	tests := map[string]string{
		"2025-W45":   "2025-W44",
		"2025-W01":   "2024-W52",
		"2021-W01":   "2020-W53",
		"2025-03-01": "2025-02-28",
		"2024-01-01": "2023-12-31",
		"whenever":   "whenever",
	}
	for in, want := range tests {
		assert.Equal(t, want, PreviousPeriod(in), in)
	}
}

func TestResolvePeriod(t *testing.T) {
	tests := []struct {
		name   string
		forced string
		g      Granularity
		want   string
		ok     bool
	}{
		{"current week", "", Weekly, "2025-W45", true},
		{"current day", "", Daily, "2025-11-05", true},
		{"short week is padded", "2025-W7", Weekly, "2025-W07", true},
		{"date coerced to week", "2025-01-01", Weekly, "2025-W01", true},
		{"timestamp coerced to day", "2025-10-01T22:00:00Z", Daily, "2025-10-01", true},
		{"week zero falls back", "2025-W00", Weekly, "2025-W45", false},
		{"garbage falls back", "soon", Daily, "2025-11-05", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolvePeriod(tt.forced, tt.g, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestTrendSignal(t *testing.T) {
	assert.Equal(t, Rising, TrendSignal(0.2))
	assert.Equal(t, Rising, TrendSignal(1.5))
	assert.Equal(t, Falling, TrendSignal(-0.2))
	assert.Equal(t, Steady, TrendSignal(0.19))
	assert.Equal(t, Steady, TrendSignal(-0.1))
	assert.Equal(t, Steady, TrendSignal(0))
}
