package slices

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousKeys(t *testing.T) {
	rows := []Row{
		{SkillCanonical: "go", Region: "US", Seniority: "Senior", WorkMode: "All", Period: "2025-W01"},
		{SkillCanonical: "go", Region: "US", Seniority: "Senior", WorkMode: "All", Period: "2025-W01"},
		{SkillCanonical: "go", Region: "US", Seniority: "All", WorkMode: "All", Period: "2025-03-01"},
	}
	assert.Equal(t, []Key{
		{Skill: "go", SortKey: "US#Senior#All#2024-W52"},
		{Skill: "go", SortKey: "US#All#All#2025-02-28"},
	}, PreviousKeys(rows))
}

func TestApplyMomentum(t *testing.T) {
	row := func(sen string, count uint32, median *float64) Row {
		return Row{
			SkillCanonical: "go",
			SortKey:        SortKey("US", sen, ModeAll, "2025-W45"),
			Region:         "US",
			Seniority:      sen,
			WorkMode:       ModeAll,
			Period:         "2025-W45",
			JobCount:       count,
			SalaryMedian:   median,
		}
	}
	rows := []Row{
		row("Senior", 5, ptr(110_000)),
		row("Junior", 3, ptr(80_000)),
		row("Mid", 7, nil),
		row("Lead", 2, nil),
	}
	prev := map[Key]Previous{
		{Skill: "go", SortKey: "US#Senior#All#2025-W44"}: {JobCount: 4, SalaryMedian: ptr(100_000)},
		{Skill: "go", SortKey: "US#Junior#All#2025-W44"}: {JobCount: 0, SalaryMedian: ptr(100_000)},
		{Skill: "go", SortKey: "US#Mid#All#2025-W44"}:    {JobCount: 10, SalaryMedian: ptr(90_000)},
	}

	assert.Equal(t, 3, ApplyMomentum(rows, prev))

	require.NotNil(t, rows[0].JobCountChangePct)
	assert.InDelta(t, 0.25, *rows[0].JobCountChangePct, 1e-9)
	assert.Equal(t, Rising, rows[0].TrendSignal)
	require.NotNil(t, rows[0].MedianSalaryChangePct)
	assert.InDelta(t, 0.1, *rows[0].MedianSalaryChangePct, 1e-9)

	assert.Nil(t, rows[1].JobCountChangePct)
	assert.Empty(t, rows[1].TrendSignal)
	require.NotNil(t, rows[1].MedianSalaryChangePct)
	assert.InDelta(t, -0.2, *rows[1].MedianSalaryChangePct, 1e-9)

	require.NotNil(t, rows[2].JobCountChangePct)
	assert.InDelta(t, -0.3, *rows[2].JobCountChangePct, 1e-9)
	assert.Equal(t, Falling, rows[2].TrendSignal)
	assert.Nil(t, rows[2].MedianSalaryChangePct)

	assert.Nil(t, rows[3].JobCountChangePct)
	assert.Empty(t, rows[3].TrendSignal)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2, 3}}, Chunk([]int{1, 2, 3}, 0))
	assert.Empty(t, Chunk([]int(nil), 100))
}
