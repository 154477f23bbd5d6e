package slices

import (
	"testing"

	"jobtrends/common/salary"
	"jobtrends/services/trends/internal/enriched"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const period = "2025-W45"

func analystBlender() *salary.Blender {
	return salary.NewBlender(salary.Anchor{
		ID:       "analyst",
		Minimum:  50_000,
		Maximum:  150_000,
		Median:   100_000,
		Criteria: []salary.Criterion{{Includes: []string{"analyst"}}},
	})
}

func samplePostings() []enriched.Posting {
	return []enriched.Posting{
		{
			JobID:           "a",
			Title:           "Data Analyst",
			Location:        "Austin, TX, USA",
			RemoteStatus:    "remote",
			SeniorityLevel:  "senior",
			SalaryRange:     "90000-110000",
			SalaryMentioned: true,
			Industry:        "tech",
			Technologies:    []string{"SQL", "Python"},
		},
		{
			JobID:          "b",
			Title:          "Barista",
			Location:       "Denver, CO, US",
			RemoteStatus:   "on_site",
			SeniorityLevel: "senior",
			Industry:       "unknown",
			Technologies:   []string{"sql"},
		},
		{
			JobID:          "c",
			Title:          "Analyst",
			Location:       "London, UK",
			SeniorityLevel: "entry",
			Skills:         []string{"Excel"},
		},
		{
			JobID:          "d",
			Title:          "Analyst",
			Location:       "Paris, FR",
			SeniorityLevel: "entry",
			Technologies:   []string{"Python"},
		},
	}
}

func rowsByKey(rows []Row) map[Key]Row {
	out := make(map[Key]Row, len(rows))
	for _, r := range rows {
		out[r.Key()] = r
	}
	return out
}

func TestBuild(t *testing.T) {
	usage := &salary.Usage{}
	b := NewBuilder(Options{Blender: analystBlender(), Usage: usage})

	res := b.Build(samplePostings(), period, now)

	assert.Equal(t, 4, res.Postings)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Rows, 28)

	assert.Equal(t, []Total{
		{Period: period, Region: "FR", JobCount: 1, UpdatedAt: now},
		{Period: period, Region: "GLOBAL", JobCount: 3, UpdatedAt: now},
		{Period: period, Region: "US", JobCount: 2, UpdatedAt: now},
		{Period: period, Region: "US-CO", JobCount: 1, UpdatedAt: now},
		{Period: period, Region: "US-TX", JobCount: 1, UpdatedAt: now},
	}, res.Totals)

	rows := rowsByKey(res.Rows)

	t.Run("senior rollup across work modes", func(t *testing.T) {
		r, ok := rows[Key{Skill: "sql", SortKey: "GLOBAL#Senior#All#2025-W45"}]
		require.True(t, ok)
		assert.Equal(t, "SQL", r.SkillDisplay)
		assert.Equal(t, uint32(2), r.JobCount)
		assert.Equal(t, "2025-W45#sql", r.PeriodSkill)
		assert.Equal(t, "000002#sql#GLOBAL", r.JobCountDesc)
		assert.Equal(t, DimensionTechnology, r.Dimension)
		require.NotNil(t, r.RemoteShare)
		assert.InDelta(t, 0.5, *r.RemoteShare, 1e-9)
		require.NotNil(t, r.SalaryMedian)
		assert.InDelta(t, 100_000, *r.SalaryMedian, 1e-9)
		require.NotNil(t, r.RegionalShare)
		assert.InDelta(t, 2.0/3.0, *r.RegionalShare, 1e-9)
		require.NotNil(t, r.GlobalShare)
		assert.InDelta(t, 2.0/3.0, *r.GlobalShare, 1e-9)
		assert.Equal(t, []Count{{Name: "Tech", Count: 1}, {Name: "Unknown", Count: 1}}, r.Industries)
		assert.Equal(t, []Count{{Name: "Data Analyst", Count: 1}, {Name: "Barista", Count: 1}}, r.Titles)
		assert.Equal(t, []Count{{Name: "Python", Count: 1}}, r.Cooccurring)
	})

	t.Run("per mode rows carry no remote share", func(t *testing.T) {
		r, ok := rows[Key{Skill: "sql", SortKey: "GLOBAL#Senior#Remote#2025-W45"}]
		require.True(t, ok)
		assert.Equal(t, uint32(1), r.JobCount)
		assert.Nil(t, r.RemoteShare)

		r, ok = rows[Key{Skill: "sql", SortKey: "US-CO#Senior#On-site#2025-W45"}]
		require.True(t, ok)
		assert.Nil(t, r.SalaryMedian)
		require.NotNil(t, r.RegionalShare)
		assert.InDelta(t, 1.0, *r.RegionalShare, 1e-9)
	})

	t.Run("country rollup", func(t *testing.T) {
		r, ok := rows[Key{Skill: "sql", SortKey: "US#All#All#2025-W45"}]
		require.True(t, ok)
		assert.Equal(t, uint32(2), r.JobCount)
		assert.InDelta(t, 1.0, *r.RegionalShare, 1e-9)
		assert.InDelta(t, 2.0/3.0, *r.GlobalShare, 1e-9)
	})

	t.Run("anchor median imputed when no salary", func(t *testing.T) {
		r, ok := rows[Key{Skill: "python", SortKey: "FR#Junior#On-site#2025-W45"}]
		require.True(t, ok)
		require.NotNil(t, r.SalaryMedian)
		assert.InDelta(t, 100_000, *r.SalaryMedian, 1e-9)

		r, ok = rows[Key{Skill: "python", SortKey: "GLOBAL#All#All#2025-W45"}]
		require.True(t, ok)
		assert.Equal(t, uint32(2), r.JobCount)
		assert.Equal(t, []Count{{Name: "SQL", Count: 1}}, r.Cooccurring)
	})

	assert.Equal(t, 1, usage.Count(salary.SourceActual))
	assert.Equal(t, 1, usage.Count(salary.SourceAnchor))
	assert.Equal(t, 1, usage.NoAnchor())
	assert.Same(t, usage, b.Usage())
}

func TestBuildOrdering(t *testing.T) {
	res := NewBuilder(Options{Blender: analystBlender()}).Build(samplePostings(), period, now)

	for i := 1; i < len(res.Rows); i++ {
		prev, cur := res.Rows[i-1], res.Rows[i]
		if prev.SkillCanonical == cur.SkillCanonical {
			assert.Less(t, prev.SortKey, cur.SortKey)
		} else {
			assert.Less(t, prev.SkillCanonical, cur.SkillCanonical)
		}
	}
	assert.Equal(t, "python", res.Rows[0].SkillCanonical)
}

func TestBuildSkillDimension(t *testing.T) {
	res := NewBuilder(Options{Dimension: DimensionSkill, Blender: analystBlender()}).Build(samplePostings(), period, now)

	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.Rows, 6)
	for _, r := range res.Rows {
		assert.Equal(t, "excel", r.SkillCanonical)
		assert.Equal(t, DimensionSkill, r.Dimension)
	}
	assert.Equal(t, []Total{
		{Period: period, Region: "GB", JobCount: 1, UpdatedAt: now},
		{Period: period, Region: "GLOBAL", JobCount: 1, UpdatedAt: now},
	}, res.Totals)
}

func TestBuildEmpty(t *testing.T) {
	res := NewBuilder(Options{}).Build(nil, period, now)
	assert.Empty(t, res.Rows)
	assert.Empty(t, res.Totals)
	assert.Zero(t, res.Postings)
}

func TestTallyTop(t *testing.T) {
	tl := newTally()
	for _, name := range []string{"b", "a", "a", "", "c", "b", " "} {
		tl.add(name)
	}
	assert.Equal(t, []Count{{Name: "b", Count: 2}, {Name: "a", Count: 2}}, tl.top(2))
	assert.Len(t, tl.top(10), 3)
}
