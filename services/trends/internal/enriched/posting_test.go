package enriched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMapDefaults(t *testing.T) {
	p := FromMap(map[string]any{})

	assert.Equal(t, UnknownIndustry, p.Industry)
	assert.NotNil(t, p.Technologies)
	assert.NotNil(t, p.Skills)
	assert.Empty(t, p.SalaryRange)
	assert.True(t, p.ProcessedDate.IsZero())
	assert.False(t, p.SalaryMentioned)
}

func TestFromMapListShapes(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"string slice", []string{"Go", " go ", "Rust", ""}, []string{"Go", "Rust"}},
		{"any slice", []any{"Python", 42, "SQL"}, []string{"Python", "SQL"}},
		{"attribute values", []any{map[string]any{"S": "React"}, map[string]any{"N": "1"}}, []string{"React"}},
		{"json string", `["AWS", "Docker"]`, []string{"AWS", "Docker"}},
		{"plain string", "AWS, Docker", nil},
		{"broken json", `["AWS"`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Strings(tt.value))
		})
	}
}

func TestFromMapRow(t *testing.T) {
	processed := time.Date(2025, 11, 5, 14, 0, 0, 0, time.UTC)
	p := FromMap(map[string]any{
		"id":               int64(17),
		"dynamo_id":        nil,
		"job_title":        "  Senior Backend Engineer ",
		"location":         "Chicago, IL, US",
		"remote_status":    "hybrid",
		"seniority_level":  "senior",
		"salary_mentioned": true,
		"minimum_salary":   120000.4,
		"maximum_salary":   int64(150000),
		"processed_date":   processed,
		"technologies":     []any{"Go", "PostgreSQL"},
	})

	assert.Equal(t, "17", p.JobID)
	assert.Equal(t, "Senior Backend Engineer", p.Title)
	assert.Equal(t, "120000-150000", p.SalaryRange)
	assert.True(t, p.SalaryMentioned)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, p.Technologies)
	assert.Equal(t, processed, p.ProcessedDate)
	assert.Equal(t, UnknownIndustry, p.Industry)
}

func TestFromMapPrefersExplicitSalaryRange(t *testing.T) {
	p := FromMap(map[string]any{
		"jobId":          "abc",
		"salary_range":   "$100k-150k",
		"minimum_salary": 1.0,
		"industry":       "fintech",
		"processed_date": "2025-11-05",
	})
	assert.Equal(t, "abc", p.JobID)
	assert.Equal(t, "$100k-150k", p.SalaryRange)
	assert.Equal(t, "fintech", p.Industry)
	assert.Equal(t, time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC), p.ProcessedDate)
}

func TestBuildSalaryRange(t *testing.T) {
	assert.Equal(t, "", BuildSalaryRange(0, false, 0, false))
	assert.Equal(t, "90000", BuildSalaryRange(0, false, 89999.6, true))
	assert.Equal(t, "80000", BuildSalaryRange(80000, true, 0, false))
}

func TestIdentifier(t *testing.T) {
	got, err := Identifier("public.jobs")
	require.NoError(t, err)
	assert.Equal(t, `"public"."jobs"`, got)

	_, err = Identifier("jobs; drop table x")
	assert.Error(t, err)
	_, err = Identifier("  ")
	assert.Error(t, err)
}
