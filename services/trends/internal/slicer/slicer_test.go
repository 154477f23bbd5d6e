package slicer

import (
	"context"
	"fmt"
	"testing"

	"jobtrends/common/errors"
	"jobtrends/services/trends/internal/slices"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const period = "2025-W45"

func f(v float64) *float64 { return &v }

func row(region, mode, seniority string, count uint32) slices.Row {
	return slices.Row{
		SkillCanonical: "go",
		SkillDisplay:   "Go",
		SortKey:        slices.SortKey(region, seniority, mode, period),
		Region:         region,
		Seniority:      seniority,
		WorkMode:       mode,
		Period:         period,
		JobCount:       count,
	}
}

func perModeRows() []slices.Row {
	remoteSenior := row("US", "Remote", "Senior", 10)
	remoteSenior.SalaryMedian, remoteSenior.SalaryP75, remoteSenior.SalaryP95 = f(100_000), f(110_000), f(120_000)
	remoteSenior.RegionalShare, remoteSenior.GlobalShare = f(0.5), f(0.2)
	remoteSenior.Cooccurring = []slices.Count{{Name: "k8s", Count: 5}, {Name: "docker", Count: 2}}
	remoteSenior.Titles = []slices.Count{{Name: "Backend Engineer", Count: 6}}

	onsiteSenior := row("US", "On-site", "Senior", 1)
	onsiteSenior.SalaryMedian, onsiteSenior.SalaryP75, onsiteSenior.SalaryP95 = f(150_000), f(150_000), f(150_000)
	onsiteSenior.RegionalShare, onsiteSenior.GlobalShare = f(0.05), f(0.02)
	onsiteSenior.Cooccurring = []slices.Count{{Name: "docker", Count: 1}}

	remoteJunior := row("US", "Remote", "Junior", 4)
	remoteJunior.SalaryMedian = f(80_000)
	remoteJunior.RegionalShare, remoteJunior.GlobalShare = f(0.2), f(0.08)
	remoteJunior.Cooccurring = []slices.Count{{Name: "k8s", Count: 1}}

	return []slices.Row{remoteSenior, onsiteSenior, remoteJunior}
}

func storedRows() []slices.Row {
	rows := perModeRows()

	seniorAll := row("US", "All", "Senior", 11)
	seniorAll.SalaryMedian = f(999_999)
	seniorAll.Titles = []slices.Count{{Name: "Staff Engineer", Count: 11}}

	summary := row("US", "All", "All", 15)
	summary.SalaryMedian = f(100_000)
	summary.Cooccurring = []slices.Count{{Name: "k8s", Count: 6}}
	summary.Industries = []slices.Count{{Name: "Fintech", Count: 15}}

	otherRegion := row("GB", "All", "All", 99)
	otherPeriod := row("US", "All", "All", 42)
	otherPeriod.Period = "2025-W44"

	return append(rows, seniorAll, summary, otherRegion, otherPeriod)
}

func TestSliceWithStoredSummary(t *testing.T) {
	d := Slice(storedRows(), "us", period)

	assert.Equal(t, "Go", d.Skill)
	assert.Equal(t, "US", d.Region)
	require.NotNil(t, d.Summary)
	assert.Equal(t, uint32(15), d.Summary.JobCount)

	require.Len(t, d.ByWorkMode, 3)
	assert.Equal(t, "On-site", d.ByWorkMode[0].WorkMode)
	assert.Equal(t, "Remote", d.ByWorkMode[1].WorkMode)
	assert.Equal(t, "Senior", d.ByWorkMode[1].Seniority)
	assert.Equal(t, uint32(10), d.ByWorkMode[1].JobCount)
	assert.Equal(t, "Junior", d.ByWorkMode[2].Seniority)

	require.Len(t, d.BySeniority, 2)
	assert.Equal(t, SenioritySlice{Level: "Senior", JobCount: 11, SalaryMedian: f(100_000)}, d.BySeniority[0])
	assert.Equal(t, SenioritySlice{Level: "Junior", JobCount: 4, SalaryMedian: f(80_000)}, d.BySeniority[1])

	assert.Equal(t, []slices.Count{{Name: "k8s", Count: 6}}, d.Cooccurring)
	assert.Equal(t, []slices.Count{{Name: "Fintech", Count: 15}}, d.Industries)
	assert.Equal(t, []slices.Count{
		{Name: "Staff Engineer", Count: 11},
		{Name: "Backend Engineer", Count: 6},
	}, d.Titles)
}

func TestSliceSynthesizesSummary(t *testing.T) {
	d := Slice(perModeRows(), "US", period)

	require.NotNil(t, d.Summary)
	s := d.Summary
	assert.Equal(t, "All", s.WorkMode)
	assert.Equal(t, "All", s.Seniority)
	assert.Equal(t, "US#All#All#2025-W45", s.SortKey)
	assert.Equal(t, uint32(15), s.JobCount)
	require.NotNil(t, s.RemoteShare)
	assert.InDelta(t, 14.0/15.0, *s.RemoteShare, 1e-9)
	require.NotNil(t, s.SalaryMedian)
	assert.InDelta(t, 100_000, *s.SalaryMedian, 1e-9)
	require.NotNil(t, s.SalaryP75)
	assert.InDelta(t, 110_000, *s.SalaryP75, 1e-9)
	require.NotNil(t, s.RegionalShare)
	assert.InDelta(t, 0.39, *s.RegionalShare, 1e-9)
	require.NotNil(t, s.GlobalShare)
	assert.InDelta(t, 0.156, *s.GlobalShare, 1e-9)
	assert.Equal(t, []slices.Count{{Name: "k8s", Count: 6}, {Name: "docker", Count: 3}}, s.Cooccurring)
	assert.Equal(t, s.Cooccurring, d.Cooccurring)
}

func TestSliceNoRows(t *testing.T) {
	d := Slice(storedRows(), "DE", period)
	assert.Nil(t, d.Summary)
	assert.Empty(t, d.ByWorkMode)
	assert.Empty(t, d.BySeniority)
	assert.Equal(t, "DE", d.Region)
}

func TestWeightedMedian(t *testing.T) {
	got := WeightedMedian([]Weighted{{Value: 150_000, Weight: 1}, {Value: 100_000, Weight: 10}})
	require.NotNil(t, got)
	assert.Equal(t, 100_000.0, *got)

	got = WeightedMedian([]Weighted{{Value: 1, Weight: 1}, {Value: 2, Weight: 1}})
	require.NotNil(t, got)
	assert.Equal(t, 1.0, *got)

	assert.Nil(t, WeightedMedian(nil))
	assert.Nil(t, WeightedMedian([]Weighted{{Value: 5, Weight: 0}}))
}

type fakeReader struct {
	rows      []slices.Row
	err       error
	requested []string
}

func (r *fakeReader) SlicesForSkill(_ context.Context, skill string) ([]slices.Row, error) {
	r.requested = append(r.requested, skill)
	return r.rows, r.err
}

func TestServiceDetail(t *testing.T) {
	reader := &fakeReader{rows: storedRows()}
	svc := NewService(reader, zap.NewNop())

	d, err := svc.Detail(context.Background(), "  Go ", "", period)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, reader.requested)
	assert.Equal(t, "US", d.Region)
	require.NotNil(t, d.Summary)
	assert.Equal(t, uint32(15), d.Summary.JobCount)

	d, err = svc.Detail(context.Background(), "Rust", "US", "2020-W01")
	require.NoError(t, err)
	assert.Nil(t, d.Summary)
	assert.Equal(t, "Rust", d.Skill)
}

func TestServiceDetailErrors(t *testing.T) {
	svc := NewService(&fakeReader{err: errors.Unavailable("clickhouse down", fmt.Errorf("dial"))}, zap.NewNop())

	_, err := svc.Detail(context.Background(), "go", "US", period)
	assert.True(t, errors.IsType(err, errors.ErrTypeUnavailable))

	_, err = svc.Detail(context.Background(), " ", "US", period)
	assert.True(t, errors.IsType(err, errors.ErrTypeInvalidInput))

	_, err = svc.Detail(context.Background(), "go", "US", "")
	assert.True(t, errors.IsType(err, errors.ErrTypeInvalidInput))
}
