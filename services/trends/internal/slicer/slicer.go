package slicer

import (
	"context"
	"sort"
	"strings"

	"jobtrends/common/errors"
	"jobtrends/common/telemetry"
	"jobtrends/services/trends/internal/slices"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("trends/slicer")

const (
	fallbackCooccurring = 10
	fallbackIndustries  = 10
	fallbackTitles      = 5

	summaryCooccurring = 15
	summaryIndustries  = 15
	summaryTitles      = 10
)

type ModeSlice struct {
	WorkMode      string   `json:"work_mode"`
	Seniority     string   `json:"seniority"`
	JobCount      uint32   `json:"job_count"`
	SalaryMedian  *float64 `json:"salary_median,omitempty"`
	SalaryP75     *float64 `json:"salary_p75,omitempty"`
	SalaryP95     *float64 `json:"salary_p95,omitempty"`
	RegionalShare *float64 `json:"regional_share,omitempty"`
	GlobalShare   *float64 `json:"global_share,omitempty"`
}

type SenioritySlice struct {
	Level        string   `json:"level"`
	JobCount     uint32   `json:"job_count"`
	SalaryMedian *float64 `json:"salary_median,omitempty"`
}

type Detail struct {
	Skill       string           `json:"technology"`
	Region      string           `json:"region"`
	Period      string           `json:"period"`
	Summary     *slices.Row      `json:"summary"`
	ByWorkMode  []ModeSlice      `json:"by_work_mode"`
	BySeniority []SenioritySlice `json:"by_seniority"`
	Cooccurring []slices.Count   `json:"cooccurring_skills"`
	Industries  []slices.Count   `json:"industry_distribution"`
	Titles      []slices.Count   `json:"top_titles"`
}

// Slice narrows a skill's rows to one region and period and lays them out by
// work mode and seniority. The stored All/All row is the summary; without
// one a summary is synthesised from the per-mode rows.
func Slice(rows []slices.Row, region, period string) Detail {
	region = strings.ToUpper(strings.TrimSpace(region))
	d := Detail{Region: region, Period: period, ByWorkMode: []ModeSlice{}, BySeniority: []SenioritySlice{}}

	var (
		matched []slices.Row
		perMode []slices.Row
	)
	for _, r := range rows {
		if strings.ToUpper(r.Region) != region || r.Period != period {
			continue
		}
		matched = append(matched, r)
		if d.Skill == "" {
			d.Skill = r.SkillDisplay
		}
		if r.WorkMode == slices.ModeAll && r.Seniority == slices.SeniorityAll && d.Summary == nil {
			summary := r
			d.Summary = &summary
		}
		if r.WorkMode != slices.ModeAll && r.Seniority != slices.SeniorityAll {
			perMode = append(perMode, r)
		}
	}
	if len(matched) == 0 {
		return d
	}

	if d.Summary == nil {
		source := perMode
		if len(source) == 0 {
			source = matched
		}
		d.Summary = synthesizeSummary(source)
	}

	d.ByWorkMode = byWorkMode(perMode)
	d.BySeniority = bySeniority(perMode)

	d.Cooccurring = d.Summary.Cooccurring
	if d.Cooccurring == nil {
		d.Cooccurring = mostCommon(matched, func(r slices.Row) []slices.Count { return r.Cooccurring }, fallbackCooccurring)
	}
	d.Industries = d.Summary.Industries
	if d.Industries == nil {
		d.Industries = mostCommon(matched, func(r slices.Row) []slices.Count { return r.Industries }, fallbackIndustries)
	}
	d.Titles = d.Summary.Titles
	if d.Titles == nil {
		d.Titles = mostCommon(matched, func(r slices.Row) []slices.Count { return r.Titles }, fallbackTitles)
	}
	return d
}

func byWorkMode(rows []slices.Row) []ModeSlice {
	type cell struct{ mode, seniority string }
	seen := make(map[cell]struct{}, len(rows))
	out := make([]ModeSlice, 0, len(rows))
	for _, r := range rows {
		c := cell{r.WorkMode, r.Seniority}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, ModeSlice{
			WorkMode:      r.WorkMode,
			Seniority:     r.Seniority,
			JobCount:      r.JobCount,
			SalaryMedian:  r.SalaryMedian,
			SalaryP75:     r.SalaryP75,
			SalaryP95:     r.SalaryP95,
			RegionalShare: r.RegionalShare,
			GlobalShare:   r.GlobalShare,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WorkMode != out[j].WorkMode {
			return out[i].WorkMode < out[j].WorkMode
		}
		return out[i].JobCount > out[j].JobCount
	})
	return out
}

func bySeniority(rows []slices.Row) []SenioritySlice {
	var levels []string
	grouped := make(map[string][]slices.Row)
	for _, r := range rows {
		if _, ok := grouped[r.Seniority]; !ok {
			levels = append(levels, r.Seniority)
		}
		grouped[r.Seniority] = append(grouped[r.Seniority], r)
	}

	out := make([]SenioritySlice, 0, len(levels))
	for _, level := range levels {
		list := grouped[level]
		out = append(out, SenioritySlice{
			Level:        level,
			JobCount:     sumCounts(list),
			SalaryMedian: WeightedMedian(weighted(list, func(r slices.Row) *float64 { return r.SalaryMedian })),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].JobCount > out[j].JobCount })
	return out
}

func synthesizeSummary(rows []slices.Row) *slices.Row {
	summary := rows[0]
	summary.WorkMode = slices.ModeAll
	summary.Seniority = slices.SeniorityAll
	summary.SortKey = slices.SortKey(summary.Region, slices.SeniorityAll, slices.ModeAll, summary.Period)
	summary.JobCountChangePct = nil
	summary.MedianSalaryChangePct = nil
	summary.TrendSignal = ""
	summary.SalaryMin = nil
	summary.SalaryMax = nil

	total := sumCounts(rows)
	summary.JobCount = total
	denominator := float64(total)
	if denominator == 0 {
		denominator = 1
	}

	var remote uint32
	for _, r := range rows {
		if r.WorkMode == slices.ModeRemote {
			remote += r.JobCount
		}
	}
	remoteShare := float64(remote) / denominator
	summary.RemoteShare = &remoteShare

	summary.SalaryMedian = WeightedMedian(weighted(rows, func(r slices.Row) *float64 { return r.SalaryMedian }))
	summary.SalaryP75 = WeightedMedian(weighted(rows, func(r slices.Row) *float64 { return r.SalaryP75 }))
	summary.SalaryP95 = WeightedMedian(weighted(rows, func(r slices.Row) *float64 { return r.SalaryP95 }))
	summary.RegionalShare = weightedShare(rows, func(r slices.Row) *float64 { return r.RegionalShare }, denominator)
	summary.GlobalShare = weightedShare(rows, func(r slices.Row) *float64 { return r.GlobalShare }, denominator)

	summary.Cooccurring = mostCommon(rows, func(r slices.Row) []slices.Count { return r.Cooccurring }, summaryCooccurring)
	summary.Industries = mostCommon(rows, func(r slices.Row) []slices.Count { return r.Industries }, summaryIndustries)
	summary.Titles = mostCommon(rows, func(r slices.Row) []slices.Count { return r.Titles }, summaryTitles)
	return &summary
}

func sumCounts(rows []slices.Row) uint32 {
	var n uint32
	for _, r := range rows {
		n += r.JobCount
	}
	return n
}

type Weighted struct {
	Value  float64
	Weight float64
}

func weighted(rows []slices.Row, field func(slices.Row) *float64) []Weighted {
	var out []Weighted
	for _, r := range rows {
		if v := field(r); v != nil && r.JobCount > 0 {
			out = append(out, Weighted{Value: *v, Weight: float64(r.JobCount)})
		}
	}
	return out
}

func weightedShare(rows []slices.Row, field func(slices.Row) *float64, denominator float64) *float64 {
	var sum float64
	for _, w := range weighted(rows, field) {
		sum += w.Value * w.Weight
	}
	share := sum / denominator
	return &share
}

// WeightedMedian returns the first value, in ascending order, at which the
// cumulative weight reaches half the total. It is nil for no positive weight.
func WeightedMedian(values []Weighted) *float64 {
	sorted := make([]Weighted, 0, len(values))
	var total float64
	for _, v := range values {
		if v.Weight > 0 {
			sorted = append(sorted, v)
			total += v.Weight
		}
	}
	if total == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	var cumulative float64
	for _, v := range sorted {
		cumulative += v.Weight
		if cumulative >= total/2 {
			median := v.Value
			return &median
		}
	}
	median := sorted[len(sorted)-1].Value
	return &median
}

func mostCommon(rows []slices.Row, field func(slices.Row) []slices.Count, n int) []slices.Count {
	var order []string
	counts := make(map[string]uint32)
	for _, r := range rows {
		for _, c := range field(r) {
			if strings.TrimSpace(c.Name) == "" {
				continue
			}
			if _, ok := counts[c.Name]; !ok {
				order = append(order, c.Name)
			}
			counts[c.Name] += c.Count
		}
	}
	out := make([]slices.Count, 0, len(order))
	for _, name := range order {
		out = append(out, slices.Count{Name: name, Count: counts[name]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RowReader loads every stored row for a canonical skill.
type RowReader interface {
	SlicesForSkill(ctx context.Context, skill string) ([]slices.Row, error)
}

type Service struct {
	reader RowReader
	logger *zap.Logger
}

func NewService(reader RowReader, logger *zap.Logger) *Service {
	return &Service{reader: reader, logger: logger}
}

// Detail answers a skill detail query for one region and period.
func (s *Service) Detail(ctx context.Context, skill, region, period string) (Detail, error) {
	ctx, span := tracer.Start(ctx, "Service.Detail")
	defer span.End()

	canonical := strings.ToLower(strings.Join(strings.Fields(skill), " "))
	if canonical == "" {
		return Detail{}, errors.InvalidInput("skill is required", nil)
	}
	if strings.TrimSpace(period) == "" {
		return Detail{}, errors.InvalidInput("period is required", nil)
	}
	if strings.TrimSpace(region) == "" {
		region = "US"
	}
	span.SetAttributes(
		telemetry.String("skill", canonical),
		telemetry.String("region", region),
		telemetry.String("period", period),
	)

	rows, err := s.reader.SlicesForSkill(ctx, canonical)
	if err != nil {
		span.RecordError(err)
		return Detail{}, err
	}

	d := Slice(rows, region, period)
	if d.Skill == "" {
		d.Skill = skill
	}
	if d.Summary == nil {
		s.logger.Debug("no rows for skill detail",
			zap.String("skill", canonical),
			zap.String("region", d.Region),
			zap.String("period", period),
			zap.Int("stored", len(rows)))
	}
	span.SetAttributes(
		telemetry.Int("by_work_mode", len(d.ByWorkMode)),
		telemetry.Int("by_seniority", len(d.BySeniority)),
	)
	return d, nil
}
