package slices

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"jobtrends/common/salary"
	"jobtrends/services/trends/internal/enriched"
)

type Count struct {
	Name  string `json:"name"`
	Count uint32 `json:"count"`
}

// Row is one (skill, region, seniority, work mode, period) slice.
type Row struct {
	SkillCanonical        string    `json:"skill_canonical"`
	SortKey               string    `json:"region_seniority_mode_period"`
	SkillDisplay          string    `json:"skill_display"`
	Region                string    `json:"region"`
	Seniority             string    `json:"seniority"`
	WorkMode              string    `json:"work_mode"`
	Period                string    `json:"period"`
	PeriodSkill           string    `json:"period_skill"`
	JobCountDesc          string    `json:"job_count_desc"`
	Dimension             Dimension `json:"dimension"`
	JobCount              uint32    `json:"job_count"`
	SalaryMin             *float64  `json:"salary_min,omitempty"`
	SalaryMax             *float64  `json:"salary_max,omitempty"`
	SalaryMedian          *float64  `json:"salary_median,omitempty"`
	SalaryP75             *float64  `json:"salary_p75,omitempty"`
	SalaryP95             *float64  `json:"salary_p95,omitempty"`
	RemoteShare           *float64  `json:"remote_share,omitempty"`
	RegionalShare         *float64  `json:"regional_share,omitempty"`
	GlobalShare           *float64  `json:"global_share,omitempty"`
	JobCountChangePct     *float64  `json:"job_count_change_pct,omitempty"`
	MedianSalaryChangePct *float64  `json:"median_salary_change_pct,omitempty"`
	TrendSignal           Signal    `json:"trend_signal,omitempty"`
	Cooccurring           []Count   `json:"cooccurring_skills,omitempty"`
	Industries            []Count   `json:"industry_distribution,omitempty"`
	Titles                []Count   `json:"top_titles,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Total is the number of distinct postings seen in a region for a period.
type Total struct {
	Period    string    `json:"period"`
	Region    string    `json:"region"`
	JobCount  uint32    `json:"job_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func SortKey(region, seniority, mode, period string) string {
	return strings.Join([]string{region, seniority, mode, period}, "#")
}

func zeroPad(n uint32) string {
	return fmt.Sprintf("%06d", n)
}

const (
	topCooccurring = 10
	topIndustries  = 8
	topTitles      = 5
)

type Options struct {
	Dimension Dimension
	Blender   *salary.Blender
	Usage     *salary.Usage
}

type Result struct {
	Period   string
	Postings int
	Skipped  int
	Rows     []Row
	Totals   []Total
}

type Builder struct {
	dim     Dimension
	blender *salary.Blender
	usage   *salary.Usage
}

func NewBuilder(opts Options) *Builder {
	if opts.Dimension == "" {
		opts.Dimension = DimensionTechnology
	}
	if opts.Blender == nil {
		opts.Blender = salary.NewBlender()
	}
	if opts.Usage == nil {
		opts.Usage = &salary.Usage{}
	}
	return &Builder{dim: opts.Dimension, blender: opts.Blender, usage: opts.Usage}
}

func (b *Builder) Usage() *salary.Usage {
	return b.usage
}

type sliceKey struct {
	region    string
	skill     string
	seniority string
	mode      string
}

type bucket struct {
	display     string
	count       uint32
	remote      uint32
	salaries    []float64
	industries  *tally
	titles      *tally
	cooccurring *tally
}

// Build slices one period of postings. Rows come out ordered by skill and
// sort key; totals by region.
func (b *Builder) Build(postings []enriched.Posting, period string, now time.Time) Result {
	res := Result{Period: period, Postings: len(postings)}

	buckets := make(map[sliceKey]*bucket)
	regionJobs := make(map[string]map[string]struct{})

	get := func(k sliceKey, display string) *bucket {
		bk, ok := buckets[k]
		if !ok {
			bk = &bucket{display: display, industries: newTally(), titles: newTally(), cooccurring: newTally()}
			buckets[k] = bk
		}
		return bk
	}

	for i, p := range postings {
		primary := SelectPrimarySet(CanonicalizeTech(p.Technologies), CanonicalizeSoftSkill(p.Skills), b.dim)
		if len(primary) == 0 {
			res.Skipped++
			continue
		}

		jobID := p.JobID
		if jobID == "" {
			jobID = fmt.Sprintf("#%d", i)
		}
		title := strings.TrimSpace(p.Title)
		industry := NormIndustry(p.Industry)
		seniority := NormSeniority(p.SeniorityLevel)
		mode := NormWorkMode(p.RemoteStatus)
		regions := Regions(ParseLocation(p.Location))
		annual, hasSalary := b.salaryOf(title, p.SalaryRange, p.SalaryMentioned)

		for _, r := range regions {
			if regionJobs[r] == nil {
				regionJobs[r] = make(map[string]struct{})
			}
			regionJobs[r][jobID] = struct{}{}
		}

		for _, s := range primary {
			for _, r := range regions {
				keys := []sliceKey{
					{r, s.Key, seniority, mode},
					{r, s.Key, seniority, ModeAll},
					{r, s.Key, SeniorityAll, ModeAll},
				}
				for _, k := range keys {
					bk := get(k, s.Display)
					bk.count++
					if k.mode == ModeAll && mode == ModeRemote {
						bk.remote++
					}
					if hasSalary {
						bk.salaries = append(bk.salaries, annual)
					}
					bk.industries.add(industry)
					bk.titles.add(title)
					for _, other := range primary {
						if other.Key != s.Key {
							bk.cooccurring.add(other.Display)
						}
					}
				}
			}
		}
	}

	totals := make(map[string]uint32, len(regionJobs))
	for r, jobs := range regionJobs {
		totals[r] = uint32(len(jobs))
	}
	globalTotal := totals[RegionGlobal]

	res.Rows = make([]Row, 0, len(buckets))
	for k, bk := range buckets {
		row := Row{
			SkillCanonical: k.skill,
			SortKey:        SortKey(k.region, k.seniority, k.mode, period),
			SkillDisplay:   bk.display,
			Region:         k.region,
			Seniority:      k.seniority,
			WorkMode:       k.mode,
			Period:         period,
			PeriodSkill:    period + "#" + k.skill,
			JobCountDesc:   zeroPad(bk.count) + "#" + k.skill + "#" + k.region,
			Dimension:      b.dim,
			JobCount:       bk.count,
			Cooccurring:    bk.cooccurring.top(topCooccurring),
			Industries:     bk.industries.top(topIndustries),
			Titles:         bk.titles.top(topTitles),
			UpdatedAt:      now,
		}
		if d, ok := salary.Percentiles(bk.salaries); ok {
			row.SalaryMin = ptr(d.Min)
			row.SalaryMax = ptr(d.Max)
			row.SalaryMedian = ptr(d.P50)
			row.SalaryP75 = ptr(d.P75)
			row.SalaryP95 = ptr(d.P95)
		}
		if k.mode == ModeAll {
			row.RemoteShare = ptr(float64(bk.remote) / float64(bk.count))
		}
		if t := totals[k.region]; t > 0 {
			row.RegionalShare = ptr(float64(bk.count) / float64(t))
		}
		if globalTotal > 0 {
			row.GlobalShare = ptr(float64(bk.count) / float64(globalTotal))
		}
		res.Rows = append(res.Rows, row)
	}
	sort.Slice(res.Rows, func(i, j int) bool {
		if res.Rows[i].SkillCanonical != res.Rows[j].SkillCanonical {
			return res.Rows[i].SkillCanonical < res.Rows[j].SkillCanonical
		}
		return res.Rows[i].SortKey < res.Rows[j].SortKey
	})

	res.Totals = make([]Total, 0, len(totals))
	for r, n := range totals {
		res.Totals = append(res.Totals, Total{Period: period, Region: r, JobCount: n, UpdatedAt: now})
	}
	sort.Slice(res.Totals, func(i, j int) bool { return res.Totals[i].Region < res.Totals[j].Region })

	return res
}

// salaryOf blends the parsed salary against the title's reference band.
// Titles without a band keep the parsed figure.
func (b *Builder) salaryOf(title, raw string, mentioned bool) (float64, bool) {
	var reported *float64
	parsed, ok := salary.ParseRange(raw, mentioned)
	if ok {
		reported = &parsed.AnnualUSD
	}
	anchored, matched := b.blender.Apply(title, reported)
	b.usage.Record(anchored, matched)
	if matched {
		return anchored.AnnualUSD, true
	}
	return parsed.AnnualUSD, ok
}

func ptr(v float64) *float64 {
	return &v
}

// tally counts names and remembers first-seen order for ties.
type tally struct {
	order  []string
	counts map[string]uint32
}

func newTally() *tally {
	return &tally{counts: make(map[string]uint32)}
}

func (t *tally) add(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	if _, ok := t.counts[name]; !ok {
		t.order = append(t.order, name)
	}
	t.counts[name]++
}

func (t *tally) top(n int) []Count {
	out := make([]Count, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, Count{Name: name, Count: t.counts[name]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
