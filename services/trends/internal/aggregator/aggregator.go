package aggregator

import (
	"context"
	"sort"
	"time"

	"jobtrends/common/salary"
	"jobtrends/common/telemetry"
	"jobtrends/services/trends/internal/enriched"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = telemetry.GetTracer("trends/aggregator")

const (
	topCooccurring = 5
	topIndustries  = 3
)

type Window struct {
	Postings []enriched.Posting
	AsOf     time.Time
}

type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

type TrendRecord struct {
	PK               string       `json:"pk"`
	SK               string       `json:"sk"`
	Skill            string       `json:"skill"`
	Region           string       `json:"region"`
	Seniority        string       `json:"seniority"`
	SkillType        string       `json:"skillType"`
	Count            int          `json:"count"`
	RelativeDemand   float64      `json:"relativeDemand"`
	Cooccurring      []SkillCount `json:"cooccurringSkills"`
	AvgSalary        *float64     `json:"avgSalary"`
	RemotePercentage float64      `json:"remotePercentage"`
	TopIndustries    []string     `json:"topIndustries"`
	LastUpdated      time.Time    `json:"lastUpdated"`
}

func Key(skill, region, seniority string) string {
	return skill + "::" + region + "::" + seniority
}

func PartitionKey(skill string) string {
	return "skill#" + skill
}

func SortKey(region, seniority string) string {
	return "region#" + region + "#seniority#" + seniority
}

type Options struct {
	Workers int
	// Blender, when set, replaces parsed salaries with anchored estimates.
	Blender *salary.Blender
	Usage   *salary.Usage
}

type Aggregator struct {
	opts   Options
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Aggregator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Aggregator{opts: opts, logger: logger}
}

// Aggregate folds the window into one record per skill, region and
// seniority. The output depends only on the window contents and order.
func (a *Aggregator) Aggregate(ctx context.Context, w Window) ([]TrendRecord, error) {
	ctx, span := tracer.Start(ctx, "Aggregator.Aggregate")
	defer span.End()
	span.SetAttributes(telemetry.Int("postings", len(w.Postings)))

	total := len(w.Postings)
	if total == 0 {
		return []TrendRecord{}, nil
	}

	parts := partitions(total, a.opts.Workers)
	partials := make([]*accumulator, len(parts))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range parts {
		i, p := i, p
		eg.Go(func() error {
			acc := newAccumulator()
			for n, posting := range w.Postings[p[0]:p[1]] {
				if n%256 == 0 {
					if err := egCtx.Err(); err != nil {
						return err
					}
				}
				a.accumulate(acc, posting)
			}
			partials[i] = acc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	merged := partials[0]
	for _, acc := range partials[1:] {
		merged.merge(acc)
	}

	records := buildRecords(merged, total, w.AsOf)
	span.SetAttributes(telemetry.Int("records", len(records)))
	a.logger.Debug("aggregated skill trends",
		zap.Int("postings", total),
		zap.Int("records", len(records)),
		zap.Int("partitions", len(parts)))
	return records, nil
}

func (a *Aggregator) accumulate(acc *accumulator, p enriched.Posting) {
	region := Region(p.Location)
	seniority := Seniority(p.SeniorityLevel)
	remote := isRemote(p.RemoteStatus)
	industry := p.Industry
	if industry == "" {
		industry = enriched.UnknownIndustry
	}

	pay, hasPay := ParseSalary(p.SalaryRange)
	if hasPay && a.opts.Blender != nil && p.Title != "" {
		result, ok := a.opts.Blender.Apply(p.Title, &pay)
		if a.opts.Usage != nil {
			a.opts.Usage.Record(result, ok)
		}
		if ok {
			pay = result.AnnualUSD
		}
	}

	skills := postingSkills(p)
	for _, skill := range skills {
		agg := acc.get(skill, region, seniority)
		agg.count++
		for _, other := range skills {
			if other != skill {
				agg.cooccurring.add(other, 1)
			}
		}
		if hasPay {
			agg.salaries = append(agg.salaries, pay)
		}
		if remote {
			agg.remoteCount++
		}
		agg.industries.add(industry, 1)
	}
}

// postingSkills normalises technologies then skills, keeping each skill once.
func postingSkills(p enriched.Posting) []string {
	seen := make(map[string]struct{}, len(p.Technologies)+len(p.Skills))
	out := make([]string, 0, len(p.Technologies)+len(p.Skills))
	for _, list := range [][]string{p.Technologies, p.Skills} {
		for _, raw := range list {
			skill, ok := NormalizeSkill(raw)
			if !ok {
				continue
			}
			if _, dup := seen[skill]; dup {
				continue
			}
			seen[skill] = struct{}{}
			out = append(out, skill)
		}
	}
	return out
}

func buildRecords(acc *accumulator, total int, asOf time.Time) []TrendRecord {
	keys := append([]string(nil), acc.keys...)
	sort.Strings(keys)

	records := make([]TrendRecord, 0, len(keys))
	for _, key := range keys {
		agg := acc.index[key]
		id := acc.identities[key]
		skill, region, seniority := id[0], id[1], id[2]

		var avg *float64
		if len(agg.salaries) > 0 {
			var sum float64
			for _, s := range agg.salaries {
				sum += s
			}
			mean := sum / float64(len(agg.salaries))
			avg = &mean
		}

		industries := agg.industries.top(topIndustries)
		names := make([]string, len(industries))
		for i, ind := range industries {
			names[i] = ind.Skill
		}

		records = append(records, TrendRecord{
			PK:               PartitionKey(skill),
			SK:               SortKey(region, seniority),
			Skill:            skill,
			Region:           region,
			Seniority:        seniority,
			SkillType:        SkillType(skill),
			Count:            agg.count,
			RelativeDemand:   float64(agg.count) / float64(total),
			Cooccurring:      agg.cooccurring.top(topCooccurring),
			AvgSalary:        avg,
			RemotePercentage: 100 * float64(agg.remoteCount) / float64(agg.count),
			TopIndustries:    names,
			LastUpdated:      asOf.UTC(),
		})
	}
	return records
}

// partitions splits n items into at most workers contiguous [start, end) ranges.
func partitions(n, workers int) [][2]int {
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers
	out := make([][2]int, 0, workers)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
