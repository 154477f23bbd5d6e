package store

import (
	"context"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/retry"
	"jobtrends/services/trends/internal/aggregator"
	"jobtrends/services/trends/internal/slices"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

const (
	insertSkillTrends = `INSERT INTO skill_trends (
	pk, sk, skill, region, seniority, skill_type, count, relative_demand,
	cooccurring_skills, cooccurring_counts, avg_salary, remote_percentage,
	top_industries, last_updated
)`

	insertSlices = `INSERT INTO skill_trend_slices (
	skill_canonical, sort_key, skill_display, region, seniority, work_mode,
	period, period_skill, job_count_desc, dimension, job_count,
	salary_min, salary_max, salary_median, salary_p75, salary_p95,
	remote_share, regional_share, global_share,
	job_count_change_pct, median_salary_change_pct, trend_signal,
	cooccurring_names, cooccurring_counts, industry_names, industry_counts,
	title_names, title_counts, updated_at
)`

	insertTotals = `INSERT INTO region_totals (period, region, job_count, updated_at)`

	sliceColumns = `skill_canonical, sort_key, skill_display, region, seniority, work_mode,
	period, period_skill, job_count_desc, dimension, job_count,
	salary_min, salary_max, salary_median, salary_p75, salary_p95,
	remote_share, regional_share, global_share,
	job_count_change_pct, median_salary_change_pct, trend_signal,
	cooccurring_names, cooccurring_counts, industry_names, industry_counts,
	title_names, title_counts, updated_at`

	selectSlicesForSkill = `SELECT ` + sliceColumns + `
	FROM skill_trend_slices FINAL
	WHERE skill_canonical = ?
	ORDER BY sort_key`

	selectPrevious = `SELECT skill_canonical, sort_key, job_count, salary_median
	FROM skill_trend_slices FINAL
	WHERE skill_canonical IN ? AND sort_key IN ?`
)

// KeysPerRead bounds how many keys one previous-period read asks for.
const KeysPerRead = 100

type Options struct {
	ChunkSize int
	Retry     retry.Policy
}

// TrendStore keeps trend records, period slices and region totals in
// ClickHouse.
type TrendStore struct {
	conn   clickhouse.Conn
	opts   Options
	logger *zap.Logger
}

func NewTrendStore(conn clickhouse.Conn, opts Options, logger *zap.Logger) *TrendStore {
	if opts.ChunkSize <= 0 || opts.ChunkSize > DefaultChunkSize {
		opts.ChunkSize = DefaultChunkSize
	}
	return &TrendStore{conn: conn, opts: opts, logger: logger}
}

func (s *TrendStore) WriteRecords(ctx context.Context, records []aggregator.TrendRecord) WriteReport {
	return writeChunked(ctx, "skill_trends", records, s.opts.ChunkSize, s.opts.Retry, s.logger,
		func(ctx context.Context, chunk []aggregator.TrendRecord) error {
			batch, err := s.conn.PrepareBatch(ctx, insertSkillTrends)
			if err != nil {
				return errors.Unavailable("preparing skill trends batch", err)
			}
			for _, r := range chunk {
				names, counts := skillCounts(r.Cooccurring)
				if err := batch.Append(
					r.PK,
					r.SK,
					r.Skill,
					r.Region,
					r.Seniority,
					r.SkillType,
					uint32(r.Count),
					r.RelativeDemand,
					names,
					counts,
					r.AvgSalary,
					r.RemotePercentage,
					nonNil(r.TopIndustries),
					r.LastUpdated.UTC(),
				); err != nil {
					return errors.Internal("appending trend record "+r.PK+" "+r.SK, err)
				}
			}
			if err := batch.Send(); err != nil {
				return errors.Unavailable("sending skill trends batch", err)
			}
			return nil
		})
}

func (s *TrendStore) WriteSlices(ctx context.Context, rows []slices.Row) WriteReport {
	return writeChunked(ctx, "skill_trend_slices", rows, s.opts.ChunkSize, s.opts.Retry, s.logger,
		func(ctx context.Context, chunk []slices.Row) error {
			batch, err := s.conn.PrepareBatch(ctx, insertSlices)
			if err != nil {
				return errors.Unavailable("preparing trend slices batch", err)
			}
			for _, r := range chunk {
				coNames, coCounts := splitCounts(r.Cooccurring)
				indNames, indCounts := splitCounts(r.Industries)
				titleNames, titleCounts := splitCounts(r.Titles)
				if err := batch.Append(
					r.SkillCanonical,
					r.SortKey,
					r.SkillDisplay,
					r.Region,
					r.Seniority,
					r.WorkMode,
					r.Period,
					r.PeriodSkill,
					r.JobCountDesc,
					string(r.Dimension),
					r.JobCount,
					r.SalaryMin,
					r.SalaryMax,
					r.SalaryMedian,
					r.SalaryP75,
					r.SalaryP95,
					r.RemoteShare,
					r.RegionalShare,
					r.GlobalShare,
					r.JobCountChangePct,
					r.MedianSalaryChangePct,
					string(r.TrendSignal),
					coNames,
					coCounts,
					indNames,
					indCounts,
					titleNames,
					titleCounts,
					r.UpdatedAt.UTC(),
				); err != nil {
					return errors.Internal("appending slice "+r.SkillCanonical+" "+r.SortKey, err)
				}
			}
			if err := batch.Send(); err != nil {
				return errors.Unavailable("sending trend slices batch", err)
			}
			return nil
		})
}

func (s *TrendStore) WriteTotals(ctx context.Context, totals []slices.Total) WriteReport {
	return writeChunked(ctx, "region_totals", totals, s.opts.ChunkSize, s.opts.Retry, s.logger,
		func(ctx context.Context, chunk []slices.Total) error {
			batch, err := s.conn.PrepareBatch(ctx, insertTotals)
			if err != nil {
				return errors.Unavailable("preparing region totals batch", err)
			}
			for _, t := range chunk {
				if err := batch.Append(t.Period, t.Region, t.JobCount, t.UpdatedAt.UTC()); err != nil {
					return errors.Internal("appending region total "+t.Region, err)
				}
			}
			if err := batch.Send(); err != nil {
				return errors.Unavailable("sending region totals batch", err)
			}
			return nil
		})
}

// SlicesForSkill reads every stored slice for a canonical skill.
func (s *TrendStore) SlicesForSkill(ctx context.Context, skill string) ([]slices.Row, error) {
	ctx, span := tracer.Start(ctx, "TrendStore.SlicesForSkill")
	defer span.End()

	var out []slices.Row
	err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
		rows, err := s.conn.Query(ctx, selectSlicesForSkill, skill)
		if err != nil {
			return errors.Unavailable("querying trend slices", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				r                   slices.Row
				dimension, signal   string
				coNames, indNames   []string
				titleNames          []string
				coCounts, indCounts []uint32
				titleCounts         []uint32
				updatedAt           time.Time
			)
			if err := rows.Scan(
				&r.SkillCanonical,
				&r.SortKey,
				&r.SkillDisplay,
				&r.Region,
				&r.Seniority,
				&r.WorkMode,
				&r.Period,
				&r.PeriodSkill,
				&r.JobCountDesc,
				&dimension,
				&r.JobCount,
				&r.SalaryMin,
				&r.SalaryMax,
				&r.SalaryMedian,
				&r.SalaryP75,
				&r.SalaryP95,
				&r.RemoteShare,
				&r.RegionalShare,
				&r.GlobalShare,
				&r.JobCountChangePct,
				&r.MedianSalaryChangePct,
				&signal,
				&coNames,
				&coCounts,
				&indNames,
				&indCounts,
				&titleNames,
				&titleCounts,
				&updatedAt,
			); err != nil {
				return errors.Internal("scanning trend slice", err)
			}
			r.Dimension = slices.Dimension(dimension)
			r.TrendSignal = slices.Signal(signal)
			r.Cooccurring = joinCounts(coNames, coCounts)
			r.Industries = joinCounts(indNames, indCounts)
			r.Titles = joinCounts(titleNames, titleCounts)
			r.UpdatedAt = updatedAt
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return errors.Unavailable("reading trend slices", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// SlicesByKeys fetches the momentum inputs for the given keys, KeysPerRead
// keys per query. Missing keys are absent from the result.
func (s *TrendStore) SlicesByKeys(ctx context.Context, keys []slices.Key) (map[slices.Key]slices.Previous, error) {
	ctx, span := tracer.Start(ctx, "TrendStore.SlicesByKeys")
	defer span.End()

	out := make(map[slices.Key]slices.Previous, len(keys))
	for _, chunk := range slices.Chunk(keys, KeysPerRead) {
		skills, sortKeys := keyColumns(chunk)
		wanted := make(map[slices.Key]struct{}, len(chunk))
		for _, k := range chunk {
			wanted[k] = struct{}{}
		}

		err := retry.Do(ctx, s.opts.Retry, func(ctx context.Context) error {
			rows, err := s.conn.Query(ctx, selectPrevious, skills, sortKeys)
			if err != nil {
				return errors.Unavailable("querying previous slices", err)
			}
			defer rows.Close()

			for rows.Next() {
				var (
					k    slices.Key
					prev slices.Previous
				)
				if err := rows.Scan(&k.Skill, &k.SortKey, &prev.JobCount, &prev.SalaryMedian); err != nil {
					return errors.Internal("scanning previous slice", err)
				}
				if _, ok := wanted[k]; ok {
					out[k] = prev
				}
			}
			if err := rows.Err(); err != nil {
				return errors.Unavailable("reading previous slices", err)
			}
			return nil
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	return out, nil
}

func keyColumns(keys []slices.Key) ([]string, []string) {
	skillSet := make(map[string]struct{}, len(keys))
	var skills, sortKeys []string
	for _, k := range keys {
		if _, ok := skillSet[k.Skill]; !ok {
			skillSet[k.Skill] = struct{}{}
			skills = append(skills, k.Skill)
		}
		sortKeys = append(sortKeys, k.SortKey)
	}
	return skills, sortKeys
}

func splitCounts(counts []slices.Count) ([]string, []uint32) {
	names := make([]string, len(counts))
	values := make([]uint32, len(counts))
	for i, c := range counts {
		names[i] = c.Name
		values[i] = c.Count
	}
	return names, values
}

func joinCounts(names []string, counts []uint32) []slices.Count {
	if len(names) == 0 {
		return nil
	}
	out := make([]slices.Count, 0, len(names))
	for i, name := range names {
		var n uint32
		if i < len(counts) {
			n = counts[i]
		}
		out = append(out, slices.Count{Name: name, Count: n})
	}
	return out
}

func skillCounts(counts []aggregator.SkillCount) ([]string, []uint32) {
	names := make([]string, len(counts))
	values := make([]uint32, len(counts))
	for i, c := range counts {
		names[i] = c.Skill
		values[i] = uint32(c.Count)
	}
	return names, values
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
