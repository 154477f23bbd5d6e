package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/salary"
	"jobtrends/common/telemetry"
	"jobtrends/services/trends/internal/aggregator"
	"jobtrends/services/trends/internal/enriched"
	"jobtrends/services/trends/internal/slices"
	"jobtrends/services/trends/internal/store"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("trends/processor")

const maxReportErrors = 50

// TrendStore is the write side of the trend row store.
type TrendStore interface {
	WriteRecords(ctx context.Context, records []aggregator.TrendRecord) store.WriteReport
	WriteSlices(ctx context.Context, rows []slices.Row) store.WriteReport
	WriteTotals(ctx context.Context, totals []slices.Total) store.WriteReport
	SlicesByKeys(ctx context.Context, keys []slices.Key) (map[slices.Key]slices.Previous, error)
}

type Options struct {
	Lookback    time.Duration
	Granularity slices.Granularity
	ForcePeriod string
	Dimension   slices.Dimension
	Workers     int
	Blender     *salary.Blender
}

type Report struct {
	Kind         string        `json:"kind"`
	Period       string        `json:"period,omitempty"`
	Postings     int           `json:"postings"`
	Records      int           `json:"records"`
	Slices       int           `json:"slices"`
	Totals       int           `json:"totals"`
	FailedChunks int           `json:"failedChunks"`
	Errors       []string      `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration"`
}

func (r *Report) addError(err error) {
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, err.Error())
	}
}

func (r *Report) absorb(w store.WriteReport) error {
	r.FailedChunks += w.FailedChunks()
	for _, f := range w.Failed {
		r.addError(fmt.Errorf("%s chunk %d: %w", f.Table, f.Index, f.Err))
	}
	return w.Err()
}

type TrendProcessor struct {
	source enriched.Source
	store  TrendStore
	opts   Options
	logger *zap.Logger

	// runs never overlap
	mu sync.Mutex
}

func NewTrendProcessor(source enriched.Source, trendStore TrendStore, opts Options, logger *zap.Logger) *TrendProcessor {
	if opts.Lookback <= 0 {
		opts.Lookback = 720 * time.Hour
	}
	if opts.Granularity == "" {
		opts.Granularity = slices.Weekly
	}
	if opts.Dimension == "" {
		opts.Dimension = slices.DimensionTechnology
	}
	if opts.Blender == nil {
		opts.Blender = salary.NewBlender()
	}
	return &TrendProcessor{source: source, store: trendStore, opts: opts, logger: logger}
}

// RunSkillTrends aggregates the lookback window ending at now into per
// skill, region and seniority records.
func (p *TrendProcessor) RunSkillTrends(ctx context.Context, now time.Time) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := tracer.Start(ctx, "TrendProcessor.RunSkillTrends")
	defer span.End()

	start := time.Now()
	report := &Report{Kind: "skill-trends"}
	defer func() { report.Duration = time.Since(start) }()

	now = now.UTC()
	postings, err := p.source.Window(ctx, now.Add(-p.opts.Lookback), now)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	report.Postings = len(postings)
	span.SetAttributes(telemetry.Int("postings", len(postings)))

	if len(postings) == 0 {
		p.logger.Info("no enriched postings in window, skipping skill trends",
			zap.Duration("lookback", p.opts.Lookback))
		return report, nil
	}

	usage := &salary.Usage{}
	agg := aggregator.New(aggregator.Options{
		Workers: p.opts.Workers,
		Blender: p.opts.Blender,
		Usage:   usage,
	}, p.logger)

	records, err := agg.Aggregate(ctx, aggregator.Window{Postings: postings, AsOf: now})
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	report.Records = len(records)

	writeErr := report.absorb(p.store.WriteRecords(ctx, records))
	if writeErr != nil {
		span.RecordError(writeErr)
	}

	p.logger.Info("skill trends aggregated",
		zap.Int("postings", report.Postings),
		zap.Int("records", report.Records),
		zap.Int("failed_chunks", report.FailedChunks),
		zap.Int("salary_weighted", usage.Count(salary.SourceWeighted)),
		zap.Int("salary_no_anchor", usage.NoAnchor()))
	return report, writeErr
}

// RunPeriodSlices builds and stores the work mode and seniority slices for
// one period. An empty period is resolved from the configured granularity.
func (p *TrendProcessor) RunPeriodSlices(ctx context.Context, period string, now time.Time) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := tracer.Start(ctx, "TrendProcessor.RunPeriodSlices")
	defer span.End()

	start := time.Now()
	report := &Report{Kind: "period-slices"}
	defer func() { report.Duration = time.Since(start) }()

	now = now.UTC()
	if period == "" {
		resolved, ok := slices.ResolvePeriod(p.opts.ForcePeriod, p.opts.Granularity, now)
		if !ok {
			p.logger.Warn("forced period could not be parsed, using current period",
				zap.String("forced", p.opts.ForcePeriod),
				zap.String("granularity", string(p.opts.Granularity)),
				zap.String("period", resolved))
		}
		period = resolved
	}
	report.Period = period
	span.SetAttributes(telemetry.String("period", period))

	from, to, ok := slices.Range(period)
	if !ok {
		return report, errors.InvalidInput(fmt.Sprintf("period %q is neither a week nor a day", period), nil)
	}

	postings, err := p.source.Window(ctx, from, to)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	report.Postings = len(postings)

	if len(postings) == 0 {
		p.logger.Info("no enriched postings for period, skipping slices", zap.String("period", period))
		return report, nil
	}

	builder := slices.NewBuilder(slices.Options{Dimension: p.opts.Dimension, Blender: p.opts.Blender})
	built := builder.Build(postings, period, now)
	report.Slices = len(built.Rows)
	report.Totals = len(built.Totals)

	previous, err := p.store.SlicesByKeys(ctx, slices.PreviousKeys(built.Rows))
	if err != nil {
		p.logger.Warn("previous period unavailable, writing slices without momentum",
			zap.String("period", period),
			zap.Error(err))
		report.addError(err)
	} else {
		matched := slices.ApplyMomentum(built.Rows, previous)
		span.SetAttributes(telemetry.Int("momentum_rows", matched))
	}

	var writeErr error
	if err := report.absorb(p.store.WriteTotals(ctx, built.Totals)); err != nil {
		writeErr = err
	}
	if err := report.absorb(p.store.WriteSlices(ctx, built.Rows)); err != nil {
		writeErr = err
	}
	if writeErr != nil {
		span.RecordError(writeErr)
	}

	usage := builder.Usage()
	p.logger.Info("period slices aggregated",
		zap.String("period", period),
		zap.Int("postings", report.Postings),
		zap.Int("skipped", built.Skipped),
		zap.Int("slices", report.Slices),
		zap.Int("totals", report.Totals),
		zap.Int("failed_chunks", report.FailedChunks),
		zap.Int("salary_actual", usage.Count(salary.SourceActual)),
		zap.Int("salary_anchor", usage.Count(salary.SourceAnchor)),
		zap.Int("salary_weighted", usage.Count(salary.SourceWeighted)),
		zap.Int("salary_clamped", usage.Count(salary.SourceClamped)))
	return report, writeErr
}

// RunAll runs both aggregations and returns whatever reports were produced.
// The first error is returned after both have been attempted.
func (p *TrendProcessor) RunAll(ctx context.Context, period string, now time.Time) ([]*Report, error) {
	trends, trendsErr := p.RunSkillTrends(ctx, now)
	sliced, slicesErr := p.RunPeriodSlices(ctx, period, now)

	reports := []*Report{trends, sliced}
	if trendsErr != nil {
		return reports, trendsErr
	}
	return reports, slicesErr
}
