package scheduler

import (
	"context"
	"sync"
	"time"

	"jobtrends/common/telemetry"
	"jobtrends/services/ingestion/internal/models"
	"jobtrends/services/ingestion/internal/pipeline"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("ingestion/scheduler")

type Source interface {
	Ready() <-chan struct{}
	Drain() []models.RawPosting
	Requeue(batch []models.RawPosting)
}

type Runner interface {
	Run(ctx context.Context, raws []models.RawPosting) (*pipeline.Summary, error)
}

// JobScheduler flushes buffered postings through the pipeline on every tick
// or as soon as the source reports a full batch.
type JobScheduler struct {
	source   Source
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
	mutex    sync.Mutex
	isActive bool
}

func NewJobScheduler(source Source, runner Runner, interval time.Duration, logger *zap.Logger) *JobScheduler {
	return &JobScheduler{
		source:   source,
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

func (s *JobScheduler) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.isActive {
		s.mutex.Unlock()
		return nil
	}
	s.isActive = true
	s.mutex.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// flush what is left with a fresh context so shutdown does not lose it
			flushCtx, cancel := context.WithTimeout(context.Background(), s.interval)
			if _, err := s.Flush(flushCtx); err != nil {
				s.logger.Error("final flush failed", zap.Error(err))
			}
			cancel()
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Flush(ctx); err != nil {
				s.logger.Error("periodic flush failed", zap.Error(err))
			}
		case <-s.source.Ready():
			if _, err := s.Flush(ctx); err != nil {
				s.logger.Error("batch flush failed", zap.Error(err))
			}
		}
	}
}

func (s *JobScheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.isActive = false
}

// Flush runs the pipeline over everything buffered so far. It returns a nil
// summary when nothing was pending. A batch the pipeline rejects goes back to
// the source for the next flush.
func (s *JobScheduler) Flush(ctx context.Context) (*pipeline.Summary, error) {
	batch := s.source.Drain()
	if len(batch) == 0 {
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "JobScheduler.Flush")
	defer span.End()
	span.SetAttributes(telemetry.Int("batch.size", len(batch)))

	summary, err := s.runner.Run(ctx, batch)
	if err != nil {
		span.RecordError(err)
		s.source.Requeue(batch)
		s.logger.Warn("ingestion run failed, batch requeued",
			zap.Int("batch.size", len(batch)),
			zap.Error(err))
		return summary, err
	}
	return summary, nil
}
