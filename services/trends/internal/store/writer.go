package store

import (
	"context"
	"fmt"

	"jobtrends/common/errors"
	"jobtrends/common/retry"
	"jobtrends/common/telemetry"
	"jobtrends/services/trends/internal/slices"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("trends/store")

const DefaultChunkSize = 25

type ChunkFailure struct {
	Table string
	Index int
	Rows  int
	Err   error
}

// WriteReport describes one chunked write. A failed chunk does not stop the
// chunks after it.
type WriteReport struct {
	Table   string
	Rows    int
	Written int
	Chunks  int
	Failed  []ChunkFailure
}

func (r WriteReport) FailedChunks() int {
	return len(r.Failed)
}

// Err is nil when every chunk landed, a partial failure when some did and
// unavailable when none did.
func (r WriteReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	last := r.Failed[len(r.Failed)-1].Err
	msg := fmt.Sprintf("%s: %d of %d chunks failed", r.Table, len(r.Failed), r.Chunks)
	if len(r.Failed) == r.Chunks {
		return errors.Unavailable(msg, last)
	}
	return errors.Partial(msg, last)
}

// writeChunked sends items in chunks of at most size, retrying each chunk
// under policy.
func writeChunked[T any](
	ctx context.Context,
	table string,
	items []T,
	size int,
	policy retry.Policy,
	logger *zap.Logger,
	send func(ctx context.Context, chunk []T) error,
) WriteReport {
	ctx, span := tracer.Start(ctx, "store.writeChunked")
	defer span.End()

	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := slices.Chunk(items, size)
	report := WriteReport{Table: table, Rows: len(items), Chunks: len(chunks)}
	span.SetAttributes(
		telemetry.String("table", table),
		telemetry.Int("rows", len(items)),
		telemetry.Int("chunks", len(chunks)),
	)

	for i, chunk := range chunks {
		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			return send(ctx, chunk)
		})
		if err != nil {
			span.RecordError(err)
			logger.Warn("chunk write failed",
				zap.String("table", table),
				zap.Int("chunk", i),
				zap.Int("rows", len(chunk)),
				zap.Error(err))
			report.Failed = append(report.Failed, ChunkFailure{Table: table, Index: i, Rows: len(chunk), Err: err})
			continue
		}
		report.Written += len(chunk)
	}

	span.SetAttributes(telemetry.Int("failed_chunks", len(report.Failed)))
	return report
}
