package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"jobtrends/common/identity"
	"jobtrends/services/ingestion/internal/models"

	"go.uber.org/zap"
)

type hashStats struct {
	hashed  int32
	skipped int32
}

// workerManager canonicalises and hashes raw postings on a fixed pool.
type workerManager struct {
	hasher     identity.Hasher
	numWorkers int
	logger     *zap.Logger
}

func newWorkerManager(hasher identity.Hasher, numWorkers int, logger *zap.Logger) *workerManager {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &workerManager{
		hasher:     hasher,
		numWorkers: numWorkers,
		logger:     logger,
	}
}

// canonicalize returns one canonical posting per raw posting, in input order.
// Work stops early when ctx is done; unprocessed slots are dropped.
func (w *workerManager) canonicalize(ctx context.Context, raws []models.RawPosting) ([]models.CanonicalPosting, *hashStats) {
	stats := &hashStats{}
	out := make([]models.CanonicalPosting, len(raws))
	done := make([]bool, len(raws))
	indexChan := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < w.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexChan {
				out[idx] = models.Canonicalize(w.hasher, raws[idx])
				done[idx] = true
				atomic.AddInt32(&stats.hashed, 1)
			}
		}()
	}

	w.feed(ctx, len(raws), indexChan)
	wg.Wait()

	result := out[:0]
	for i := range out {
		if !done[i] {
			atomic.AddInt32(&stats.skipped, 1)
			continue
		}
		result = append(result, out[i])
	}
	if stats.skipped > 0 {
		w.logger.Warn("canonicalisation interrupted",
			zap.Int32("hashed", stats.hashed),
			zap.Int32("skipped", stats.skipped))
	}
	return result, stats
}

func (w *workerManager) feed(ctx context.Context, n int, indexChan chan<- int) {
	defer close(indexChan)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return
		case indexChan <- i:
		}
	}
}
