package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"jobtrends/common/archive"
	"jobtrends/common/identity"
	"jobtrends/common/retry"
	"jobtrends/common/telemetry"
	"jobtrends/services/ingestion/internal/gate"
	"jobtrends/services/ingestion/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = telemetry.GetTracer("ingestion/pipeline")

// IdentityStore upsert-merges a posting into its identity record and
// reports whether the record was created.
type IdentityStore interface {
	Upsert(ctx context.Context, p models.CanonicalPosting) (bool, error)
}

// PostingSink receives every persisted posting of a run in one batch.
type PostingSink interface {
	Insert(ctx context.Context, postings []models.PersistedPosting) error
}

type Publisher interface {
	PublishPersisted(ctx context.Context, p models.PersistedPosting) error
}

type Options struct {
	HashWorkers        int
	PersistConcurrency int
	Retry              retry.Policy
	ArchivePolicy      archive.Policy
}

func DefaultOptions() Options {
	return Options{
		HashWorkers:        4,
		PersistConcurrency: 10,
		Retry:              retry.DefaultPolicy(),
		ArchivePolicy:      archive.PolicyNew,
	}
}

type Pipeline struct {
	gate      *gate.Gate
	identity  IdentityStore
	sink      PostingSink
	publisher Publisher
	archiver  archive.Archiver
	workers   *workerManager
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a pipeline. sink, publisher and archiver are optional.
func New(g *gate.Gate, hasher identity.Hasher, store IdentityStore, sink PostingSink, publisher Publisher, archiver archive.Archiver, opts Options, logger *zap.Logger) *Pipeline {
	if opts.PersistConcurrency < 1 {
		opts.PersistConcurrency = 1
	}
	return &Pipeline{
		gate:      g,
		identity:  store,
		sink:      sink,
		publisher: publisher,
		archiver:  archiver,
		workers:   newWorkerManager(hasher, opts.HashWorkers, logger),
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Run ingests one batch of raw postings. Persistence of individual postings
// keeps going past failures, which are counted in the summary. An error is
// returned only when the batch could not be classified at all.
func (p *Pipeline) Run(ctx context.Context, raws []models.RawPosting) (*Summary, error) {
	summary := newSummary(uuid.NewString(), p.now().UTC())
	ctx, span := tracer.Start(ctx, "Pipeline.Run")
	defer span.End()
	span.SetAttributes(
		telemetry.String("run_id", summary.RunID),
		telemetry.Int("fetched", len(raws)),
	)
	defer func() {
		summary.Duration = p.now().UTC().Sub(summary.StartedAt)
	}()

	summary.Fetched = len(raws)
	for _, r := range raws {
		summary.source(r.Source).Fetched++
	}
	if len(raws) == 0 {
		return summary, nil
	}

	postings, stats := p.workers.canonicalize(ctx, raws)
	if stats.skipped > 0 {
		summary.addError("", "canonicalisation interrupted after %d of %d postings", stats.hashed, len(raws))
	}
	summary.UniqueByHash = countUnique(postings)

	res, err := p.gate.Classify(ctx, postings)
	for _, ce := range res.ChunkErrors {
		summary.addError("", "%s", ce.Error())
	}
	summary.NewOrChanged = res.New + res.Changed
	summary.Unchanged = res.Unchanged
	if err != nil {
		span.RecordError(err)
		p.logger.Error("classification failed, aborting run",
			zap.String("run_id", summary.RunID),
			zap.Error(err))
		return summary, err
	}

	decisions := res.Persist()
	for _, d := range decisions {
		summary.source(d.Posting.Source).NewOrChanged++
	}

	persisted := p.persist(ctx, summary, decisions)
	p.insert(ctx, summary, persisted)
	p.publish(ctx, summary, persisted)
	p.archive(ctx, summary, decisions)

	span.SetAttributes(
		telemetry.Int("new_or_changed", summary.NewOrChanged),
		telemetry.Int("unchanged", summary.Unchanged),
		telemetry.Int("upserts", summary.Upserts),
		telemetry.Int("errors", summary.Errors),
	)
	p.logger.Info("ingestion run completed",
		zap.String("run_id", summary.RunID),
		zap.Int("fetched", summary.Fetched),
		zap.Int("unique", summary.UniqueByHash),
		zap.Int("new_or_changed", summary.NewOrChanged),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("upserts", summary.Upserts),
		zap.Int("archived", summary.Archived),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

func (p *Pipeline) persist(ctx context.Context, summary *Summary, decisions []gate.Decision) []models.PersistedPosting {
	ctx, span := tracer.Start(ctx, "Pipeline.persist")
	defer span.End()

	type outcome struct {
		posting  models.PersistedPosting
		inserted bool
		err      error
	}
	outcomes := make([]outcome, len(decisions))

	eg := new(errgroup.Group)
	eg.SetLimit(p.opts.PersistConcurrency)
	for i, d := range decisions {
		i, d := i, d
		eg.Go(func() error {
			var inserted bool
			err := retry.Do(ctx, p.opts.Retry, func(ctx context.Context) error {
				var err error
				inserted, err = p.identity.Upsert(ctx, d.Posting)
				return err
			})
			outcomes[i] = outcome{
				posting: models.PersistedPosting{
					CanonicalPosting: d.Posting,
					Status:           d.Status.String(),
					RunID:            summary.RunID,
					Inserted:         inserted,
					PersistedAt:      p.now().UTC(),
				},
				inserted: inserted,
				err:      err,
			}
			return nil
		})
	}
	_ = eg.Wait()

	persisted := make([]models.PersistedPosting, 0, len(decisions))
	for _, o := range outcomes {
		if o.err != nil {
			summary.addError(o.posting.Source, "upsert %s: %v", o.posting.PostingHash, o.err)
			continue
		}
		summary.Upserts++
		persisted = append(persisted, o.posting)
	}
	span.SetAttributes(telemetry.Int("upserts", summary.Upserts))
	return persisted
}

func (p *Pipeline) insert(ctx context.Context, summary *Summary, persisted []models.PersistedPosting) {
	if p.sink == nil || len(persisted) == 0 {
		return
	}
	err := retry.Do(ctx, p.opts.Retry, func(ctx context.Context) error {
		return p.sink.Insert(ctx, persisted)
	})
	if err != nil {
		summary.addError("", "postings insert: %v", err)
		return
	}
	summary.Inserted = len(persisted)
}

func (p *Pipeline) publish(ctx context.Context, summary *Summary, persisted []models.PersistedPosting) {
	if p.publisher == nil {
		return
	}
	for _, pp := range persisted {
		if err := p.publisher.PublishPersisted(ctx, pp); err != nil {
			summary.addError(pp.Source, "publish %s: %v", pp.PostingHash, err)
			continue
		}
		summary.Published++
	}
}

func (p *Pipeline) archive(ctx context.Context, summary *Summary, decisions []gate.Decision) {
	if p.archiver == nil || p.opts.ArchivePolicy == archive.PolicyNone {
		return
	}
	ctx, span := tracer.Start(ctx, "Pipeline.archive")
	defer span.End()

	var mu sync.Mutex
	eg := new(errgroup.Group)
	eg.SetLimit(p.opts.PersistConcurrency)
	for _, d := range decisions {
		d := d
		if !p.opts.ArchivePolicy.Allows(d.Status == gate.StatusNew, d.Status == gate.StatusChanged) {
			continue
		}
		eg.Go(func() error {
			data, err := json.Marshal(d.Posting.RawPosting)
			if err == nil {
				key := archive.Key(d.Posting.Source, d.Posting.Canonical.PostedDate, d.Posting.PostingHash)
				err = p.archiver.Put(ctx, key, data)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.addError(d.Posting.Source, "archive %s: %v", d.Posting.PostingHash, err)
				return nil
			}
			summary.Archived++
			return nil
		})
	}
	_ = eg.Wait()
	span.SetAttributes(telemetry.Int("archived", summary.Archived))
}

func countUnique(postings []models.CanonicalPosting) int {
	seen := make(map[string]struct{}, len(postings))
	for _, p := range postings {
		seen[p.PostingHash] = struct{}{}
	}
	return len(seen)
}
