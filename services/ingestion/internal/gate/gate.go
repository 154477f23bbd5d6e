package gate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"jobtrends/common/errors"
	"jobtrends/common/retry"
	"jobtrends/common/telemetry"
	"jobtrends/services/ingestion/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = telemetry.GetTracer("ingestion/gate")

type Status int

const (
	StatusNew Status = iota
	StatusChanged
	StatusUnchanged
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusChanged:
		return "changed"
	case StatusUnchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Lookup reads stored description signatures. Hashes without a stored
// record must be absent from the returned map.
type Lookup interface {
	Signatures(ctx context.Context, hashes []string) (map[string]string, error)
}

type Options struct {
	ChunkSize   int
	Concurrency int
	Retry       retry.Policy
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:   100,
		Concurrency: 10,
		Retry:       retry.DefaultPolicy(),
	}
}

type Decision struct {
	Posting      models.CanonicalPosting
	Status       Status
	StoredSig    string
	LookupFailed bool
}

type ChunkError struct {
	Index  int
	Hashes int
	Err    error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("lookup chunk %d (%d hashes): %v", e.Index, e.Hashes, e.Err)
}

type Result struct {
	Decisions   []Decision
	New         int
	Changed     int
	Unchanged   int
	Chunks      int
	ChunkErrors []ChunkError
}

// Persist returns the decisions that must be written, in input order.
func (r Result) Persist() []Decision {
	out := make([]Decision, 0, r.New+r.Changed)
	for _, d := range r.Decisions {
		if d.Status != StatusUnchanged {
			out = append(out, d)
		}
	}
	return out
}

// Classify decides a single posting against its stored signature.
func Classify(freshSig, storedSig string, found bool) Status {
	switch {
	case !found:
		return StatusNew
	case freshSig != "" && freshSig != storedSig:
		return StatusChanged
	default:
		return StatusUnchanged
	}
}

type Gate struct {
	lookup Lookup
	opts   Options
	logger *zap.Logger
}

func New(lookup Lookup, opts Options, logger *zap.Logger) *Gate {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = DefaultOptions().ChunkSize
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Gate{lookup: lookup, opts: opts, logger: logger}
}

// Classify looks up every distinct hash of the batch and labels each posting
// new, changed or unchanged. Postings whose lookup chunk failed are labelled
// new so they are persisted rather than lost. When every chunk fails the
// result is still returned together with an Unavailable error.
func (g *Gate) Classify(ctx context.Context, postings []models.CanonicalPosting) (Result, error) {
	ctx, span := tracer.Start(ctx, "Gate.Classify")
	defer span.End()

	hashes := uniqueHashes(postings)
	chunks := chunk(hashes, g.opts.ChunkSize)
	span.SetAttributes(
		telemetry.Int("postings", len(postings)),
		telemetry.Int("unique_hashes", len(hashes)),
		telemetry.Int("chunks", len(chunks)),
	)

	var (
		mu     sync.Mutex
		stored = make(map[string]string, len(hashes))
		failed = make(map[string]bool)
		errs   []ChunkError
	)

	eg := new(errgroup.Group)
	eg.SetLimit(g.opts.Concurrency)
	for i, keys := range chunks {
		i, keys := i, keys
		eg.Go(func() error {
			var sigs map[string]string
			err := retry.Do(ctx, g.opts.Retry, func(ctx context.Context) error {
				found, err := g.lookup.Signatures(ctx, keys)
				if err != nil {
					return err
				}
				sigs = found
				return nil
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, ChunkError{Index: i, Hashes: len(keys), Err: err})
				for _, k := range keys {
					failed[k] = true
				}
				g.logger.Warn("lookup chunk failed",
					zap.Int("chunk", i),
					zap.Int("hashes", len(keys)),
					zap.Error(err))
				return nil
			}
			for k, v := range sigs {
				stored[k] = v
			}
			return nil
		})
	}
	_ = eg.Wait()

	sort.Slice(errs, func(i, j int) bool { return errs[i].Index < errs[j].Index })
	res := Result{
		Decisions:   make([]Decision, 0, len(postings)),
		Chunks:      len(chunks),
		ChunkErrors: errs,
	}
	for _, p := range postings {
		d := Decision{Posting: p}
		if failed[p.PostingHash] {
			d.Status = StatusNew
			d.LookupFailed = true
		} else {
			sig, found := stored[p.PostingHash]
			d.StoredSig = sig
			d.Status = Classify(p.DescriptionSig, sig, found)
		}

		switch d.Status {
		case StatusNew:
			res.New++
		case StatusChanged:
			res.Changed++
		default:
			res.Unchanged++
		}
		res.Decisions = append(res.Decisions, d)
	}

	span.SetAttributes(
		telemetry.Int("new", res.New),
		telemetry.Int("changed", res.Changed),
		telemetry.Int("unchanged", res.Unchanged),
		telemetry.Int("failed_chunks", len(errs)),
	)

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return res, err
	}
	if len(chunks) > 0 && len(errs) == len(chunks) {
		err := errors.Unavailable("identity store unavailable for every lookup chunk", errs[0].Err)
		span.RecordError(err)
		return res, err
	}
	return res, nil
}

func uniqueHashes(postings []models.CanonicalPosting) []string {
	seen := make(map[string]struct{}, len(postings))
	out := make([]string, 0, len(postings))
	for _, p := range postings {
		if p.PostingHash == "" {
			continue
		}
		if _, ok := seen[p.PostingHash]; ok {
			continue
		}
		seen[p.PostingHash] = struct{}{}
		out = append(out, p.PostingHash)
	}
	return out
}

func chunk(keys []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}

