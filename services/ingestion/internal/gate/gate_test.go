package gate

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/retry"
	"jobtrends/services/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLookup struct {
	mu       sync.Mutex
	stored   map[string]string
	fail     func(keys []string) bool
	calls    atomic.Int32
	maxChunk int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeLookup) Signatures(ctx context.Context, hashes []string) (map[string]string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(hashes) > f.maxChunk {
		f.maxChunk = len(hashes)
	}
	if f.fail != nil && f.fail(hashes) {
		return nil, stderrors.New("store timeout")
	}
	out := make(map[string]string)
	for _, h := range hashes {
		if sig, ok := f.stored[h]; ok {
			out[h] = sig
		}
	}
	return out, nil
}

func fastOptions() Options {
	return Options{
		ChunkSize:   100,
		Concurrency: 10,
		Retry:       retry.Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	}
}

func canon(hash, sig string) models.CanonicalPosting {
	return models.CanonicalPosting{PostingHash: hash, DescriptionSig: sig}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		fresh  string
		stored string
		found  bool
		want   Status
	}{
		{"absent", "a", "", false, StatusNew},
		{"same signature", "a", "a", true, StatusUnchanged},
		{"different signature", "b", "a", true, StatusChanged},
		{"empty fresh signature", "", "a", true, StatusUnchanged},
		{"stored empty fresh present", "a", "", true, StatusChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.fresh, tt.stored, tt.found))
		})
	}
}

func TestGateClassifiesBatch(t *testing.T) {
	lookup := &fakeLookup{stored: map[string]string{"h2": "s2", "h3": "old"}}
	g := New(lookup, fastOptions(), zap.NewNop())

	res, err := g.Classify(context.Background(), []models.CanonicalPosting{
		canon("h1", "s1"),
		canon("h2", "s2"),
		canon("h3", "new"),
		canon("h1", "s1"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.New)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 1, res.Chunks)

	persist := res.Persist()
	require.Len(t, persist, 3)
	assert.Equal(t, "h1", persist[0].Posting.PostingHash)
	assert.Equal(t, "h3", persist[1].Posting.PostingHash)
	assert.Equal(t, "old", persist[1].StoredSig)
	assert.Equal(t, "h1", persist[2].Posting.PostingHash)
}

func TestGateChunksAndBoundsConcurrency(t *testing.T) {
	var postings []models.CanonicalPosting
	for i := 0; i < 1050; i++ {
		postings = append(postings, canon(fmt.Sprintf("h%d", i), "sig"))
	}

	lookup := &fakeLookup{stored: map[string]string{}}
	opts := fastOptions()
	opts.Concurrency = 3
	g := New(lookup, opts, zap.NewNop())

	res, err := g.Classify(context.Background(), postings)
	require.NoError(t, err)

	assert.Equal(t, 11, res.Chunks)
	assert.Equal(t, int32(11), lookup.calls.Load())
	assert.LessOrEqual(t, lookup.maxChunk, 100)
	assert.LessOrEqual(t, lookup.peak.Load(), int32(3))
	assert.Equal(t, 1050, res.New)
}

func TestGateFailedChunkDefaultsToNew(t *testing.T) {
	lookup := &fakeLookup{
		stored: map[string]string{"h1": "s1", "h2": "s2"},
		fail: func(keys []string) bool {
			return keys[0] == "h2"
		},
	}
	opts := fastOptions()
	opts.ChunkSize = 1
	g := New(lookup, opts, zap.NewNop())

	res, err := g.Classify(context.Background(), []models.CanonicalPosting{
		canon("h1", "s1"),
		canon("h2", "s2"),
	})
	require.NoError(t, err)

	require.Len(t, res.ChunkErrors, 1)
	assert.Equal(t, 1, res.ChunkErrors[0].Index)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 1, res.New)
	assert.True(t, res.Decisions[1].LookupFailed)
	assert.Equal(t, StatusNew, res.Decisions[1].Status)

	// one success plus three attempts for the failing chunk
	assert.Equal(t, int32(4), lookup.calls.Load())
}

func TestGateAllChunksFailed(t *testing.T) {
	lookup := &fakeLookup{fail: func([]string) bool { return true }}
	g := New(lookup, fastOptions(), zap.NewNop())

	res, err := g.Classify(context.Background(), []models.CanonicalPosting{canon("h1", "s1")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeUnavailable))
	assert.Equal(t, 1, res.New)
	assert.Len(t, res.ChunkErrors, 1)
}

func TestGateEmptyBatch(t *testing.T) {
	lookup := &fakeLookup{}
	g := New(lookup, fastOptions(), zap.NewNop())

	res, err := g.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)
	assert.Empty(t, res.Persist())
	assert.Zero(t, lookup.calls.Load())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "new", StatusNew.String())
	assert.Equal(t, "changed", StatusChanged.String())
	assert.Equal(t, "unchanged", StatusUnchanged.String())
}
