package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"jobtrends/common/errors"
	"jobtrends/common/retry"
	"jobtrends/services/trends/internal/slices"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fastRetry = retry.Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func items(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestWriteChunkedSizes(t *testing.T) {
	var sizes []int
	report := writeChunked(context.Background(), "t", items(60), 25, fastRetry, zap.NewNop(),
		func(_ context.Context, chunk []int) error {
			sizes = append(sizes, len(chunk))
			return nil
		})

	assert.Equal(t, []int{25, 25, 10}, sizes)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 60, report.Written)
	assert.Zero(t, report.FailedChunks())
	assert.NoError(t, report.Err())
}

func TestWriteChunkedRetriesAndReportsFailures(t *testing.T) {
	attempts := map[int]int{}
	report := writeChunked(context.Background(), "skill_trend_slices", items(75), 25, fastRetry, zap.NewNop(),
		func(_ context.Context, chunk []int) error {
			first := chunk[0]
			attempts[first]++
			switch {
			case first == 0 && attempts[first] < 3:
				return errors.Unavailable("flaky", fmt.Errorf("timeout"))
			case first == 25:
				return errors.Unavailable("down", fmt.Errorf("refused"))
			}
			return nil
		})

	assert.Equal(t, 3, attempts[0])
	assert.Equal(t, 3, attempts[25])
	assert.Equal(t, 1, attempts[50])

	assert.Equal(t, 50, report.Written)
	require.Equal(t, 1, report.FailedChunks())
	assert.Equal(t, 1, report.Failed[0].Index)
	assert.Equal(t, 25, report.Failed[0].Rows)
	assert.True(t, errors.IsType(report.Err(), errors.ErrTypePartial))
}

func TestWriteChunkedDoesNotRetryInvalidInput(t *testing.T) {
	calls := 0
	report := writeChunked(context.Background(), "region_totals", items(3), 25, fastRetry, zap.NewNop(),
		func(_ context.Context, _ []int) error {
			calls++
			return errors.InvalidInput("bad row", nil)
		})

	assert.Equal(t, 1, calls)
	assert.Zero(t, report.Written)
	assert.True(t, errors.IsType(report.Err(), errors.ErrTypeUnavailable))
}

func TestWriteChunkedEmpty(t *testing.T) {
	report := writeChunked(context.Background(), "t", []int{}, 25, fastRetry, zap.NewNop(),
		func(_ context.Context, _ []int) error {
			t.Fatal("send called for empty input")
			return nil
		})
	assert.Zero(t, report.Chunks)
	assert.NoError(t, report.Err())
}

func TestNewTrendStoreClampsChunkSize(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, NewTrendStore(nil, Options{ChunkSize: 500}, zap.NewNop()).opts.ChunkSize)
	assert.Equal(t, DefaultChunkSize, NewTrendStore(nil, Options{}, zap.NewNop()).opts.ChunkSize)
	assert.Equal(t, 10, NewTrendStore(nil, Options{ChunkSize: 10}, zap.NewNop()).opts.ChunkSize)
}

func TestCountColumns(t *testing.T) {
	names, counts := splitCounts([]slices.Count{{Name: "go", Count: 3}, {Name: "k8s", Count: 1}})
	assert.Equal(t, []string{"go", "k8s"}, names)
	assert.Equal(t, []uint32{3, 1}, counts)

	assert.Equal(t, []slices.Count{{Name: "go", Count: 3}, {Name: "k8s", Count: 0}}, joinCounts(names, counts[:1]))
	assert.Nil(t, joinCounts(nil, nil))

	names, counts = splitCounts(nil)
	assert.NotNil(t, names)
	assert.Empty(t, counts)
}

func TestKeyColumns(t *testing.T) {
	skills, sortKeys := keyColumns([]slices.Key{
		{Skill: "go", SortKey: "US#All#All#2025-W44"},
		{Skill: "go", SortKey: "GLOBAL#All#All#2025-W44"},
		{Skill: "rust", SortKey: "US#All#All#2025-W44"},
	})
	assert.Equal(t, []string{"go", "rust"}, skills)
	assert.Len(t, sortKeys, 3)
}
