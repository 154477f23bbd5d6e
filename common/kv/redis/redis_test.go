package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"jobtrends/common/kv"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	opts := kv.DefaultOptions()
	opts.RedisURL = addr
	opts.KeyPrefix = "test:" + uuid.NewString() + ":"
	opts.DefaultTTL = time.Minute

	s := New(opts)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMergeAndRead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.Merge(ctx, "h1", kv.Merge{
		SetIfAbsent: map[string]string{"company": "meta", "sig": "a"},
		Append:      []string{"muse"},
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Merge(ctx, "h1", kv.Merge{
		SetIfAbsent: map[string]string{"company": "other"},
		Set:         map[string]string{"sig": "b"},
		Append:      []string{"greenhouse"},
	})
	require.NoError(t, err)
	assert.False(t, created)

	fields, err := s.GetAll(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"company": "meta", "sig": "b"}, fields)

	list, err := s.List(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, []string{"muse", "greenhouse"}, list)

	sigs, err := s.GetField(ctx, []string{"h1", "missing"}, "sig")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"h1": "b"}, sigs)

	require.NoError(t, s.Delete(ctx, "h1"))
	_, err = s.GetAll(ctx, "h1")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestClosedStore(t *testing.T) {
	s := NewWithClient(nil, kv.DefaultOptions())
	s.closed.Store(true)

	_, err := s.GetField(context.Background(), []string{"a"}, "sig")
	assert.ErrorIs(t, err, kv.ErrClosed)
	_, err = s.Merge(context.Background(), "a", kv.Merge{})
	assert.ErrorIs(t, err, kv.ErrClosed)
	assert.NoError(t, s.Close())
}
