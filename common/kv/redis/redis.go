package redis

import (
	"context"
	"errors"
	"sync/atomic"

	"jobtrends/common/kv"

	"github.com/redis/go-redis/v9"
)

const (
	createdField = "_created_at"
	listSuffix   = ":list"
)

type Store struct {
	client redis.UniversalClient
	opts   kv.Options
	closed atomic.Bool
}

func New(opts kv.Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisURL,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	return NewWithClient(client, opts)
}

func NewWithClient(client redis.UniversalClient, opts kv.Options) *Store {
	return &Store{client: client, opts: opts}
}

func (s *Store) key(key string) string {
	return s.opts.KeyPrefix + key
}

func (s *Store) GetField(ctx context.Context, keys []string, field string) (map[string]string, error) {
	if s.closed.Load() {
		return nil, kv.ErrClosed
	}
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		if key == "" {
			return nil, kv.ErrInvalidKey
		}
		cmds[i] = pipe.HGet(ctx, s.key(key), field)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	out := make(map[string]string, len(keys))
	for i, cmd := range cmds {
		val, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[keys[i]] = val
	}
	return out, nil
}

func (s *Store) GetAll(ctx context.Context, key string) (map[string]string, error) {
	if s.closed.Load() {
		return nil, kv.ErrClosed
	}
	fields, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, kv.ErrNotFound
	}
	delete(fields, createdField)
	return fields, nil
}

func (s *Store) List(ctx context.Context, key string) ([]string, error) {
	if s.closed.Load() {
		return nil, kv.ErrClosed
	}
	return s.client.LRange(ctx, s.key(key)+listSuffix, 0, -1).Result()
}

func (s *Store) Merge(ctx context.Context, key string, m kv.Merge) (bool, error) {
	if s.closed.Load() {
		return false, kv.ErrClosed
	}
	if key == "" {
		return false, kv.ErrInvalidKey
	}

	k := s.key(key)
	var created *redis.BoolCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.HSetNX(ctx, k, createdField, "1")
		for field, value := range m.SetIfAbsent {
			pipe.HSetNX(ctx, k, field, value)
		}
		if len(m.Set) > 0 {
			values := make([]interface{}, 0, len(m.Set)*2)
			for field, value := range m.Set {
				values = append(values, field, value)
			}
			pipe.HSet(ctx, k, values...)
		}
		if len(m.Append) > 0 {
			values := make([]interface{}, len(m.Append))
			for i, v := range m.Append {
				values[i] = v
			}
			pipe.RPush(ctx, k+listSuffix, values...)
		}

		ttl := m.TTL
		if ttl == 0 {
			ttl = s.opts.DefaultTTL
		}
		if ttl > 0 {
			pipe.Expire(ctx, k, ttl)
			pipe.Expire(ctx, k+listSuffix, ttl)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created.Val(), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return kv.ErrClosed
	}
	k := s.key(key)
	return s.client.Del(ctx, k, k+listSuffix).Err()
}

func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}
