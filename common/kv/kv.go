package kv

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("key not found in store")
	ErrClosed     = errors.New("store is closed")
	ErrInvalidKey = errors.New("invalid store key")
)

// Merge describes a read-modify-write against one record. SetIfAbsent
// fields keep their first written value, Set fields are overwritten and
// Append values are pushed onto the record's list.
type Merge struct {
	SetIfAbsent map[string]string
	Set         map[string]string
	Append      []string
	TTL         time.Duration
}

// Store is a partitioned key-value store of field maps.
type Store interface {
	// GetField reads one field from many records in a single round trip.
	// Records without the field are absent from the result.
	GetField(ctx context.Context, keys []string, field string) (map[string]string, error)

	GetAll(ctx context.Context, key string) (map[string]string, error)

	List(ctx context.Context, key string) ([]string, error)

	// Merge applies m atomically and reports whether the record was created.
	Merge(ctx context.Context, key string, m Merge) (bool, error)

	Delete(ctx context.Context, key string) error

	Close() error
}

type Options struct {
	DefaultTTL time.Duration

	KeyPrefix string

	RedisURL string

	RedisPassword string

	RedisDB int
}

func DefaultOptions() Options {
	return Options{
		KeyPrefix: "posting:",
	}
}
