package memory

import (
	"context"
	"sync"

	"jobtrends/common/kv"
)

type record struct {
	fields map[string]string
	list   []string
}

// Store keeps records in process memory. TTLs are ignored.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	closed  bool
}

func New() *Store {
	return &Store{records: make(map[string]*record)}
}

func (s *Store) GetField(ctx context.Context, keys []string, field string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrClosed
	}

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if key == "" {
			return nil, kv.ErrInvalidKey
		}
		if rec, ok := s.records[key]; ok {
			if v, ok := rec.fields[field]; ok {
				out[key] = v
			}
		}
	}
	return out, nil
}

func (s *Store) GetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrClosed
	}

	rec, ok := s.records[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	out := make(map[string]string, len(rec.fields))
	for k, v := range rec.fields {
		out[k] = v
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, kv.ErrClosed
	}

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), rec.list...), nil
}

func (s *Store) Merge(ctx context.Context, key string, m kv.Merge) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if key == "" {
		return false, kv.ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, kv.ErrClosed
	}

	rec, ok := s.records[key]
	if !ok {
		rec = &record{fields: make(map[string]string)}
		s.records[key] = rec
	}
	for field, value := range m.SetIfAbsent {
		if _, exists := rec.fields[field]; !exists {
			rec.fields[field] = value
		}
	}
	for field, value := range m.Set {
		rec.fields[field] = value
	}
	rec.list = append(rec.list, m.Append...)
	return !ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrClosed
	}
	delete(s.records, key)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
