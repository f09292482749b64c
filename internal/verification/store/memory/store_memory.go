// Package memory is a bounded in-process verification cache. The least recently
// used GTIN is evicted once Size records are held.
package memory

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"winefeed/internal/verification/models"
	"winefeed/pkg/platform/sentinel"
)

const DefaultSize = 10000

type Store struct {
	// mu serialises read-modify-write on hit counts; the LRU itself is thread-safe.
	mu    sync.Mutex
	cache *lru.Cache[string, models.CacheRecord]
}

// New creates a store holding at most size records. size <= 0 uses DefaultSize.
func New(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, models.CacheRecord](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

func (s *Store) Get(_ context.Context, gtin string) (*models.CacheRecord, error) {
	record, ok := s.cache.Get(gtin)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

// Upsert replaces the record, keeping the accumulated hit count.
func (s *Store) Upsert(_ context.Context, record models.CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cache.Peek(record.GTIN); ok {
		record.HitCount = existing.HitCount
	}
	s.cache.Add(record.GTIN, record)
	return nil
}

func (s *Store) IncrementHitCount(_ context.Context, gtin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.cache.Peek(gtin)
	if !ok {
		return nil
	}
	record.HitCount++
	s.cache.Add(gtin, record)
	return nil
}

func (s *Store) Len() int {
	return s.cache.Len()
}
