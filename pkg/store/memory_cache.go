package store

import (
	"context"
	"sync"

	"github.com/veriscope/screening/pkg/domain"
)

// MemoryCacheStore is a process-local implementation of provider.Store,
// suitable for single-instance deployments and tests; a Redis- or
// Postgres-backed cache store is a drop-in replacement behind the same
// interface.
type MemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]domain.CachedResponse
}

func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{entries: make(map[string]domain.CachedResponse)}
}

func (s *MemoryCacheStore) GetCached(ctx context.Context, key string) (*domain.CachedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &resp, nil
}

func (s *MemoryCacheStore) PutCached(ctx context.Context, key string, resp domain.CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = resp
	return nil
}
