package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/provider"
)

// MemoryCostStore is a process-local implementation of provider.CostStore.
// Tenants with no configured budget fall through to CostService's no-budget
// default-allow path; cost records are kept only for the lifetime of the
// process.
type MemoryCostStore struct {
	mu      sync.Mutex
	budgets map[uuid.UUID]provider.TenantBudget
	records []provider.CostRecord
}

func NewMemoryCostStore() *MemoryCostStore {
	return &MemoryCostStore{budgets: make(map[uuid.UUID]provider.TenantBudget)}
}

func (s *MemoryCostStore) GetBudget(ctx context.Context, tenantID uuid.UUID) (*provider.TenantBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[tenantID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *MemoryCostStore) SaveBudget(ctx context.Context, b *provider.TenantBudget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.TenantID] = *b
	return nil
}

func (s *MemoryCostStore) RecordCost(ctx context.Context, rec provider.CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}
