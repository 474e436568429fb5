package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TenantBudget mirrors the teacher's fail-closed budget enforcer's shape,
// adapted to per-tenant provider spend instead of compute-gas limits.
type TenantBudget struct {
	TenantID         uuid.UUID
	DailyLimit       *float64
	MonthlyLimit     *float64
	WarningThreshold float64
	HardLimit        bool
	DailyUsed        float64
	MonthlyUsed      float64
	LastUpdated      time.Time
}

// BudgetStatus is the outcome of a CheckBudget call.
type BudgetStatus string

const (
	BudgetOK       BudgetStatus = "OK"
	BudgetWarning  BudgetStatus = "WARNING"
	BudgetExceeded BudgetStatus = "EXCEEDED"
)

// BudgetDecision is returned by CheckBudget.
type BudgetDecision struct {
	Status  BudgetStatus
	Allowed bool
	Reason  string
}

// CostStore persists per-tenant budgets and cost records. The only
// implementation in this module is pkg/store's in-memory MemoryCostStore,
// which the server and the tests both use; there is no Postgres-backed one.
type CostStore interface {
	GetBudget(ctx context.Context, tenantID uuid.UUID) (*TenantBudget, error)
	SaveBudget(ctx context.Context, b *TenantBudget) error
	RecordCost(ctx context.Context, rec CostRecord) error
}

// CostRecord is one cost/savings event (spec §4.4: record_cost,
// record_cache_savings).
type CostRecord struct {
	QueryID     uuid.UUID
	ProviderID  string
	CheckType   string
	Cost        float64
	Savings     float64
	TenantID    uuid.UUID
	ScreeningID *uuid.UUID
	RecordedAt  time.Time
}

// CostService enforces fail-closed per-tenant budgets (spec §4.4) and
// records cost/savings for aggregation.
type CostService struct {
	mu     sync.Mutex
	store  CostStore
	locks  map[uuid.UUID]*sync.Mutex
}

func NewCostService(store CostStore) *CostService {
	return &CostService{store: store, locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (s *CostService) tenantLock(tenantID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tenantID] = l
	}
	return l
}

// CheckBudget returns whether a query estimated to cost est may proceed.
// On any storage error the decision fails closed: denied (spec §4.4:
// "before calling any provider").
func (s *CostService) CheckBudget(ctx context.Context, tenantID uuid.UUID, est float64) (*BudgetDecision, error) {
	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	b, err := s.store.GetBudget(ctx, tenantID)
	if err != nil {
		return &BudgetDecision{Status: BudgetExceeded, Allowed: false, Reason: "budget lookup failed"}, err
	}
	if b == nil {
		b = &TenantBudget{TenantID: tenantID, WarningThreshold: 0.8, HardLimit: true, LastUpdated: time.Now().UTC()}
	}

	now := time.Now().UTC()
	if now.YearDay() != b.LastUpdated.YearDay() || now.Year() != b.LastUpdated.Year() {
		b.DailyUsed = 0
	}
	if now.Month() != b.LastUpdated.Month() || now.Year() != b.LastUpdated.Year() {
		b.MonthlyUsed = 0
	}

	newDaily := b.DailyUsed + est
	newMonthly := b.MonthlyUsed + est

	if b.DailyLimit != nil && newDaily > *b.DailyLimit && b.HardLimit {
		return &BudgetDecision{Status: BudgetExceeded, Allowed: false, Reason: fmt.Sprintf("daily limit exceeded: %.2f > %.2f", newDaily, *b.DailyLimit)}, nil
	}
	if b.MonthlyLimit != nil && newMonthly > *b.MonthlyLimit && b.HardLimit {
		return &BudgetDecision{Status: BudgetExceeded, Allowed: false, Reason: fmt.Sprintf("monthly limit exceeded: %.2f > %.2f", newMonthly, *b.MonthlyLimit)}, nil
	}

	status := BudgetOK
	if b.DailyLimit != nil && newDaily >= *b.DailyLimit*b.WarningThreshold {
		status = BudgetWarning
	}
	if b.MonthlyLimit != nil && newMonthly >= *b.MonthlyLimit*b.WarningThreshold {
		status = BudgetWarning
	}

	b.DailyUsed, b.MonthlyUsed, b.LastUpdated = newDaily, newMonthly, now
	if err := s.store.SaveBudget(ctx, b); err != nil {
		return &BudgetDecision{Status: BudgetExceeded, Allowed: false, Reason: "budget persist failed"}, err
	}

	return &BudgetDecision{Status: status, Allowed: true}, nil
}

func (s *CostService) RecordCost(ctx context.Context, rec CostRecord) error {
	rec.RecordedAt = time.Now().UTC()
	return s.store.RecordCost(ctx, rec)
}

func (s *CostService) RecordCacheSavings(ctx context.Context, queryID uuid.UUID, providerID, checkType string, tenantID uuid.UUID, saved float64) error {
	return s.RecordCost(ctx, CostRecord{QueryID: queryID, ProviderID: providerID, CheckType: checkType, Savings: saved, TenantID: tenantID})
}
