package sar

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veriscope/screening/internal/apierr"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/provider"
)

// RouteFunc abstracts the provider Router so Executor doesn't depend on its
// concrete construction (tests substitute a fake).
type RouteFunc func(ctx context.Context, req provider.RouteRequest) (*provider.RoutedResult, error)

// ExecutionSummary aggregates the Executor's per-iteration outcome (spec
// §4.5).
type ExecutionSummary struct {
	SuccessRate float64
	CacheHits   int
	Providers   []string
	StatusCounts map[domain.QueryStatus]int
}

// Executor translates SearchQueries into routed requests and runs them
// concurrently, capped at maxConcurrentQueries (spec §4.5, §5).
type Executor struct {
	route               RouteFunc
	maxConcurrentQueries int
}

func NewExecutor(route RouteFunc, maxConcurrentQueries int) *Executor {
	if maxConcurrentQueries <= 0 {
		maxConcurrentQueries = 10
	}
	return &Executor{route: route, maxConcurrentQueries: maxConcurrentQueries}
}

// Execute runs every query for subject/tenant/entity context and returns
// per-query results in the same order, plus an ExecutionSummary.
func (e *Executor) Execute(ctx context.Context, queries []domain.SearchQuery, subject domain.SubjectIdentifiers, locale string, tier provider.ServiceTier, entityID, tenantID uuid.UUID, screeningID *uuid.UUID) ([]domain.QueryResult, ExecutionSummary) {
	results := make([]domain.QueryResult, len(queries))
	sem := make(chan struct{}, e.maxConcurrentQueries)
	var wg sync.WaitGroup

	for i, q := range queries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, q domain.SearchQuery) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.executeOne(ctx, q, subject, locale, tier, entityID, tenantID, screeningID)
		}(i, q)
	}
	wg.Wait()

	summary := summarize(results)
	seen := make(map[string]struct{})
	for _, q := range queries {
		if _, ok := seen[q.ProviderID]; ok {
			continue
		}
		seen[q.ProviderID] = struct{}{}
		summary.Providers = append(summary.Providers, q.ProviderID)
	}
	return results, summary
}

func (e *Executor) executeOne(ctx context.Context, q domain.SearchQuery, subject domain.SubjectIdentifiers, locale string, tier provider.ServiceTier, entityID, tenantID uuid.UUID, screeningID *uuid.UUID) domain.QueryResult {
	start := time.Now()

	routed, err := e.route(ctx, provider.RouteRequest{
		CheckType:   q.CheckType,
		Subject:     subject,
		Locale:      locale,
		Tier:        tier,
		EntityID:    entityID,
		TenantID:    tenantID,
		ScreeningID: screeningID,
		Params:      q.Params,
	})

	duration := time.Since(start)

	if err != nil {
		return domain.QueryResult{QueryID: q.ID, Status: statusFromError(err), Duration: duration, Error: err.Error()}
	}
	if !routed.Success {
		return domain.QueryResult{QueryID: q.ID, Status: domain.StatusFailed, Duration: duration, Error: routed.FailureReason}
	}

	return domain.QueryResult{
		QueryID:        q.ID,
		Status:         domain.StatusSuccess,
		NormalizedData: routed.Response.NormalizedData,
		Duration:       duration,
		CacheHit:       routed.CacheHit,
	}
}

func statusFromError(err error) domain.QueryStatus {
	kind, ok := apierr.KindOf(err)
	if !ok {
		return domain.StatusFailed
	}
	switch kind {
	case apierr.KindRateLimited:
		return domain.StatusRateLimited
	case apierr.KindNoProviderAvailable:
		return domain.StatusNoProvider
	case apierr.KindCancelled, apierr.KindProviderTimeout:
		return domain.StatusTimeout
	default:
		return domain.StatusFailed
	}
}

func summarize(results []domain.QueryResult) ExecutionSummary {
	summary := ExecutionSummary{StatusCounts: make(map[domain.QueryStatus]int)}
	if len(results) == 0 {
		return summary
	}

	success := 0
	for _, r := range results {
		summary.StatusCounts[r.Status]++
		if r.Status == domain.StatusSuccess {
			success++
		}
		if r.CacheHit {
			summary.CacheHits++
		}
	}

	summary.SuccessRate = float64(success) / float64(len(results))
	return summary
}
