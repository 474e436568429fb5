package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriscope/screening/internal/apierr"
	"github.com/veriscope/screening/internal/telemetry"
	"github.com/veriscope/screening/pkg/domain"
)

// RouterConfig holds the retry/timeout knobs from spec §4.4/§6.
type RouterConfig struct {
	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	RetryJitter    float64
	Timeout        time.Duration
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MaxRetries:     3,
		BaseRetryDelay: 500 * time.Millisecond,
		MaxRetryDelay:  10 * time.Second,
		RetryJitter:    0.1,
		Timeout:        30 * time.Second,
	}
}

// RouteRequest is the full input to Router.Route (spec §4.4).
type RouteRequest struct {
	CheckType   string
	Subject     domain.SubjectIdentifiers
	Locale      string
	Tier        ServiceTier
	EntityID    uuid.UUID
	TenantID    uuid.UUID
	ScreeningID *uuid.UUID
	Params      map[string]string
}

// ProviderError records one failed attempt against one provider.
type ProviderError struct {
	ProviderID string
	Reason     string
}

// ReasonAllCircuitsOpen is the RoutedResult.FailureReason reported when
// every provider matching a request has its circuit breaker open, so the
// router never invokes a provider at all (spec §4.4 boundary behavior).
const ReasonAllCircuitsOpen = "ALL_CIRCUITS_OPEN"

// RoutedResult is the outcome of routing one request (spec §4.4).
type RoutedResult struct {
	Success        bool
	Response       *domain.CachedResponse
	CacheHit       bool
	ProviderID     string
	FailureReason  string
	ProviderErrors []ProviderError
}

// Router composes the Registry, BreakerRegistry, Limiter, Cache, and
// CostService into the single "execute a check" operation the rest of the
// system calls (spec §4.4).
type Router struct {
	cfg      RouterConfig
	registry *Registry
	breakers *BreakerRegistry
	limiter  Limiter
	cache    *Cache
	cost     *CostService
}

func NewRouter(cfg RouterConfig, registry *Registry, breakers *BreakerRegistry, limiter Limiter, cache *Cache, cost *CostService) *Router {
	return &Router{cfg: cfg, registry: registry, breakers: breakers, limiter: limiter, cache: cache, cost: cost}
}

// Route implements the pseudocode in spec §4.4: budget check, provider
// selection, then per candidate a cache lookup and a retry loop with
// breaker/rate-limit gating and exponential backoff, falling through to the
// next provider on exhaustion.
func (r *Router) Route(ctx context.Context, req RouteRequest) (*RoutedResult, error) {
	log := telemetry.FromContext(ctx)

	est := 0.0 // estimated cost is provider-dependent; real cost is recorded post-fetch.
	if r.cost != nil {
		decision, err := r.cost.CheckBudget(ctx, req.TenantID, est)
		if err != nil || !decision.Allowed {
			reason := "budget check failed"
			if decision != nil {
				reason = decision.Reason
			}
			return nil, apierr.New(apierr.KindBudgetExceeded, reason)
		}
	}

	candidates := r.registry.Select(ctx, req.CheckType, req.Locale, req.Tier)
	if len(candidates) == 0 {
		if r.registry.AllCircuitsOpen(req.CheckType, req.Locale, req.Tier) {
			return &RoutedResult{Success: false, FailureReason: ReasonAllCircuitsOpen}, nil
		}
		return nil, apierr.New(apierr.KindNoProviderAvailable, "no provider available for "+req.CheckType)
	}

	var providerErrors []ProviderError
	tenantID := req.TenantID

	for idx, p := range candidates {
		isLast := idx == len(candidates)-1

		if r.cache != nil {
			if hit, herr := r.cache.peek(ctx, req.EntityID, p.ID(), req.CheckType, tenantID); herr == nil && hit != nil {
				if r.cost != nil {
					_ = r.cost.RecordCacheSavings(ctx, uuid.Nil, hit.ProviderID, req.CheckType, tenantID, hit.CostIncurred)
				}
				return &RoutedResult{Success: true, Response: hit, CacheHit: true, ProviderID: hit.ProviderID}, nil
			}
		}

		breaker := r.breakers.Get(p.ID())

		if !breaker.Allow() {
			providerErrors = append(providerErrors, ProviderError{ProviderID: p.ID(), Reason: "circuit open"})
			continue
		}

		// release the half-open slot Allow reserved for a call we never made,
		// recording neither a success nor a failure
		releaseUnusedSlot := func() {
			breaker.mu.Lock()
			if breaker.state == StateHalfOpen && breaker.halfOpenInFlight > 0 {
				breaker.halfOpenInFlight--
			}
			breaker.mu.Unlock()
		}

		acquireResult, err := r.acquireRate(ctx, p.ID(), isLast)
		if err != nil {
			releaseUnusedSlot()
			return nil, err
		}
		if !acquireResult.Allowed {
			releaseUnusedSlot()
			providerErrors = append(providerErrors, ProviderError{ProviderID: p.ID(), Reason: "rate limited"})
			continue
		}

		result, err := r.executeWithRetry(ctx, p, req, breaker)
		if err == nil {
			r.registry.ReportReliability(p.ID(), breaker.Reliability())
			if r.cost != nil {
				_ = r.cost.RecordCost(ctx, CostRecord{ProviderID: p.ID(), CheckType: req.CheckType, Cost: result.Cost, TenantID: tenantID})
			}
			response := &domain.CachedResponse{
				EntityID:       req.EntityID,
				ProviderID:     p.ID(),
				CheckType:      req.CheckType,
				TenantID:       dataOriginTenant(tenantID),
				DataOrigin:     domain.DataOriginPaidExternal,
				NormalizedData: result.NormalizedData,
				RawResponse:    result.RawResponse,
				CostIncurred:   result.Cost,
			}
			if r.cache != nil {
				if serr := r.cache.Store(ctx, response); serr != nil {
					log.Warn("cache store failed", "provider", p.ID(), "error", serr)
				}
			}
			return &RoutedResult{
				Success:    true,
				ProviderID: p.ID(),
				Response:   response,
			}, nil
		}

		log.Warn("provider check failed", "provider", p.ID(), "error", err)
		providerErrors = append(providerErrors, ProviderError{ProviderID: p.ID(), Reason: err.Error()})
	}

	return &RoutedResult{Success: false, FailureReason: "all providers exhausted", ProviderErrors: providerErrors}, nil
}

func (r *Router) acquireRate(ctx context.Context, providerID string, isLast bool) (AcquireResult, error) {
	res, err := r.limiter.TryAcquire(ctx, providerID, 1)
	if err != nil {
		return AcquireResult{}, fmt.Errorf("provider: rate limiter: %w", err)
	}
	if res.Allowed || !isLast {
		return res, nil
	}

	// Last candidate: wait out the rate limit rather than failing outright.
	timer := time.NewTimer(res.RetryAfter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return AcquireResult{}, ctx.Err()
	case <-timer.C:
		return r.limiter.TryAcquire(ctx, providerID, 1)
	}
}

var errNonRetriable = errors.New("provider: non-retriable failure")

// executeWithRetry runs the attempt loop from spec §4.4: up to MaxRetries
// attempts with exponential backoff and jitter, each bounded by Timeout.
func (r *Router) executeWithRetry(ctx context.Context, p Provider, req RouteRequest, breaker *CircuitBreaker) (*CheckResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		resp, err := p.ExecuteCheck(callCtx, CheckRequest{
			SubjectName: req.Subject.FullName,
			SubjectDOB:  req.Subject.DOB,
			SubjectSSN:  req.Subject.SSN,
			Locale:      req.Locale,
			CheckType:   req.CheckType,
			Params:      req.Params,
		})
		cancel()

		if err == nil {
			breaker.Success()
			return resp, nil
		}

		lastErr = err
		if errors.Is(err, errNonRetriable) {
			breaker.Failure()
			return nil, err
		}

		breaker.Failure()
		if attempt == r.cfg.MaxRetries {
			break
		}

		delay := backoffDelay(r.cfg.BaseRetryDelay, r.cfg.MaxRetryDelay, attempt, r.cfg.RetryJitter)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

func dataOriginTenant(tenantID uuid.UUID) *uuid.UUID {
	if tenantID == uuid.Nil {
		return nil
	}
	return &tenantID
}

func backoffDelay(base, cap time.Duration, attempt int, jitterFrac float64) time.Duration {
	d := base * time.Duration(1<<(attempt-1))
	if d > cap {
		d = cap
	}
	jitter := time.Duration(float64(d) * jitterFrac * (rand.Float64()*2 - 1))
	d += jitter
	if d < 0 {
		d = 0
	}
	return d
}

// Batch executes independent RouteRequests concurrently with a bounded
// fan-out, returning results in input order (spec §4.4).
func (r *Router) Batch(ctx context.Context, reqs []RouteRequest, maxConcurrent int) []*RoutedResult {
	results := make([]*RoutedResult, len(reqs))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, req RouteRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			res, err := r.Route(ctx, req)
			if err != nil {
				results[i] = &RoutedResult{Success: false, FailureReason: err.Error()}
				return
			}
			results[i] = res
		}(i, req)
	}

	wg.Wait()
	return results
}
