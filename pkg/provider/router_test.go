package provider_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/internal/apierr"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/provider"
)

// fakeRouterProvider is a Provider whose ExecuteCheck behavior is scripted
// per call, so router tests can exercise retry/fallback without a real
// network call.
type fakeRouterProvider struct {
	id       string
	calls    int32
	behavior func(attempt int32) (*provider.CheckResponse, error)
}

func (f *fakeRouterProvider) ID() string           { return f.id }
func (f *fakeRouterProvider) Category() provider.Category { return provider.CategoryCore }
func (f *fakeRouterProvider) Capabilities() []provider.Capability {
	return []provider.Capability{{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"}}
}
func (f *fakeRouterProvider) HealthCheck(ctx context.Context) provider.HealthStatus {
	return provider.HealthHealthy
}
func (f *fakeRouterProvider) ExecuteCheck(ctx context.Context, req provider.CheckRequest) (*provider.CheckResponse, error) {
	n := atomic.AddInt32(&f.calls, 1)
	return f.behavior(n)
}
func (f *fakeRouterProvider) callCount() int32 { return atomic.LoadInt32(&f.calls) }

var _ provider.Provider = (*fakeRouterProvider)(nil)

func fastRouterConfig() provider.RouterConfig {
	return provider.RouterConfig{
		MaxRetries:     1,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
		RetryJitter:    0,
		Timeout:        time.Second,
	}
}

func alwaysSucceeds(n int32) (*provider.CheckResponse, error) {
	return &provider.CheckResponse{NormalizedData: map[string]any{"ok": true}}, nil
}

func alwaysFails(n int32) (*provider.CheckResponse, error) {
	return nil, errors.New("provider: upstream failure")
}

func TestRouter_AllCircuitsOpenShortCircuitsWithoutInvokingAnyProvider(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour, HalfOpenMaxCalls: 1})
	registry := provider.NewRegistry(breakers)
	p := &fakeRouterProvider{id: "p", behavior: alwaysSucceeds}
	registry.Register(p)
	breakers.Get("p").Failure()

	router := provider.NewRouter(fastRouterConfig(), registry, breakers, provider.NewLocalLimiter(100, 100), nil, nil)

	result, err := router.Route(context.Background(), provider.RouteRequest{CheckType: "criminal", Locale: "US", Tier: provider.TierStandard})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, provider.ReasonAllCircuitsOpen, result.FailureReason)
	assert.Equal(t, int32(0), p.callCount())
}

func TestRouter_NoMatchingProviderReturnsNoProviderAvailable(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.DefaultBreakerConfig())
	registry := provider.NewRegistry(breakers)
	router := provider.NewRouter(fastRouterConfig(), registry, breakers, provider.NewLocalLimiter(100, 100), nil, nil)

	_, err := router.Route(context.Background(), provider.RouteRequest{CheckType: "criminal", Locale: "US", Tier: provider.TierStandard})

	require.Error(t, err)
	kind, ok := apierr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindNoProviderAvailable, kind)
}

func TestRouter_FallsBackToNextProviderWhenFirstFails(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.DefaultBreakerConfig())
	registry := provider.NewRegistry(breakers)
	failing := &fakeRouterProvider{id: "failing", behavior: alwaysFails}
	succeeding := &fakeRouterProvider{id: "succeeding", behavior: alwaysSucceeds}
	registry.Register(failing)
	registry.Register(succeeding)
	// Same cost tier, so reliability decides the order: "failing" goes first.
	registry.ReportReliability("failing", 0.9)
	registry.ReportReliability("succeeding", 0.5)

	router := provider.NewRouter(fastRouterConfig(), registry, breakers, provider.NewLocalLimiter(100, 100), nil, nil)

	result, err := router.Route(context.Background(), provider.RouteRequest{CheckType: "criminal", Locale: "US", Tier: provider.TierStandard})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "succeeding", result.ProviderID)
	require.Len(t, result.ProviderErrors, 1)
	assert.Equal(t, "failing", result.ProviderErrors[0].ProviderID)
}

func TestRouter_AllProvidersExhaustedReportsGenericReason(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.DefaultBreakerConfig())
	registry := provider.NewRegistry(breakers)
	registry.Register(&fakeRouterProvider{id: "a", behavior: alwaysFails})
	registry.Register(&fakeRouterProvider{id: "b", behavior: alwaysFails})

	router := provider.NewRouter(fastRouterConfig(), registry, breakers, provider.NewLocalLimiter(100, 100), nil, nil)

	result, err := router.Route(context.Background(), provider.RouteRequest{CheckType: "criminal", Locale: "US", Tier: provider.TierStandard})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "all providers exhausted", result.FailureReason)
	assert.Len(t, result.ProviderErrors, 2)
}

func TestRouter_RetriesBeforeSucceeding(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.DefaultBreakerConfig())
	registry := provider.NewRegistry(breakers)
	p := &fakeRouterProvider{id: "p", behavior: func(n int32) (*provider.CheckResponse, error) {
		if n < 3 {
			return nil, errors.New("provider: transient failure")
		}
		return &provider.CheckResponse{NormalizedData: map[string]any{"ok": true}}, nil
	}}
	registry.Register(p)

	cfg := fastRouterConfig()
	cfg.MaxRetries = 3
	router := provider.NewRouter(cfg, registry, breakers, provider.NewLocalLimiter(100, 100), nil, nil)

	result, err := router.Route(context.Background(), provider.RouteRequest{CheckType: "criminal", Locale: "US", Tier: provider.TierStandard})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(3), p.callCount())
}

func TestRouter_CachePeekServesFreshHitWithoutInvokingProvider(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.DefaultBreakerConfig())
	registry := provider.NewRegistry(breakers)
	p := &fakeRouterProvider{id: "p", behavior: alwaysSucceeds}
	registry.Register(p)

	cacheStore := newMemCacheStore()
	cache := provider.NewCache(cacheStore, nil, provider.DefaultTTLTable())
	entityID := uuid.New()
	require.NoError(t, cache.Store(context.Background(), &domain.CachedResponse{
		EntityID:   entityID,
		ProviderID: "p",
		CheckType:  "criminal",
		DataOrigin: domain.DataOriginPaidExternal,
	}))

	router := provider.NewRouter(fastRouterConfig(), registry, breakers, provider.NewLocalLimiter(100, 100), cache, nil)

	result, err := router.Route(context.Background(), provider.RouteRequest{CheckType: "criminal", Locale: "US", Tier: provider.TierStandard, EntityID: entityID})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.CacheHit)
	assert.Equal(t, "p", result.ProviderID)
	assert.Equal(t, int32(0), p.callCount())
}

func TestRouter_BudgetExceededFailsClosedBeforeSelectingAProvider(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.DefaultBreakerConfig())
	registry := provider.NewRegistry(breakers)
	p := &fakeRouterProvider{id: "p", behavior: alwaysSucceeds}
	registry.Register(p)

	costStore := newMemCostStore()
	tenantID := uuid.New()
	// Route's estimated cost is always 0 (real cost is only known post-fetch),
	// so a negative limit is needed to force CheckBudget to deny.
	limit := -1.0
	require.NoError(t, costStore.SaveBudget(context.Background(), &provider.TenantBudget{TenantID: tenantID, DailyLimit: &limit, HardLimit: true, LastUpdated: time.Now().UTC()}))
	cost := provider.NewCostService(costStore)

	router := provider.NewRouter(fastRouterConfig(), registry, breakers, provider.NewLocalLimiter(100, 100), nil, cost)

	_, err := router.Route(context.Background(), provider.RouteRequest{CheckType: "criminal", Locale: "US", Tier: provider.TierStandard, TenantID: tenantID})

	require.Error(t, err)
	kind, ok := apierr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindBudgetExceeded, kind)
	assert.Equal(t, int32(0), p.callCount())
}
