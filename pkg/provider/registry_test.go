package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veriscope/screening/pkg/provider"
)

type fakeProvider struct {
	id           string
	category     provider.Category
	capabilities []provider.Capability
	health       provider.HealthStatus
}

func (f fakeProvider) ID() string                          { return f.id }
func (f fakeProvider) Category() provider.Category          { return f.category }
func (f fakeProvider) Capabilities() []provider.Capability  { return f.capabilities }
func (f fakeProvider) ExecuteCheck(ctx context.Context, req provider.CheckRequest) (*provider.CheckResponse, error) {
	return &provider.CheckResponse{}, nil
}
func (f fakeProvider) HealthCheck(ctx context.Context) provider.HealthStatus {
	if f.health == "" {
		return provider.HealthHealthy
	}
	return f.health
}

var _ provider.Provider = fakeProvider{}

func TestRegistry_SelectOrdersByCostTierThenReliability(t *testing.T) {
	reg := provider.NewRegistry(nil)
	cheap := fakeProvider{id: "cheap", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
	}}
	expensive := fakeProvider{id: "expensive", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 2, Version: "1.0.0"},
	}}
	reg.Register(expensive)
	reg.Register(cheap)

	out := reg.Select(context.Background(), "criminal", "US", provider.TierStandard)

	assert.Len(t, out, 2)
	assert.Equal(t, "cheap", out[0].ID())
	assert.Equal(t, "expensive", out[1].ID())
}

func TestRegistry_StandardTierExcludesPremiumProviders(t *testing.T) {
	reg := provider.NewRegistry(nil)
	reg.Register(fakeProvider{id: "premium", category: provider.CategoryPremium, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"*"}, CostTier: 1, Version: "1.0.0"},
	}})

	out := reg.Select(context.Background(), "criminal", "US", provider.TierStandard)

	assert.Empty(t, out)
}

func TestRegistry_EnhancedTierSeesBothCategories(t *testing.T) {
	reg := provider.NewRegistry(nil)
	reg.Register(fakeProvider{id: "premium", category: provider.CategoryPremium, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"*"}, CostTier: 1, Version: "1.0.0"},
	}})

	out := reg.Select(context.Background(), "criminal", "US", provider.TierEnhanced)

	assert.Len(t, out, 1)
}

func TestRegistry_BestCapabilityPicksHighestSemverAndIgnoresUnparseable(t *testing.T) {
	reg := provider.NewRegistry(nil)
	reg.Register(fakeProvider{id: "p", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "not-a-version"},
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 3, Version: "2.0.0"},
	}})
	reg.Register(fakeProvider{id: "q", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 2, Version: "1.0.0"},
	}})

	out := reg.Select(context.Background(), "criminal", "US", provider.TierStandard)

	// p is ranked by its 2.0.0 capability (cost tier 3), not its 1.0.0 one
	// (cost tier 1), so it sorts after q (cost tier 2).
	assert.Len(t, out, 2)
	assert.Equal(t, "q", out[0].ID())
	assert.Equal(t, "p", out[1].ID())
}

func TestRegistry_LocaleWildcardMatches(t *testing.T) {
	reg := provider.NewRegistry(nil)
	reg.Register(fakeProvider{id: "p", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"*"}, CostTier: 1, Version: "1.0.0"},
	}})

	out := reg.Select(context.Background(), "criminal", "GB", provider.TierStandard)

	assert.Len(t, out, 1)
}

func TestRegistry_OpenBreakerExcludesProvider(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour, HalfOpenMaxCalls: 1})
	reg := provider.NewRegistry(breakers)
	reg.Register(fakeProvider{id: "p", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
	}})

	breakers.Get("p").Failure()

	out := reg.Select(context.Background(), "criminal", "US", provider.TierStandard)

	assert.Empty(t, out)
}

func TestRegistry_UnhealthyProviderExcluded(t *testing.T) {
	reg := provider.NewRegistry(nil)
	reg.Register(fakeProvider{id: "p", category: provider.CategoryCore, health: provider.HealthUnhealthy, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
	}})

	out := reg.Select(context.Background(), "criminal", "US", provider.TierStandard)

	assert.Empty(t, out)
}

func TestRegistry_DegradedProviderStillSelected(t *testing.T) {
	reg := provider.NewRegistry(nil)
	reg.Register(fakeProvider{id: "p", category: provider.CategoryCore, health: provider.HealthDegraded, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
	}})

	out := reg.Select(context.Background(), "criminal", "US", provider.TierStandard)

	assert.Len(t, out, 1)
}

func TestRegistry_AllCircuitsOpenReportsTrueOnlyWhenEveryMatchIsOpen(t *testing.T) {
	breakers := provider.NewBreakerRegistry(provider.BreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour, HalfOpenMaxCalls: 1})
	reg := provider.NewRegistry(breakers)
	reg.Register(fakeProvider{id: "a", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
	}})
	reg.Register(fakeProvider{id: "b", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
	}})

	assert.False(t, reg.AllCircuitsOpen("criminal", "US", provider.TierStandard))

	breakers.Get("a").Failure()
	assert.False(t, reg.AllCircuitsOpen("criminal", "US", provider.TierStandard))

	breakers.Get("b").Failure()
	assert.True(t, reg.AllCircuitsOpen("criminal", "US", provider.TierStandard))
}

func TestRegistry_AllCircuitsOpenFalseWhenNothingMatches(t *testing.T) {
	reg := provider.NewRegistry(provider.NewBreakerRegistry(provider.DefaultBreakerConfig()))

	assert.False(t, reg.AllCircuitsOpen("criminal", "US", provider.TierStandard))
}

func TestRegistry_ReportReliabilityBreaksTiesOnEqualCostTier(t *testing.T) {
	reg := provider.NewRegistry(nil)
	reg.Register(fakeProvider{id: "a", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
	}})
	reg.Register(fakeProvider{id: "b", category: provider.CategoryCore, capabilities: []provider.Capability{
		{CheckType: "criminal", Locales: []string{"US"}, CostTier: 1, Version: "1.0.0"},
	}})

	reg.ReportReliability("a", 0.2)
	reg.ReportReliability("b", 0.9)

	out := reg.Select(context.Background(), "criminal", "US", provider.TierStandard)

	assert.Equal(t, "b", out[0].ID())
	assert.Equal(t, "a", out[1].ID())
}
