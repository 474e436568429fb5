package provider

import (
	"context"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// registeredProvider pairs a Provider with the breaker-observed reliability
// used as a selection tiebreaker.
type registeredProvider struct {
	provider    Provider
	reliability float64 // [0,1], higher is better; updated by the router
}

// Registry holds every known provider and resolves selection queries:
// filter by (check_type, locale), then tier, then health, then sort by cost
// tier ascending with reliability as tiebreaker (spec §4.4). It is a
// process-wide singleton guarded by a single RWMutex (spec §5).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registeredProvider
	breakers  *BreakerRegistry
}

func NewRegistry(breakers *BreakerRegistry) *Registry {
	return &Registry{
		providers: make(map[string]*registeredProvider),
		breakers:  breakers,
	}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = &registeredProvider{provider: p, reliability: 1.0}
}

// ReportReliability lets the router feed observed success/failure back into
// tiebreak ordering without the registry depending on the breaker's
// internals directly.
func (r *Registry) ReportReliability(providerID string, reliability float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rp, ok := r.providers[providerID]; ok {
		rp.reliability = reliability
	}
}

// ServiceTier gates CORE-vs-PREMIUM visibility: Standard sees CORE only,
// Enhanced sees both (spec §4.4).
type ServiceTier string

const (
	TierStandard ServiceTier = "STANDARD"
	TierEnhanced ServiceTier = "ENHANCED"
)

// eligible filters the registry by (check_type, locale) capability and tier
// only, ignoring circuit and health state. It is the set Select further
// narrows, and the set AllCircuitsOpen inspects to tell "nothing matches"
// apart from "everything matches but every circuit is open".
func (r *Registry) eligible(checkType, locale string, tier ServiceTier) []*registeredProvider {
	var out []*registeredProvider
	for _, rp := range r.providers {
		if tier == TierStandard && rp.provider.Category() != CategoryCore {
			continue
		}
		if _, ok := bestCapability(rp.provider, checkType, locale); !ok {
			continue
		}
		out = append(out, rp)
	}
	return out
}

// AllCircuitsOpen reports whether at least one provider matches
// (check_type, locale, tier) and every match's circuit breaker is open, the
// boundary case spec §4.4 routes to a distinct failure reason rather than
// the generic exhausted-providers message.
func (r *Registry) AllCircuitsOpen(checkType, locale string, tier ServiceTier) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.breakers == nil {
		return false
	}
	matched := r.eligible(checkType, locale, tier)
	if len(matched) == 0 {
		return false
	}
	for _, rp := range matched {
		if r.breakers.Get(rp.provider.ID()).State() != StateOpen {
			return false
		}
	}
	return true
}

// Select returns the ordered candidate list for a check: filter by
// (check_type, locale), then tier, then health (skip circuit=OPEN and
// status=UNHEALTHY), then sort by cost tier ascending with reliability as
// tiebreaker (spec §4.4).
func (r *Registry) Select(ctx context.Context, checkType, locale string, tier ServiceTier) []Provider {
	r.mu.RLock()
	matched := r.eligible(checkType, locale, tier)
	r.mu.RUnlock()

	type candidate struct {
		p           Provider
		costTier    CostTier
		reliability float64
	}

	var candidates []candidate
	for _, rp := range matched {
		if r.breakers != nil && r.breakers.Get(rp.provider.ID()).State() == StateOpen {
			continue
		}
		if rp.provider.HealthCheck(ctx) == HealthUnhealthy {
			continue
		}
		cap, _ := bestCapability(rp.provider, checkType, locale)
		candidates = append(candidates, candidate{p: rp.provider, costTier: cap.CostTier, reliability: rp.reliability})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].costTier != candidates[j].costTier {
			return candidates[i].costTier < candidates[j].costTier
		}
		return candidates[i].reliability > candidates[j].reliability
	})

	out := make([]Provider, len(candidates))
	for i, c := range candidates {
		out[i] = c.p
	}
	return out
}

// bestCapability returns the highest-semver capability a provider declares
// for (checkType, locale), ignoring capabilities with unparseable versions
// rather than failing selection outright.
func bestCapability(p Provider, checkType, locale string) (Capability, bool) {
	var best Capability
	var bestVer *semver.Version
	found := false

	for _, c := range p.Capabilities() {
		if c.CheckType != checkType {
			continue
		}
		if !localeMatches(c.Locales, locale) {
			continue
		}
		v, err := semver.NewVersion(c.Version)
		if err != nil {
			continue
		}
		if !found || v.GreaterThan(bestVer) {
			best, bestVer, found = c, v, true
		}
	}
	return best, found
}

func localeMatches(locales []string, locale string) bool {
	for _, l := range locales {
		if l == locale || l == "*" {
			return true
		}
	}
	return false
}
