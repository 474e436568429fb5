// Package provider implements the data provider routing layer: registry,
// circuit breaker, rate limiter, cache, cost service, and request router
// that together present the rest of the system with a single operation —
// execute a check and return a normalized result (spec §4.4).
package provider

import (
	"context"
	"time"
)

// Category is the provider's pricing/quality tier (spec §4.4).
type Category string

const (
	CategoryCore    Category = "CORE"
	CategoryPremium Category = "PREMIUM"
)

// CostTier orders providers within a capability for selection (ascending —
// cheapest first).
type CostTier int

// Capability declares that a provider can service a (check_type, locale)
// pair at a given cost tier, versioned with semver so registry updates can
// be rolled out without breaking existing routing decisions.
type Capability struct {
	CheckType string
	Locales   []string
	CostTier  CostTier
	Version   string // semver, e.g. "1.2.0"
}

// HealthStatus is the provider's self-reported health.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "HEALTHY"
	HealthDegraded  HealthStatus = "DEGRADED"
	HealthUnhealthy HealthStatus = "UNHEALTHY"
)

// CheckRequest is the normalized input to a provider check.
type CheckRequest struct {
	SubjectName string
	SubjectDOB  time.Time
	SubjectSSN  string
	Locale      string
	CheckType   string
	Params      map[string]string
}

// CheckResponse is the normalized output of a provider check.
type CheckResponse struct {
	NormalizedData map[string]any
	RawResponse    string
	Cost           float64
}

// Provider is the seam every connector implements. ExecuteCheck must honor
// ctx cancellation; HealthCheck is advisory and never blocks routing for
// more than a few milliseconds in practice.
type Provider interface {
	ID() string
	Category() Category
	Capabilities() []Capability
	ExecuteCheck(ctx context.Context, req CheckRequest) (*CheckResponse, error)
	HealthCheck(ctx context.Context) HealthStatus
}
