package domain

import (
	"time"

	"github.com/google/uuid"
)

// DataOrigin distinguishes entity/cache data paid for externally (shared
// across tenants) from data a customer supplied directly (tenant-isolated).
type DataOrigin string

const (
	DataOriginCustomerProvided DataOrigin = "CUSTOMER_PROVIDED"
	DataOriginPaidExternal     DataOrigin = "PAID_EXTERNAL"
)

// Tenant is the top-level isolation boundary.
type Tenant struct {
	ID        uuid.UUID
	Slug      string // lowercase alphanum+hyphen, unique
	Name      string
	Active    bool
	CreatedAt time.Time
}

// EntityType distinguishes what an Entity models.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityAddress      EntityType = "ADDRESS"
)

// Entity is a canonical person/organization/address. Invariant (spec §3):
// customer-provided entities always carry a TenantID; paid-external
// entities have a nil TenantID and are shared across tenants.
type Entity struct {
	ID                    uuid.UUID
	Type                  EntityType
	TenantID              *uuid.UUID
	DataOrigin            DataOrigin
	CanonicalIdentifiers  map[string]string // identifier type -> encrypted value
	Superseded            bool
	SupersededBy          *uuid.UUID
	CreatedAt             time.Time
}

// IdentifierType enumerates the canonical identifier kinds.
type IdentifierType string

const (
	IdentifierSSN      IdentifierType = "SSN"
	IdentifierEIN      IdentifierType = "EIN"
	IdentifierPassport IdentifierType = "PASSPORT"
)

// Identifier is an append-only fact attached to an entity. Identifiers are
// never mutated or deleted; a superseding value is added and the older one
// flagged Superseded (spec §3).
type Identifier struct {
	EntityID    uuid.UUID
	Type        IdentifierType
	Value       string // encrypted at rest
	Confidence  float64
	Source      string
	Superseded  bool
	DiscoveredAt time.Time
}

// EntityRelation is a directed edge in the entity graph, walked both ways
// for neighbor discovery (spec §3, §9).
type EntityRelation struct {
	FromID      uuid.UUID
	ToID        uuid.UUID
	Type        string
	Confidence  float64
	Current     bool
	DiscoveredAt time.Time
}

// EntityProfile is a point-in-time versioned snapshot. Versions are
// monotone per entity; only the monitoring scheduler and the screening
// orchestrator create new versions.
type EntityProfile struct {
	EntityID     uuid.UUID
	Version      int
	Trigger      string
	FindingsBlob []byte
	RiskScore    float64
	CreatedAt    time.Time
}

// CachedResponse backs the two-scope provider response cache (spec §4.4).
// Invariant: DataOrigin == CUSTOMER_PROVIDED implies TenantID is non-nil and
// visibility is restricted to that tenant.
type CachedResponse struct {
	EntityID       uuid.UUID
	ProviderID     string
	CheckType      string
	TenantID       *uuid.UUID
	DataOrigin     DataOrigin
	NormalizedData map[string]any
	RawResponse    string // encrypted at rest
	CostIncurred   float64
	FetchedAt      time.Time
	FreshUntil     time.Time
	StaleUntil     time.Time
}

// Freshness classifies a CachedResponse relative to now (spec §3 invariant iii).
type Freshness int

const (
	FreshnessExpired Freshness = iota
	FreshnessStale
	FreshnessFresh
)

func (c *CachedResponse) FreshnessAt(now time.Time) Freshness {
	if now.Before(c.FreshUntil) {
		return FreshnessFresh
	}
	if now.Before(c.StaleUntil) {
		return FreshnessStale
	}
	return FreshnessExpired
}

// AuditSeverity mirrors the severity ladder used for audit events.
type AuditSeverity string

const (
	AuditInfo     AuditSeverity = "INFO"
	AuditWarning  AuditSeverity = "WARNING"
	AuditCritical AuditSeverity = "CRITICAL"
)

// AuditEvent is append-only; retention is policy-driven, never structural
// (spec §3, §9).
type AuditEvent struct {
	ID            uuid.UUID
	TenantID      *uuid.UUID
	ActorID       string
	CorrelationID uuid.UUID
	Type          string
	Severity      AuditSeverity
	ResourceType  string
	ResourceID    string
	Data          map[string]any
	CreatedAt     time.Time
}
