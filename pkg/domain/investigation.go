package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceTier gates which providers and information types are reachable.
type ServiceTier string

const (
	TierStandard ServiceTier = "STANDARD"
	TierEnhanced ServiceTier = "ENHANCED"
)

// SearchDegree bounds how far into the subject's network the investigation
// reaches.
type SearchDegree string

const (
	DegreeD1 SearchDegree = "D1"
	DegreeD2 SearchDegree = "D2"
	DegreeD3 SearchDegree = "D3"
)

// InformationType is one of the fourteen evidence families the SAR loop
// investigates independently (spec §4.5, GLOSSARY).
type InformationType string

const (
	InfoIdentity         InformationType = "IDENTITY"
	InfoEmployment       InformationType = "EMPLOYMENT"
	InfoEducation        InformationType = "EDUCATION"
	InfoCriminal         InformationType = "CRIMINAL"
	InfoCivil            InformationType = "CIVIL"
	InfoFinancial        InformationType = "FINANCIAL"
	InfoLicenses         InformationType = "LICENSES"
	InfoRegulatory       InformationType = "REGULATORY"
	InfoSanctions        InformationType = "SANCTIONS"
	InfoAdverseMedia     InformationType = "ADVERSE_MEDIA"
	InfoDigitalFootprint InformationType = "DIGITAL_FOOTPRINT"
	InfoNetworkD2        InformationType = "NETWORK_D2"
	InfoNetworkD3        InformationType = "NETWORK_D3"
	InfoReconciliation   InformationType = "RECONCILIATION"
)

// FoundationTypes carry 1.5x weight into the aggregate confidence and use
// the +0.05 threshold (spec §4.5).
var FoundationTypes = map[InformationType]struct{}{
	InfoIdentity:   {},
	InfoEmployment: {},
	InfoEducation:  {},
}

func (t InformationType) IsFoundation() bool {
	_, ok := FoundationTypes[t]
	return ok
}

// ExpectedFactCount is the per-type denominator for the Completeness factor
// (spec §4.5 table).
func (t InformationType) ExpectedFactCount() int {
	switch t {
	case InfoIdentity:
		return 5
	case InfoEmployment:
		return 3
	case InfoEducation:
		return 3
	case InfoFinancial:
		return 2
	case InfoDigitalFootprint:
		return 2
	case InfoNetworkD2:
		return 2
	case InfoNetworkD3:
		return 3
	case InfoLicenses:
		return 2
	case InfoReconciliation:
		return 5
	default:
		return 1
	}
}

// RoleCategory drives compliance rule lookup and role-relevance weighting.
type RoleCategory string

const (
	RoleStandard       RoleCategory = "STANDARD"
	RoleGovernment     RoleCategory = "GOVERNMENT"
	RoleSecurity       RoleCategory = "SECURITY"
	RoleExecutive      RoleCategory = "EXECUTIVE"
	RoleFinancial      RoleCategory = "FINANCIAL"
	RoleHealthcare     RoleCategory = "HEALTHCARE"
	RoleEducation      RoleCategory = "EDUCATION"
	RoleTransportation RoleCategory = "TRANSPORTATION"
	RoleContractor     RoleCategory = "CONTRACTOR"
)

// SubjectIdentifiers is the plaintext input describing who is being
// investigated.
type SubjectIdentifiers struct {
	FullName  string
	DOB       time.Time
	SSN       string
	Addresses []string
	Aliases   []string
}

// Fact is one atomic piece of accumulated knowledge about the subject,
// append-only within a SAR run (spec §3).
type Fact struct {
	Type           string
	Value          string
	SourceProvider string
	Confidence     float64
	Iteration      int
	Corroborated   bool
}

// KnowledgeBase accumulates Facts per InformationType across SAR iterations.
// Owned by a single SAR orchestrator task (spec §5) — never written from
// any other goroutine.
type KnowledgeBase struct {
	facts map[InformationType][]Fact
}

func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{facts: make(map[InformationType][]Fact)}
}

func (kb *KnowledgeBase) Add(t InformationType, f Fact) {
	kb.facts[t] = append(kb.facts[t], f)
}

func (kb *KnowledgeBase) Facts(t InformationType) []Fact {
	return kb.facts[t]
}

// AllFacts returns every fact across every type, for the phases that need a
// global snapshot (e.g. Reconciliation, spec §4.5).
func (kb *KnowledgeBase) AllFacts() map[InformationType][]Fact {
	out := make(map[InformationType][]Fact, len(kb.facts))
	for k, v := range kb.facts {
		cp := make([]Fact, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// QueryType distinguishes why a SearchQuery was generated.
type QueryType string

const (
	QueryInitial     QueryType = "INITIAL"
	QueryEnriched    QueryType = "ENRICHED"
	QueryGapFill     QueryType = "GAP_FILL"
	QueryRefinement  QueryType = "REFINEMENT"
)

// SearchQuery is one provider-bound request the Planner produced.
type SearchQuery struct {
	ID         uuid.UUID
	InfoType   InformationType
	QueryType  QueryType
	ProviderID string
	CheckType  string
	Params     map[string]string
	Priority   int
	ParentID   *uuid.UUID
}

// QueryStatus is the outcome of routing a SearchQuery.
type QueryStatus string

const (
	StatusSuccess     QueryStatus = "SUCCESS"
	StatusFailed      QueryStatus = "FAILED"
	StatusTimeout     QueryStatus = "TIMEOUT"
	StatusRateLimited QueryStatus = "RATE_LIMITED"
	StatusNoProvider  QueryStatus = "NO_PROVIDER"
	StatusSkipped     QueryStatus = "SKIPPED"
)

// QueryResult is the outcome of executing one SearchQuery.
type QueryResult struct {
	QueryID        uuid.UUID
	Status         QueryStatus
	NormalizedData map[string]any
	FindingsCount  int
	Duration       time.Duration
	CacheHit       bool
	Error          string
}

// Severity is the finding/risk severity ladder used throughout §4.6.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// BaseScore returns the base_severity constant used by the risk scorer
// (spec §4.6: 10/25/50/75).
func (s Severity) BaseScore() float64 {
	switch s {
	case SeverityLow:
		return 10
	case SeverityMedium:
		return 25
	case SeverityHigh:
		return 50
	case SeverityCritical:
		return 75
	default:
		return 0
	}
}

// Bump raises severity by one level, capped at CRITICAL (spec §4.6
// adjustments).
func (s Severity) Bump() Severity {
	if s >= SeverityCritical {
		return SeverityCritical
	}
	return s + 1
}

// Category is the fixed classifier category set (spec §4.6).
type Category string

const (
	CategoryCriminal     Category = "CRIMINAL"
	CategoryFinancial    Category = "FINANCIAL"
	CategoryRegulatory   Category = "REGULATORY"
	CategoryReputation   Category = "REPUTATION"
	CategoryVerification Category = "VERIFICATION"
	CategoryBehavioral   Category = "BEHAVIORAL"
	CategoryNetwork      Category = "NETWORK"
)

// Finding is a single screening finding (spec §3, §4.5).
type Finding struct {
	ID               uuid.UUID
	Category         Category
	SubCategory      string
	Severity         Severity
	Confidence       float64
	RelevanceToRole  float64
	Summary          string
	Details          string
	Corroborated     bool
	Sources          []string
	DiscoveredAt     time.Time
}

// Inconsistency is a detected conflict between a new fact and an existing
// KnowledgeBase fact (spec §4.5).
type Inconsistency struct {
	InfoType    InformationType
	Category    string // e.g. DATE_MINOR, EMPLOYMENT_GAP_HIDDEN, CREDENTIAL_INFLATION
	Description string
	FactA       Fact
	FactB       Fact
}

// Gap is a missing expected-fact category reported by the Assessor (spec §4.5).
type Gap struct {
	InfoType     InformationType
	FactCategory string
	Reason       string
}

// DiscoveredEntity is a new connection surfaced by a Network-type query.
type DiscoveredEntity struct {
	EntityID   uuid.UUID
	Name       string
	Relation   string
	Confidence float64
}

// CompletionReason explains why a SAR type stopped iterating (spec GLOSSARY).
type CompletionReason string

const (
	ReasonConfidenceMet     CompletionReason = "CONFIDENCE_MET"
	ReasonMaxIterations     CompletionReason = "MAX_ITERATIONS"
	ReasonDiminishing       CompletionReason = "DIMINISHING_RETURNS"
	ReasonSkipped           CompletionReason = "SKIPPED"
	ReasonError             CompletionReason = "ERROR"
)

// SARPhase is the current step within one SAR iteration.
type SARPhase string

const (
	PhaseSearch  SARPhase = "SEARCH"
	PhaseAssess  SARPhase = "ASSESS"
	PhaseRefine  SARPhase = "REFINE"
)

// SARIterationState records one completed iteration for one InformationType.
type SARIterationState struct {
	Iteration      int
	Phase          SARPhase
	QueriesExecuted int
	NewFacts       int
	Confidence     float64
}

// SARTypeState is the full per-type SAR history.
type SARTypeState struct {
	InfoType         InformationType
	Iterations       []SARIterationState
	CompletionReason CompletionReason
}

func (s *SARTypeState) LatestConfidence() float64 {
	if len(s.Iterations) == 0 {
		return 0
	}
	return s.Iterations[len(s.Iterations)-1].Confidence
}
