// Package screening drives one subject through the six ordered phases —
// Validation, Compliance, Consent, Investigation, RiskAnalysis,
// ReportGeneration — composing pkg/compliance, internal/consent, pkg/sar,
// and pkg/risk the way the teacher's arc.IngestionService composes fetch,
// store, and meter into one sequential operation with a per-step receipt.
package screening

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veriscope/screening/internal/apierr"
	"github.com/veriscope/screening/internal/consent"
	"github.com/veriscope/screening/internal/telemetry"
	"github.com/veriscope/screening/pkg/compliance"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/entityresolution"
	"github.com/veriscope/screening/pkg/provider"
	"github.com/veriscope/screening/pkg/risk"
	"github.com/veriscope/screening/pkg/sar"
)

// PhaseName is one of the six orchestrator phases (spec §4.7).
type PhaseName string

const (
	PhaseValidation       PhaseName = "VALIDATION"
	PhaseCompliance       PhaseName = "COMPLIANCE"
	PhaseConsent          PhaseName = "CONSENT"
	PhaseInvestigation    PhaseName = "INVESTIGATION"
	PhaseRiskAnalysis     PhaseName = "RISK_ANALYSIS"
	PhaseReportGeneration PhaseName = "REPORT_GENERATION"
)

// PhaseStatus is one phase's recorded outcome.
type PhaseStatus string

const (
	PhaseOK     PhaseStatus = "OK"
	PhaseWarned PhaseStatus = "WARNED"
	PhaseHalted PhaseStatus = "HALTED"
	PhaseFailed PhaseStatus = "FAILED"
)

// PhaseRecord is one phase's audit entry: status, wall-clock duration, and
// the provider cost it incurred (spec §4.7: "recording per-phase status,
// duration, and cost").
type PhaseRecord struct {
	Name     PhaseName
	Status   PhaseStatus
	Duration time.Duration
	Cost     float64
	Detail   string
}

// Outcome is the orchestrator's full run record. Result is nil unless
// ReportGeneration completed; a halted or failed run still carries every
// PhaseRecord up to the point it stopped.
type Outcome struct {
	ScreeningID uuid.UUID
	Status      PhaseStatus
	Phases      []PhaseRecord
	Result      *ScreeningResult
}

// EntityResolver is the seam to the entity-resolution subsystem: given a
// subject, return the canonical entity to investigate. Implementations
// compose entityresolution.Resolve with the candidate store and, when the
// decision is MATCH_EXISTING or CREATE_NEW, a persistence write; a
// PENDING_REVIEW decision is surfaced as an error so the caller can queue a
// manual review instead of running a screening against an unresolved
// subject.
type EntityResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, subject domain.SubjectIdentifiers, tier domain.ServiceTier) (uuid.UUID, entityresolution.Decision, error)
}

// ReportRenderer delegates compiled results to whatever produces the
// externally visible report artifact (spec §4.7: "Report generation is
// delegated").
type ReportRenderer interface {
	Render(ctx context.Context, compiled CompiledResult) (ReportMetadata, error)
}

// ReportMetadata is what the orchestrator returns about a generated report,
// not the report body itself.
type ReportMetadata struct {
	ReportID    uuid.UUID
	Format      string
	GeneratedAt time.Time
	Location    string
}

// Request is one screening request (spec §3, §4.7).
type Request struct {
	TenantID     uuid.UUID
	Subject      domain.SubjectIdentifiers
	Role         domain.RoleCategory
	Tier         domain.ServiceTier
	Locale       compliance.Locale
	SearchDegree domain.SearchDegree
	InfoTypes    []domain.InformationType
	CheckTypeFor map[domain.InformationType]string
	Providers    map[domain.InformationType][]sar.ProviderCapability
	ConsentToken string
}

// Orchestrator composes every subsystem the six phases need. A nil Cost
// means no per-phase cost is recorded and a nil Compiler skips result
// compilation; a nil Resolver fails the Validation phase.
type Orchestrator struct {
	Compliance *compliance.Engine
	Resolver   EntityResolver
	Cost       *costTracker

	SAR  TypeCycleDeps
	Risk RiskDeps

	Compiler *ResultCompiler
	Renderer ReportRenderer
}

// TypeCycleDeps mirrors sar.TypeCycleDeps; kept as a distinct alias here so
// callers construct the orchestrator without importing pkg/sar's internal
// wiring names directly.
type TypeCycleDeps = sar.TypeCycleDeps

// RiskDeps bundles the Risk Pipeline collaborators the RiskAnalysis phase
// drives in sequence (spec §4.6).
type RiskDeps struct {
	Classifier  *risk.Classifier
	Severity    *risk.SeverityCalculator
	Scorer      *risk.Scorer
	Patterns    *risk.PatternRecognizer
	Anomalies   *risk.AnomalyDetector
	Connections *risk.Analyzer
}

// NewOrchestrator wires an Orchestrator from its collaborators. Cost may be
// nil (no CostStore configured for this deployment).
func NewOrchestrator(compEngine *compliance.Engine, resolver EntityResolver, cost *provider.CostService, sarDeps TypeCycleDeps, riskDeps RiskDeps, compiler *ResultCompiler, renderer ReportRenderer) *Orchestrator {
	return &Orchestrator{
		Compliance: compEngine,
		Resolver:   resolver,
		Cost:       newCostTracker(cost),
		SAR:        sarDeps,
		Risk:       riskDeps,
		Compiler:   compiler,
		Renderer:   renderer,
	}
}

// Run drives req through all six phases. Phase ordering is strict: a
// phase's failure halts everything after it, and the Outcome returned
// always carries every phase attempted so far (spec §4.7).
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	log := telemetry.FromContext(ctx)
	out := &Outcome{ScreeningID: domain.NewID(), Status: PhaseOK}
	screeningID := out.ScreeningID

	entityID, err := o.runValidation(ctx, req, out)
	if err != nil {
		return out, err
	}
	if out.Status == PhaseHalted || out.Status == PhaseFailed {
		return out, nil
	}

	permitted, decisions := o.runCompliance(ctx, req, out)
	if out.Status == PhaseHalted || out.Status == PhaseFailed {
		return out, nil
	}

	if err := o.runConsent(ctx, req, decisions, out); err != nil {
		return out, err
	}
	if out.Status == PhaseHalted || out.Status == PhaseFailed {
		return out, nil
	}

	investigation := o.runInvestigation(ctx, req, permitted, entityID, screeningID, out)
	if out.Status == PhaseFailed {
		return out, nil
	}

	riskAssessment := o.runRiskAnalysis(ctx, req, investigation, out)

	if err := o.runReportGeneration(ctx, req, investigation, riskAssessment, out); err != nil {
		return out, err
	}

	log.Info("screening completed", "screening_id", screeningID.String(), "status", string(out.Status))
	return out, nil
}

// finishPhase fills in a PhaseRecord's duration and, when a costTracker is
// wired, the cost recorded during this phase (spec §4.7).
func (o *Orchestrator) finishPhase(record *PhaseRecord, started time.Time) {
	record.Duration = time.Since(started)
	if o.Cost != nil {
		record.Cost = o.Cost.take()
	}
}

// validationDetail surfaces a structured validation error's "code" detail
// (e.g. "d3_requires_enhanced", spec §8 Scenario 3) instead of its free-text
// message, falling back to the message for errors outside the taxonomy.
func validationDetail(err error) string {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Details["code"]; ok {
			return fmt.Sprintf("%v", code)
		}
	}
	return err.Error()
}

func (o *Orchestrator) runValidation(ctx context.Context, req Request, out *Outcome) (uuid.UUID, error) {
	started := time.Now()
	record := PhaseRecord{Name: PhaseValidation}

	defer func() { o.finishPhase(&record, started); out.Phases = append(out.Phases, record) }()

	if req.Subject.FullName == "" {
		record.Status = PhaseFailed
		record.Detail = "subject full name is required"
		out.Status = PhaseFailed
		return uuid.Nil, nil
	}

	if o.Compliance != nil {
		warnings, err := o.Compliance.ValidateServiceConfig(compliance.ServiceConfigInput{
			Tier:         req.Tier,
			SearchDegree: req.SearchDegree,
			InfoTypes:    req.InfoTypes,
		})
		if err != nil {
			record.Status = PhaseFailed
			record.Detail = validationDetail(err)
			out.Status = PhaseFailed
			return uuid.Nil, nil
		}
		for _, w := range warnings {
			record.Detail += w.Code + ";"
		}
	}

	if o.Resolver == nil {
		record.Status = PhaseFailed
		record.Detail = "no entity resolver configured"
		out.Status = PhaseFailed
		return uuid.Nil, nil
	}

	entityID, decision, err := o.Resolver.Resolve(ctx, req.TenantID, req.Subject, req.Tier)
	if err != nil {
		record.Status = PhaseFailed
		record.Detail = err.Error()
		out.Status = PhaseFailed
		return uuid.Nil, nil
	}
	if decision == entityresolution.DecisionPendingReview {
		record.Status = PhaseHalted
		record.Detail = "entity resolution requires manual review"
		out.Status = PhaseHalted
		return uuid.Nil, nil
	}

	record.Status = PhaseOK
	return entityID, nil
}

// runCompliance evaluates every requested (InformationType, check type)
// pair and drops the ones a tenant or jurisdiction blocks, halting only if
// nothing permitted remains to investigate (spec §4.3, §4.7).
func (o *Orchestrator) runCompliance(ctx context.Context, req Request, out *Outcome) ([]domain.InformationType, map[domain.InformationType]compliance.Decision) {
	started := time.Now()
	record := PhaseRecord{Name: PhaseCompliance}
	decisions := make(map[domain.InformationType]compliance.Decision, len(req.InfoTypes))

	defer func() { o.finishPhase(&record, started); out.Phases = append(out.Phases, record) }()

	if o.Compliance == nil {
		record.Status = PhaseOK
		return req.InfoTypes, decisions
	}

	var permitted []domain.InformationType
	var blocked []string
	for _, t := range req.InfoTypes {
		checkType := req.CheckTypeFor[t]
		d := o.Compliance.EvaluateForTenant(req.TenantID.String(), req.Locale, checkType, req.Role, req.Tier)
		decisions[t] = d
		if d.Permitted {
			permitted = append(permitted, t)
		} else {
			blocked = append(blocked, fmt.Sprintf("%s:%s", t, d.BlockReason))
		}
	}

	if len(permitted) == 0 {
		record.Status = PhaseHalted
		record.Detail = "every requested check is blocked by compliance rules"
		out.Status = PhaseHalted
		return nil, decisions
	}

	if len(blocked) > 0 {
		record.Status = PhaseWarned
		record.Detail = fmt.Sprintf("blocked: %v", blocked)
	} else {
		record.Status = PhaseOK
	}
	return permitted, decisions
}

// runConsent decodes the asserted consent token when any permitted check
// requires it. Signature verification is explicitly out of scope (spec
// §4.7): only expiry and presence are checked.
func (o *Orchestrator) runConsent(ctx context.Context, req Request, decisions map[domain.InformationType]compliance.Decision, out *Outcome) error {
	started := time.Now()
	record := PhaseRecord{Name: PhaseConsent}
	defer func() { o.finishPhase(&record, started); out.Phases = append(out.Phases, record) }()

	requiresConsent := false
	for _, d := range decisions {
		if d.RequiresConsent {
			requiresConsent = true
			break
		}
	}

	if !requiresConsent {
		record.Status = PhaseOK
		return nil
	}

	claims, err := consent.Decode(req.ConsentToken)
	if err != nil {
		if kind, ok := apierr.KindOf(err); ok {
			record.Status = PhaseHalted
			record.Detail = string(kind)
			out.Status = PhaseHalted
			return nil
		}
		record.Status = PhaseFailed
		record.Detail = err.Error()
		out.Status = PhaseFailed
		return err
	}

	record.Status = PhaseOK
	record.Detail = fmt.Sprintf("consent_scope=%v", claims.ConsentScope)
	return nil
}
