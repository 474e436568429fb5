package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/veriscope/screening/internal/auditlog"
	"github.com/veriscope/screening/internal/telemetry"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/monitoring"
	"github.com/veriscope/screening/pkg/sar"
	"github.com/veriscope/screening/pkg/screening"
)

// recheckProfile carries the parts of a screening request a monitored
// subject's original engagement supplied but monitoring.MonitoredSubject
// does not itself retain: a recheck runs against the same information
// types, providers, and search degree as the screening that first enrolled
// the subject (spec §4.9: re-running "a screening against the subject's
// current identifiers").
type recheckProfile struct {
	infoTypes    []domain.InformationType
	checkTypeFor map[domain.InformationType]string
	providers    map[domain.InformationType][]sar.ProviderCapability
	searchDegree domain.SearchDegree
	consentToken string
}

// orchestratorRunner adapts *screening.Orchestrator to
// monitoring.ScreeningRunner, the seam the Scheduler uses to trigger a
// recheck without pkg/monitoring importing pkg/screening directly.
type orchestratorRunner struct {
	orchestrator *screening.Orchestrator
	audit        auditlog.Logger

	mu       sync.Mutex
	profiles map[uuid.UUID]recheckProfile
}

func newOrchestratorRunner(o *screening.Orchestrator, audit auditlog.Logger) *orchestratorRunner {
	return &orchestratorRunner{orchestrator: o, audit: audit, profiles: make(map[uuid.UUID]recheckProfile)}
}

// registerProfile records the recheck profile for a subject. Called once
// when a subject is enrolled for monitoring, typically right after its
// originating screening completes.
func (r *orchestratorRunner) registerProfile(subjectID uuid.UUID, p recheckProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[subjectID] = p
}

func (r *orchestratorRunner) Run(ctx context.Context, subject monitoring.MonitoredSubject) (*monitoring.CheckResult, error) {
	r.mu.Lock()
	profile, ok := r.profiles[subject.SubjectID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("screeningd: no recheck profile registered for subject %s", subject.SubjectID)
	}

	req := screening.Request{
		TenantID:     subject.TenantID,
		Subject:      subject.Subject,
		Role:         subject.RoleCategory,
		Tier:         subject.Tier,
		Locale:       subject.Locale,
		SearchDegree: profile.searchDegree,
		InfoTypes:    profile.infoTypes,
		CheckTypeFor: profile.checkTypeFor,
		Providers:    profile.providers,
		ConsentToken: profile.consentToken,
	}

	outcome, err := r.orchestrator.Run(ctx, req)
	if err != nil {
		r.recordAudit(ctx, domain.AuditWarning, subject, map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("screeningd: recheck subject %s: %w", subject.SubjectID, err)
	}
	if outcome.Result == nil {
		r.recordAudit(ctx, domain.AuditWarning, subject, map[string]any{"status": string(outcome.Status)})
		return nil, fmt.Errorf("screeningd: recheck subject %s did not reach report generation (status %s)", subject.SubjectID, outcome.Status)
	}
	r.recordAudit(ctx, domain.AuditInfo, subject, map[string]any{
		"screening_id": outcome.ScreeningID,
		"risk_score":   outcome.Result.RiskScore,
	})

	return &monitoring.CheckResult{
		RiskScore: outcome.Result.RiskScore,
		Profile: monitoring.ProfileSnapshot{
			RiskScore: outcome.Result.RiskScore,
			RiskLevel: outcome.Result.RiskLevel,
			Findings:  flattenFindings(outcome.Result.Findings),
			// Per-entity propagated-risk history isn't retained by the
			// compiled ScreeningResult (it only aggregates connection counts,
			// spec §4.8), so connection deltas are not populated here; finding
			// deltas remain the dominant monitoring signal.
		},
	}, nil
}

func (r *orchestratorRunner) recordAudit(ctx context.Context, severity domain.AuditSeverity, subject monitoring.MonitoredSubject, data map[string]any) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Record(ctx, "monitoring_recheck", severity, "subject", subject.SubjectID.String(), data); err != nil {
		telemetry.FromContext(ctx).Warn("audit record failed", "error", err)
	}
}

func flattenFindings(s screening.FindingsSummary) []domain.Finding {
	var out []domain.Finding
	for _, fs := range s.TopByCategory {
		out = append(out, fs...)
	}
	return out
}
