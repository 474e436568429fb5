package screening

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/provider"
	"github.com/veriscope/screening/pkg/risk"
	"github.com/veriscope/screening/pkg/sar"
)

// InvestigationResult carries everything the RiskAnalysis and
// ReportGeneration phases need out of the Investigation phase: the
// accumulated knowledge base, every phase's outcomes, and the extracted
// findings.
type InvestigationResult struct {
	KB                 *domain.KnowledgeBase
	PhaseOutputs        []sar.PhaseOutput
	Findings           []domain.Finding
	Inconsistencies    []domain.Inconsistency
	DiscoveredEntities []domain.DiscoveredEntity
	HaltReason         string
}

// runInvestigation walks sar.PhaseOrder, driving each phase's SAR sub-cycle
// via sar.RunPhase, until a phase halts the screening or every phase
// completes (spec §4.5, §4.7).
func (o *Orchestrator) runInvestigation(ctx context.Context, req Request, permitted []domain.InformationType, entityID, screeningID uuid.UUID, out *Outcome) InvestigationResult {
	started := time.Now()
	record := PhaseRecord{Name: PhaseInvestigation}
	result := InvestigationResult{KB: domain.NewKnowledgeBase()}

	defer func() { o.finishPhase(&record, started); out.Phases = append(out.Phases, record) }()

	permittedSet := make(map[domain.InformationType]struct{}, len(permitted))
	for _, t := range permitted {
		permittedSet[t] = struct{}{}
	}

	extractor := sar.NewExtractor(nil)

	for _, phase := range sar.PhaseOrder {
		types := phaseInfoTypes(phase, permittedSet)
		if len(types) == 0 {
			continue
		}

		in := sar.PhaseInput{
			Phase:        phase,
			KB:           result.KB,
			Providers:    req.Providers,
			CheckTypeFor: req.CheckTypeFor,
			Locale:       req.Locale,
			Role:         req.Role,
			Tier:         req.Tier,
			ProviderTier: provider.ServiceTier(req.Tier),
			Subject:      req.Subject,
			EntityID:     entityID,
			TenantID:     req.TenantID,
			ScreeningID:  &screeningID,
			Types:        types,
		}
		output := sar.RunPhase(ctx, o.SAR, in)

		result.PhaseOutputs = append(result.PhaseOutputs, output)
		for _, oc := range output.Outcomes {
			result.Inconsistencies = append(result.Inconsistencies, oc.Inconsistencies...)
			result.DiscoveredEntities = append(result.DiscoveredEntities, oc.DiscoveredEntities...)
		}

		if output.Halt {
			result.HaltReason = output.HaltReason
			record.Status = PhaseHalted
			record.Detail = output.HaltReason
			out.Status = PhaseHalted
			result.Findings = extractor.Extract(ctx, result.KB)
			return result
		}
	}

	result.Findings = extractor.Extract(ctx, result.KB)
	if record.Status == "" {
		record.Status = PhaseOK
	}
	return result
}

// phaseInfoTypes returns the subset of phase's InformationTypes that
// survived the Compliance phase.
func phaseInfoTypes(phase sar.Phase, permitted map[domain.InformationType]struct{}) []domain.InformationType {
	var types []domain.InformationType
	for t := range permitted {
		if phaseOwns(phase, t) {
			types = append(types, t)
		}
	}
	return types
}

func phaseOwns(phase sar.Phase, t domain.InformationType) bool {
	switch phase {
	case sar.PhaseFoundation:
		return t == domain.InfoIdentity || t == domain.InfoEmployment || t == domain.InfoEducation
	case sar.PhaseRecords:
		switch t {
		case domain.InfoCriminal, domain.InfoCivil, domain.InfoFinancial, domain.InfoLicenses, domain.InfoRegulatory, domain.InfoSanctions:
			return true
		}
	case sar.PhaseIntelligence:
		return t == domain.InfoAdverseMedia || t == domain.InfoDigitalFootprint
	case sar.PhaseNetwork:
		return t == domain.InfoNetworkD2 || t == domain.InfoNetworkD3
	case sar.PhaseReconciliation:
		return t == domain.InfoReconciliation
	}
	return false
}

// RiskAssessment bundles every risk.* collaborator's output for one
// screening (spec §4.6).
type RiskAssessment struct {
	Result      risk.RiskResult
	Patterns    []risk.PatternSignal
	Deception   risk.DeceptionAssessment
	Propagation risk.PropagationResult
}

// runRiskAnalysis drives the findings extracted during Investigation
// through classification, severity, scoring, pattern/anomaly detection, and
// connection propagation (spec §4.6).
func (o *Orchestrator) runRiskAnalysis(ctx context.Context, req Request, inv InvestigationResult, out *Outcome) RiskAssessment {
	started := time.Now()
	record := PhaseRecord{Name: PhaseRiskAnalysis}
	defer func() { o.finishPhase(&record, started); out.Phases = append(out.Phases, record) }()

	if o.Risk.Classifier == nil || o.Risk.Severity == nil || o.Risk.Scorer == nil {
		record.Status = PhaseOK
		record.Detail = "risk pipeline not configured"
		return RiskAssessment{}
	}

	var inputs []risk.FindingInput
	classified := make([]domain.Finding, 0, len(inv.Findings))
	for _, f := range inv.Findings {
		cls := o.Risk.Classifier.Classify(ctx, f.Summary+" "+f.Details, req.Role)
		f.Category = cls.Category
		f.SubCategory = cls.SubCategory
		f.RelevanceToRole = cls.RoleRelevance

		decision := o.Risk.Severity.Calculate(f, cls.Category, req.Role)
		f.Severity = decision.FinalSeverity

		classified = append(classified, f)
		inputs = append(inputs, risk.FindingInput{Finding: f, FinalSeverity: f.Severity, RoleRelevance: cls.RoleRelevance})
	}

	result := o.Risk.Scorer.Score(inputs)

	var patterns []risk.PatternSignal
	if o.Risk.Patterns != nil {
		patterns = o.Risk.Patterns.Detect(classified)
	}

	var deception risk.DeceptionAssessment
	if o.Risk.Anomalies != nil {
		deception = o.Risk.Anomalies.Detect(inv.KB.AllFacts(), inv.Inconsistencies)
	}

	var propagation risk.PropagationResult
	if o.Risk.Connections != nil && len(inv.DiscoveredEntities) > 0 {
		graph := risk.NewGraph()
		entityRisk := make(map[uuid.UUID]float64, len(inv.DiscoveredEntities))
		for _, de := range inv.DiscoveredEntities {
			graph.AddEdge(uuid.Nil, risk.Edge{
				ToEntityID: de.EntityID,
				Relation:   domain.EntityRelation{Type: de.Relation},
				Severity:   domain.SeverityMedium,
				Strength:   risk.StrengthDirect,
			})
			entityRisk[de.EntityID] = de.Confidence
		}
		propagation = o.Risk.Connections.Propagate(graph, uuid.Nil, entityRisk)
	}

	record.Status = PhaseOK
	return RiskAssessment{Result: result, Patterns: patterns, Deception: deception, Propagation: propagation}
}

// runReportGeneration compiles the investigation and risk output and hands
// it to the injected ReportRenderer (spec §4.7: "report generation is
// delegated").
func (o *Orchestrator) runReportGeneration(ctx context.Context, req Request, inv InvestigationResult, riskAssessment RiskAssessment, out *Outcome) error {
	started := time.Now()
	record := PhaseRecord{Name: PhaseReportGeneration}
	defer func() { o.finishPhase(&record, started); out.Phases = append(out.Phases, record) }()

	if o.Compiler == nil {
		record.Status = PhaseOK
		record.Detail = "no result compiler configured"
		return nil
	}

	compiled := o.Compiler.Compile(inv, riskAssessment)
	result := compiled.ToScreeningResult(out.ScreeningID, req.TenantID)

	if o.Renderer != nil {
		meta, err := o.Renderer.Render(ctx, compiled)
		if err != nil {
			record.Status = PhaseFailed
			record.Detail = err.Error()
			out.Status = PhaseFailed
			return err
		}
		result.Report = &meta
	}

	out.Result = &result
	record.Status = PhaseOK
	return nil
}
