package screening

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/risk"
	"github.com/veriscope/screening/pkg/sar"
)

// minFindingConfidence excludes low-confidence findings from every summary
// (spec §4.8, default 0.5).
const minFindingConfidence = 0.5

// topFindingsPerCategory caps how many findings FindingsSummary keeps per
// category, ranked by severity (spec §4.8: "top-N by severity").
const topFindingsPerCategory = 5

// FindingsSummary is the Result Compiler's finding-facing rollup (spec
// §4.8).
type FindingsSummary struct {
	CountByCategory map[domain.Category]int
	CountBySeverity map[domain.Severity]int
	TopByCategory   map[domain.Category][]domain.Finding
	Narrative       string
}

// TypeSummary is one InformationType's SAR sub-cycle rollup (spec §4.8).
type TypeSummary struct {
	InfoType         domain.InformationType
	Iterations       int
	QueriesExecuted  int
	SuccessRate      float64
	Confidence       float64
	CompletionReason domain.CompletionReason
}

// InvestigationSummary is the per-type SAR rollup across the whole
// screening (spec §4.8).
type InvestigationSummary struct {
	Types []TypeSummary
}

// ConnectionSummary is the network-phase rollup (spec §4.8).
type ConnectionSummary struct {
	DiscoveredD2      int
	DiscoveredD3      int
	PEPHits           int
	SanctionsHits     int
	ShellCompanyHits  int
	MaxPropagatedRisk float64
}

// CompiledResult is the Result Compiler's output: the three summaries plus
// enough identity to build the externally visible ScreeningResult (spec
// §4.8).
type CompiledResult struct {
	Findings      FindingsSummary
	Investigation InvestigationSummary
	Connections   ConnectionSummary
	RiskResult    risk.RiskResult
}

// ScreeningResult is the externally visible shape a caller receives for a
// completed screening (spec §4.7, §6).
type ScreeningResult struct {
	ScreeningID   uuid.UUID
	TenantID      uuid.UUID
	Findings      FindingsSummary
	Investigation InvestigationSummary
	Connections   ConnectionSummary
	RiskLevel     risk.Level
	RiskScore     float64
	Recommendation risk.Recommendation
	Report        *ReportMetadata
}

// ResultCompiler collapses investigation and risk-analysis output into the
// three summaries the spec names, excluding low-confidence findings before
// any of them are built (spec §4.8).
type ResultCompiler struct{}

func NewResultCompiler() *ResultCompiler { return &ResultCompiler{} }

// Compile builds a CompiledResult from one screening's investigation and
// risk output.
func (c *ResultCompiler) Compile(inv InvestigationResult, riskAssessment RiskAssessment) CompiledResult {
	kept := make([]domain.Finding, 0, len(inv.Findings))
	for _, f := range inv.Findings {
		if f.Confidence >= minFindingConfidence {
			kept = append(kept, f)
		}
	}

	return CompiledResult{
		Findings:      compileFindings(kept),
		Investigation: compileInvestigation(inv.PhaseOutputs),
		Connections:   compileConnections(inv.DiscoveredEntities, kept, riskAssessment.Propagation),
		RiskResult:    riskAssessment.Result,
	}
}

func compileFindings(findings []domain.Finding) FindingsSummary {
	summary := FindingsSummary{
		CountByCategory: make(map[domain.Category]int),
		CountBySeverity: make(map[domain.Severity]int),
		TopByCategory:   make(map[domain.Category][]domain.Finding),
	}

	byCategory := make(map[domain.Category][]domain.Finding)
	for _, f := range findings {
		summary.CountByCategory[f.Category]++
		summary.CountBySeverity[f.Severity]++
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}

	for cat, fs := range byCategory {
		sort.Slice(fs, func(i, j int) bool { return fs[i].Severity > fs[j].Severity })
		if len(fs) > topFindingsPerCategory {
			fs = fs[:topFindingsPerCategory]
		}
		summary.TopByCategory[cat] = fs
	}

	summary.Narrative = narrativeFor(summary)
	return summary
}

func narrativeFor(s FindingsSummary) string {
	if len(s.CountByCategory) == 0 {
		return "no findings above the confidence threshold were surfaced"
	}
	critical := s.CountBySeverity[domain.SeverityCritical]
	high := s.CountBySeverity[domain.SeverityHigh]
	total := 0
	for _, n := range s.CountByCategory {
		total += n
	}
	return fmt.Sprintf("%d findings across %d categories (%d critical, %d high)", total, len(s.CountByCategory), critical, high)
}

func compileInvestigation(outputs []sar.PhaseOutput) InvestigationSummary {
	var types []TypeSummary
	for _, output := range outputs {
		for _, oc := range output.Outcomes {
			types = append(types, typeSummaryFor(oc))
		}
	}
	return InvestigationSummary{Types: types}
}

func typeSummaryFor(oc sar.TypeOutcome) TypeSummary {
	queries := 0
	productive := 0
	for _, it := range oc.State.Iterations {
		queries += it.QueriesExecuted
		if it.NewFacts > 0 {
			productive++
		}
	}
	successRate := 0.0
	if len(oc.State.Iterations) > 0 {
		successRate = float64(productive) / float64(len(oc.State.Iterations))
	}
	return TypeSummary{
		InfoType:         oc.InfoType,
		Iterations:       len(oc.State.Iterations),
		QueriesExecuted:  queries,
		SuccessRate:      successRate,
		Confidence:       oc.State.LatestConfidence(),
		CompletionReason: oc.State.CompletionReason,
	}
}

func compileConnections(discovered []domain.DiscoveredEntity, findings []domain.Finding, propagation risk.PropagationResult) ConnectionSummary {
	summary := ConnectionSummary{MaxPropagatedRisk: propagation.PropagatedRisk}
	for _, de := range discovered {
		switch de.Relation {
		case "NETWORK_D3":
			summary.DiscoveredD3++
		default:
			summary.DiscoveredD2++
		}
	}
	for _, f := range findings {
		switch f.SubCategory {
		case "REGULATORY_PEP":
			summary.PEPHits++
		case "REGULATORY_SANCTIONS":
			summary.SanctionsHits++
		case "NETWORK_SHELL_COMPANY":
			summary.ShellCompanyHits++
		}
	}
	return summary
}

// ToScreeningResult converts a CompiledResult into the externally visible
// ScreeningResult shape (spec §4.8).
func (c CompiledResult) ToScreeningResult(screeningID, tenantID uuid.UUID) ScreeningResult {
	return ScreeningResult{
		ScreeningID:    screeningID,
		TenantID:       tenantID,
		Findings:       c.Findings,
		Investigation:  c.Investigation,
		Connections:    c.Connections,
		RiskLevel:      c.RiskResult.Level,
		RiskScore:      c.RiskResult.Overall,
		Recommendation: c.RiskResult.Recommendation,
	}
}
