package sar

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/compliance"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/provider"
)

// Phase is a coarse grouping of InformationTypes executed in a defined
// order (spec §4.5).
type Phase string

const (
	PhaseFoundation     Phase = "FOUNDATION"
	PhaseRecords        Phase = "RECORDS"
	PhaseIntelligence   Phase = "INTELLIGENCE"
	PhaseNetwork        Phase = "NETWORK"
	PhaseReconciliation Phase = "RECONCILIATION"
)

// PhaseOrder is the fixed sequence the orchestrator walks.
var PhaseOrder = []Phase{PhaseFoundation, PhaseRecords, PhaseIntelligence, PhaseNetwork, PhaseReconciliation}

var phaseTypes = map[Phase][]domain.InformationType{
	PhaseFoundation:     {domain.InfoIdentity, domain.InfoEmployment, domain.InfoEducation},
	PhaseRecords:        {domain.InfoCriminal, domain.InfoCivil, domain.InfoFinancial, domain.InfoLicenses, domain.InfoRegulatory, domain.InfoSanctions},
	PhaseIntelligence:   {domain.InfoAdverseMedia, domain.InfoDigitalFootprint},
	PhaseNetwork:        {domain.InfoNetworkD2, domain.InfoNetworkD3},
	PhaseReconciliation: {domain.InfoReconciliation},
}

// sequentialPhases run their types one at a time, each seeing the prior
// type's KB updates; the rest run their types concurrently (spec §4.5, §5).
var sequentialPhases = map[Phase]struct{}{
	PhaseFoundation: {},
	PhaseNetwork:    {},
}

// TypeCycleDeps bundles the per-type SAR sub-cycle collaborators. One set is
// shared across every type in a phase.
type TypeCycleDeps struct {
	Planner    *Planner
	Executor   *Executor
	Assessor   *Assessor
	Controller *IterationController
	Refiner    *Refiner
	Schema     *SchemaValidator // optional; nil skips validation
}

// PhaseInput is the shared, sum-type dispatch input: the same struct shape
// serves every phase, with Phase selecting which types run and in what mode.
type PhaseInput struct {
	Phase        Phase
	KB           *domain.KnowledgeBase
	Providers    map[domain.InformationType][]ProviderCapability
	CheckTypeFor map[domain.InformationType]string
	Locale       compliance.Locale
	Role         domain.RoleCategory
	Tier         domain.ServiceTier
	ProviderTier provider.ServiceTier
	Subject      domain.SubjectIdentifiers
	EntityID     uuid.UUID
	TenantID     uuid.UUID
	ScreeningID  *uuid.UUID

	// Types overrides the phase's default InformationType list when set,
	// so a caller that has already filtered some types out (e.g. a
	// compliance block) can skip them without RunPhase reaching back into
	// the fixed phaseTypes table.
	Types []domain.InformationType
}

// TypeOutcome is one InformationType's fully-run SAR sub-cycle result.
type TypeOutcome struct {
	InfoType           domain.InformationType
	State              domain.SARTypeState
	Inconsistencies    []domain.Inconsistency
	DiscoveredEntities []domain.DiscoveredEntity
	Gaps               []domain.Gap
}

func (o TypeOutcome) capped() bool {
	return o.State.CompletionReason == domain.ReasonMaxIterations
}

// PhaseOutput is the sum-type dispatch output, shared across all phases.
type PhaseOutput struct {
	Phase    Phase
	Outcomes []TypeOutcome
	Halt     bool
	HaltReason string
	Warnings []string
}

// RunPhase is the single execute(phase, input) -> output dispatch point for
// all five Phase Handlers (spec Design Notes §9, spec §4.5 table).
func RunPhase(ctx context.Context, deps TypeCycleDeps, in PhaseInput) PhaseOutput {
	types := in.Types
	if types == nil {
		types = phaseTypes[in.Phase]
	}

	var outcomes []TypeOutcome
	if _, sequential := sequentialPhases[in.Phase]; sequential {
		outcomes = runSequential(ctx, deps, in, types)
	} else {
		outcomes = runParallel(ctx, deps, in, types)
	}

	return applyFailureSemantics(in.Phase, outcomes)
}

func runSequential(ctx context.Context, deps TypeCycleDeps, in PhaseInput, types []domain.InformationType) []TypeOutcome {
	outcomes := make([]TypeOutcome, 0, len(types))
	for _, t := range types {
		outcomes = append(outcomes, runTypeCycle(ctx, deps, in, t))
	}
	return outcomes
}

func runParallel(ctx context.Context, deps TypeCycleDeps, in PhaseInput, types []domain.InformationType) []TypeOutcome {
	outcomes := make([]TypeOutcome, len(types))
	var wg sync.WaitGroup
	for i, t := range types {
		wg.Add(1)
		go func(i int, t domain.InformationType) {
			defer wg.Done()
			outcomes[i] = runTypeCycle(ctx, deps, in, t)
		}(i, t)
	}
	wg.Wait()
	return outcomes
}

// runTypeCycle drives one InformationType through Plan -> Execute -> Assess
// -> Decide until the Iteration Controller calls it complete (spec §4.5).
func runTypeCycle(ctx context.Context, deps TypeCycleDeps, in PhaseInput, t domain.InformationType) TypeOutcome {
	state := domain.SARTypeState{InfoType: t}
	outcome := TypeOutcome{InfoType: t}

	checkType := in.CheckTypeFor[t]
	providers := in.Providers[t]
	var gaps []domain.Gap

	for iteration := 1; ; iteration++ {
		plan := deps.Planner.Plan(t, iteration, in.KB, providers, in.Locale, in.Role, in.Tier, checkType, gaps)
		if plan.SkippedReason != "" {
			state.CompletionReason = domain.ReasonSkipped
			break
		}

		queries := plan.Queries
		if iteration > 1 {
			queries = append(queries, deps.Refiner.Refine(t, iteration, outcome.Inconsistencies, providers, checkType)...)
		}
		if len(queries) == 0 {
			state.CompletionReason = domain.ReasonSkipped
			break
		}

		results, summary := deps.Executor.Execute(ctx, queries, in.Subject, string(in.Locale), in.ProviderTier, in.EntityID, in.TenantID, in.ScreeningID)
		if deps.Schema != nil {
			results = deps.Schema.filterInvalid(checkType, results)
			summary = summarize(results)
		}

		assessed := deps.Assessor.Assess(t, iteration, results, in.KB)
		for _, f := range assessed.Facts {
			in.KB.Add(t, f)
		}
		outcome.Inconsistencies = append(outcome.Inconsistencies, assessed.Inconsistencies...)
		outcome.DiscoveredEntities = append(outcome.DiscoveredEntities, assessed.DiscoveredEntities...)
		gaps = assessed.Gaps
		outcome.Gaps = gaps

		score := Score(ConfidenceInput{InfoType: t, Facts: in.KB.Facts(t), SuccessRate: summary.SuccessRate}, deps.Controller.cfg.ConfidenceThreshold)

		state.Iterations = append(state.Iterations, domain.SARIterationState{
			Iteration:       iteration,
			Phase:           domain.PhaseAssess,
			QueriesExecuted: len(queries),
			NewFacts:        len(assessed.Facts),
			Confidence:      score.Composite,
		})

		decision := deps.Controller.Decide(&state, score)
		if !decision.Continue {
			state.CompletionReason = decision.Reason
			break
		}
	}

	outcome.State = state
	return outcome
}

// applyFailureSemantics enforces the per-phase halt/warning rules from spec
// §4.5: Identity capping the whole screening, Sanctions being required in
// Records, and otherwise degrading to a partial-completion warning.
func applyFailureSemantics(phase Phase, outcomes []TypeOutcome) PhaseOutput {
	out := PhaseOutput{Phase: phase, Outcomes: outcomes}

	for _, o := range outcomes {
		if !o.capped() {
			continue
		}
		switch {
		case phase == PhaseFoundation && o.InfoType == domain.InfoIdentity:
			out.Halt = true
			out.HaltReason = "identity verification failed to reach required confidence"
		case phase == PhaseRecords && o.InfoType == domain.InfoSanctions:
			out.Halt = true
			out.HaltReason = "sanctions screening failed to reach required confidence"
		default:
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s completed with partial confidence (%s)", o.InfoType, o.State.CompletionReason))
		}
	}

	return out
}
