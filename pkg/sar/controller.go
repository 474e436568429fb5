package sar

import "github.com/veriscope/screening/pkg/domain"

// ControllerConfig bounds how long one InformationType's SAR loop may run
// (spec §4.5, §5).
type ControllerConfig struct {
	MaxIterations          int
	ConfidenceThreshold    float64
	DiminishingReturnsDelta float64
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxIterations:           4,
		ConfidenceThreshold:     0.80,
		DiminishingReturnsDelta: 0.03,
	}
}

// IterationController decides, after each Assess step, whether a type's SAR
// loop continues, and if so what kind of follow-up queries to plan (spec
// §4.5: CONFIDENCE_MET / MAX_ITERATIONS / DIMINISHING_RETURNS).
type IterationController struct {
	cfg ControllerConfig
}

func NewIterationController(cfg ControllerConfig) *IterationController {
	return &IterationController{cfg: cfg}
}

// ContinueDecision is the Controller's verdict for one type after an
// iteration completes.
type ContinueDecision struct {
	Continue bool
	Reason   domain.CompletionReason
}

// Decide inspects the type's iteration history and current confidence score
// to determine whether another iteration should run.
func (c *IterationController) Decide(state *domain.SARTypeState, score ConfidenceScore) ContinueDecision {
	if score.Met {
		return ContinueDecision{Continue: false, Reason: domain.ReasonConfidenceMet}
	}

	if len(state.Iterations) >= c.cfg.MaxIterations {
		return ContinueDecision{Continue: false, Reason: domain.ReasonMaxIterations}
	}

	if c.diminishingReturns(state) {
		return ContinueDecision{Continue: false, Reason: domain.ReasonDiminishing}
	}

	return ContinueDecision{Continue: true}
}

// diminishingReturns compares the confidence delta between the last two
// iterations against DiminishingReturnsDelta (spec §4.5).
func (c *IterationController) diminishingReturns(state *domain.SARTypeState) bool {
	n := len(state.Iterations)
	if n < 2 {
		return false
	}
	prev := state.Iterations[n-2].Confidence
	latest := state.Iterations[n-1].Confidence
	delta := latest - prev
	if delta < 0 {
		delta = -delta
	}
	return delta < c.cfg.DiminishingReturnsDelta
}

// Refiner turns the Assessor's reported inconsistencies into the next
// iteration's REFINEMENT queries. It does not handle gaps: GAP_FILL queries
// come from Planner's ENRICHED iterations.
type Refiner struct{}

func NewRefiner() *Refiner { return &Refiner{} }

// Refine builds targeted follow-up queries for unresolved inconsistencies:
// one REFINEMENT query per inconsistency, all sent to the first provider in
// providers, to request re-verification of the conflicting fact.
func (r *Refiner) Refine(t domain.InformationType, iteration int, inconsistencies []domain.Inconsistency, providers []ProviderCapability, checkType string) []domain.SearchQuery {
	if len(inconsistencies) == 0 || len(providers) == 0 {
		return nil
	}

	var queries []domain.SearchQuery
	for _, inc := range inconsistencies {
		queries = append(queries, domain.SearchQuery{
			ID:         domain.NewID(),
			InfoType:   t,
			QueryType:  domain.QueryRefinement,
			ProviderID: providers[0].ProviderID,
			CheckType:  checkType,
			Params: map[string]string{
				"reverify_fact_type": inc.FactB.Type,
				"conflict_category":  inc.Category,
			},
			Priority: 2,
		})
	}
	return queries
}
