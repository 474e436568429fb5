package sar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/sar"
)

func TestIterationController_StopsOnConfidenceMet(t *testing.T) {
	c := sar.NewIterationController(sar.DefaultControllerConfig())
	state := &domain.SARTypeState{}

	decision := c.Decide(state, sar.ConfidenceScore{Met: true})

	assert.False(t, decision.Continue)
	assert.Equal(t, domain.ReasonConfidenceMet, decision.Reason)
}

func TestIterationController_StopsAtMaxIterations(t *testing.T) {
	cfg := sar.DefaultControllerConfig()
	cfg.MaxIterations = 2
	c := sar.NewIterationController(cfg)
	state := &domain.SARTypeState{Iterations: []domain.SARIterationState{
		{Iteration: 1, Confidence: 0.1},
		{Iteration: 2, Confidence: 0.2},
	}}

	decision := c.Decide(state, sar.ConfidenceScore{Met: false})

	assert.False(t, decision.Continue)
	assert.Equal(t, domain.ReasonMaxIterations, decision.Reason)
}

func TestIterationController_StopsOnDiminishingReturns(t *testing.T) {
	cfg := sar.DefaultControllerConfig()
	cfg.MaxIterations = 10
	cfg.DiminishingReturnsDelta = 0.05
	c := sar.NewIterationController(cfg)
	state := &domain.SARTypeState{Iterations: []domain.SARIterationState{
		{Iteration: 1, Confidence: 0.50},
		{Iteration: 2, Confidence: 0.52},
	}}

	decision := c.Decide(state, sar.ConfidenceScore{Met: false})

	assert.False(t, decision.Continue)
	assert.Equal(t, domain.ReasonDiminishing, decision.Reason)
}

func TestIterationController_ContinuesWhenProgressIsMeaningful(t *testing.T) {
	cfg := sar.DefaultControllerConfig()
	cfg.MaxIterations = 10
	cfg.DiminishingReturnsDelta = 0.03
	c := sar.NewIterationController(cfg)
	state := &domain.SARTypeState{Iterations: []domain.SARIterationState{
		{Iteration: 1, Confidence: 0.30},
		{Iteration: 2, Confidence: 0.50},
	}}

	decision := c.Decide(state, sar.ConfidenceScore{Met: false})

	assert.True(t, decision.Continue)
}

func TestIterationController_SingleIterationNeverTriggersDiminishing(t *testing.T) {
	cfg := sar.DefaultControllerConfig()
	cfg.MaxIterations = 10
	c := sar.NewIterationController(cfg)
	state := &domain.SARTypeState{Iterations: []domain.SARIterationState{
		{Iteration: 1, Confidence: 0.10},
	}}

	decision := c.Decide(state, sar.ConfidenceScore{Met: false})

	assert.True(t, decision.Continue)
}

func TestRefiner_NoInconsistenciesProducesNoQueries(t *testing.T) {
	r := sar.NewRefiner()

	queries := r.Refine(domain.InfoCriminal, 2, nil, []sar.ProviderCapability{{ProviderID: "p1"}}, "criminal")

	assert.Empty(t, queries)
}

func TestRefiner_OneQueryPerInconsistencyTargetingFirstProvider(t *testing.T) {
	r := sar.NewRefiner()
	incs := []domain.Inconsistency{
		{InfoType: domain.InfoEmployment, Category: "EMPLOYMENT_GAP_HIDDEN", FactB: domain.Fact{Type: "title", Value: "VP"}},
		{InfoType: domain.InfoEmployment, Category: "DATE_MINOR", FactB: domain.Fact{Type: "dates", Value: "2021"}},
	}
	providers := []sar.ProviderCapability{{ProviderID: "p1"}, {ProviderID: "p2"}}

	queries := r.Refine(domain.InfoEmployment, 2, incs, providers, "employment")

	assert.Len(t, queries, 2)
	for _, q := range queries {
		assert.Equal(t, domain.QueryRefinement, q.QueryType)
		assert.Equal(t, "p1", q.ProviderID)
	}
}
