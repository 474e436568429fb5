package sar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/sar"
)

func TestScore_NonFoundationTypeUsesBaseThreshold(t *testing.T) {
	facts := []domain.Fact{
		{Type: "employer", Value: "Acme", SourceProvider: "p1", Confidence: 1.0},
		{Type: "employer", Value: "Acme", SourceProvider: "p2", Confidence: 1.0},
		{Type: "title", Value: "Engineer", SourceProvider: "p1", Confidence: 1.0},
	}

	score := sar.Score(sar.ConfidenceInput{InfoType: domain.InfoEmployment, Facts: facts, SuccessRate: 1.0}, 0.80)

	assert.InDelta(t, 0.80, score.Threshold, 1e-9)
	assert.True(t, score.Met)
}

func TestScore_FoundationTypeGetsWeightBoostAndRaisedThreshold(t *testing.T) {
	facts := []domain.Fact{
		{Type: "full_name", Value: "Jane Doe", SourceProvider: "p1", Confidence: 0.9},
	}

	score := sar.Score(sar.ConfidenceInput{InfoType: domain.InfoIdentity, Facts: facts, SuccessRate: 0.5}, 0.80)

	assert.InDelta(t, 0.85, score.Threshold, 1e-9)
}

func TestScore_CompositeNeverExceedsOneEvenAfterFoundationMultiplier(t *testing.T) {
	facts := make([]domain.Fact, 0, 10)
	for i := 0; i < 10; i++ {
		facts = append(facts, domain.Fact{Type: "full_name", Value: "v", SourceProvider: "p", Confidence: 1.0, Corroborated: true})
	}

	score := sar.Score(sar.ConfidenceInput{InfoType: domain.InfoIdentity, Facts: facts, SuccessRate: 1.0}, 0.80)

	assert.LessOrEqual(t, score.Composite, 1.0)
}

func TestScore_CorroborationIsFractionOfFactTypeGroupsNotIndividualFacts(t *testing.T) {
	var facts []domain.Fact
	for i := 0; i < 5; i++ {
		facts = append(facts, domain.Fact{Type: "felony", Value: "v", SourceProvider: "p1", Confidence: 1.0})
		facts = append(facts, domain.Fact{Type: "felony", Value: "v", SourceProvider: "p2", Confidence: 1.0})
	}
	facts = append(facts,
		domain.Fact{Type: "misdemeanor", Value: "v", SourceProvider: "p1", Confidence: 1.0},
		domain.Fact{Type: "civil", Value: "v", SourceProvider: "p1", Confidence: 1.0},
		domain.Fact{Type: "traffic", Value: "v", SourceProvider: "p1", Confidence: 1.0},
	)

	score := sar.Score(sar.ConfidenceInput{InfoType: domain.InfoCriminal, Facts: facts, SuccessRate: 1.0}, 0.80)

	// 1 of 4 distinct fact-type groups (felony) has >= 2 distinct source
	// providers; the other 9 individually-corroborated-looking copies of
	// "felony" must not inflate this beyond the group-level fraction.
	assert.InDelta(t, 0.25, score.Corroboration, 1e-9)
}

func TestScore_SourceDiversityDividesByThreeNotFactCount(t *testing.T) {
	facts := []domain.Fact{
		{Type: "employer", Value: "v", SourceProvider: "p1", Confidence: 1.0},
		{Type: "title", Value: "v", SourceProvider: "p2", Confidence: 1.0},
	}

	score := sar.Score(sar.ConfidenceInput{InfoType: domain.InfoEmployment, Facts: facts, SuccessRate: 1.0}, 0.80)

	assert.InDelta(t, 2.0/3.0, score.SourceDiversity, 1e-9)
}

func TestScore_NoFactsYieldsZeroedFactorsAndUnmetThreshold(t *testing.T) {
	score := sar.Score(sar.ConfidenceInput{InfoType: domain.InfoCriminal, Facts: nil, SuccessRate: 0}, 0.80)

	assert.Equal(t, 0.0, score.Completeness)
	assert.Equal(t, 0.0, score.Corroboration)
	assert.Equal(t, 0.0, score.FactConfidence)
	assert.Equal(t, 0.0, score.SourceDiversity)
	assert.False(t, score.Met)
}
