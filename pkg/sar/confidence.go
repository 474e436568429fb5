package sar

import "github.com/veriscope/screening/pkg/domain"

// Confidence factor weights (spec §4.5).
const (
	weightCompleteness   = 0.30
	weightCorroboration  = 0.25
	weightQuerySuccess   = 0.20
	weightFactConfidence = 0.15
	weightSourceDiversity = 0.10

	foundationThresholdBonus = 0.05
	foundationWeightMultiplier = 1.5
)

// ConfidenceInput carries the per-type signals the composite scorer needs.
type ConfidenceInput struct {
	InfoType    domain.InformationType
	Facts       []domain.Fact
	SuccessRate float64
}

// ConfidenceScore is the breakdown behind one type's composite score, kept
// around for audit/debugging rather than collapsed to a single float.
type ConfidenceScore struct {
	Completeness    float64
	Corroboration   float64
	QuerySuccess    float64
	FactConfidence  float64
	SourceDiversity float64
	Composite       float64
	Threshold       float64
	Met             bool
}

// Score computes the weighted composite confidence for one InformationType
// at its current iteration (spec §4.5). Foundation types carry 1.5x weight
// on the composite and use a raised threshold.
func Score(in ConfidenceInput, baseThreshold float64) ConfidenceScore {
	completeness := completenessFactor(in.InfoType, in.Facts)
	corroboration := corroborationFactor(in.Facts)
	factConfidence := avgFactConfidence(in.Facts)
	diversity := sourceDiversityFactor(in.Facts)

	composite := weightCompleteness*completeness +
		weightCorroboration*corroboration +
		weightQuerySuccess*in.SuccessRate +
		weightFactConfidence*factConfidence +
		weightSourceDiversity*diversity

	threshold := baseThreshold
	if in.InfoType.IsFoundation() {
		composite *= foundationWeightMultiplier
		if composite > 1 {
			composite = 1
		}
		threshold += foundationThresholdBonus
	}

	return ConfidenceScore{
		Completeness:    completeness,
		Corroboration:   corroboration,
		QuerySuccess:    in.SuccessRate,
		FactConfidence:  factConfidence,
		SourceDiversity: diversity,
		Composite:       composite,
		Threshold:       threshold,
		Met:             composite >= threshold,
	}
}

func completenessFactor(t domain.InformationType, facts []domain.Fact) float64 {
	expected := t.ExpectedFactCount()
	if expected <= 0 {
		return 1
	}
	ratio := float64(len(facts)) / float64(expected)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// corroborationFactor is the fraction of distinct fact-type groups backed by
// at least two distinct source providers (spec §4.5): ten facts of the same
// type from a single provider corroborate nothing, but one fact type
// confirmed by two providers out of four total types scores 0.25.
func corroborationFactor(facts []domain.Fact) float64 {
	groups := make(map[string]map[string]struct{})
	for _, f := range facts {
		providers, ok := groups[f.Type]
		if !ok {
			providers = make(map[string]struct{})
			groups[f.Type] = providers
		}
		providers[f.SourceProvider] = struct{}{}
	}
	if len(groups) == 0 {
		return 0
	}

	corroborated := 0
	for _, providers := range groups {
		if len(providers) >= 2 {
			corroborated++
		}
	}
	return float64(corroborated) / float64(len(groups))
}

func avgFactConfidence(facts []domain.Fact) float64 {
	if len(facts) == 0 {
		return 0
	}
	var sum float64
	for _, f := range facts {
		sum += f.Confidence
	}
	return sum / float64(len(facts))
}

// sourceDiversityDivisor is the distinct-provider count that saturates the
// diversity factor to 1 (spec §4.5): three or more distinct providers is
// fully diverse regardless of how many facts were gathered.
const sourceDiversityDivisor = 3

func sourceDiversityFactor(facts []domain.Fact) float64 {
	if len(facts) == 0 {
		return 0
	}
	seen := make(map[string]struct{})
	for _, f := range facts {
		seen[f.SourceProvider] = struct{}{}
	}
	diversity := float64(len(seen)) / float64(sourceDiversityDivisor)
	if diversity > 1 {
		diversity = 1
	}
	return diversity
}
