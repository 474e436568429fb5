package risk

import (
	"time"

	"github.com/veriscope/screening/pkg/domain"
)

// categoryWeights weight each category's contribution to the overall score
// (spec §4.6).
var categoryWeights = map[domain.Category]float64{
	domain.CategoryCriminal:     1.5,
	domain.CategoryRegulatory:   1.3,
	domain.CategoryVerification: 1.2,
	domain.CategoryNetwork:      0.9,
	domain.CategoryReputation:   0.8,
	domain.CategoryFinancial:    1.0,
	domain.CategoryBehavioral:   1.0,
}

const defaultCategoryWeight = 1.0

// Level is the overall risk band (spec §4.6).
type Level string

const (
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Recommendation is the scorer's final disposition (spec §4.6).
type Recommendation string

const (
	RecommendProceed             Recommendation = "PROCEED"
	RecommendProceedWithCaution  Recommendation = "PROCEED_WITH_CAUTION"
	RecommendReviewRequired      Recommendation = "REVIEW_REQUIRED"
	RecommendDoNotProceed        Recommendation = "DO_NOT_PROCEED"
)

// ScoredFinding pairs a finding with its computed finding_score and the
// inputs that produced it, for audit purposes.
type ScoredFinding struct {
	Finding       domain.Finding
	RecencyFactor float64
	Score         float64
}

// CategoryScore is one category's aggregated score (spec §4.6:
// min(100, sum(finding_score))).
type CategoryScore struct {
	Category domain.Category
	Score    float64
	Findings []ScoredFinding
}

// RiskResult is the Risk Scorer's full output for one screening.
type RiskResult struct {
	CategoryScores map[domain.Category]CategoryScore
	Overall        float64
	Level          Level
	Recommendation Recommendation
}

// Scorer computes per-finding, per-category, and overall risk scores (spec
// §4.6).
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// FindingInput bundles a finding with the severity decision and
// classification that produced its final severity and role relevance.
type FindingInput struct {
	Finding        domain.Finding
	FinalSeverity  domain.Severity
	RoleRelevance  float64
}

// Score computes finding_score = base_severity × recency_factor ×
// confidence × corroboration × relevance per finding, aggregates per
// category capped at 100, then an overall weighted mean (spec §4.6).
func (s *Scorer) Score(inputs []FindingInput) RiskResult {
	byCategory := make(map[domain.Category]*CategoryScore)

	for _, in := range inputs {
		recency := recencyFactor(in.Finding.DiscoveredAt)
		corroboration := 1.0
		if in.Finding.Corroborated {
			corroboration = 1.2
		}

		score := in.FinalSeverity.BaseScore() * recency * in.Finding.Confidence * corroboration * in.RoleRelevance

		cat := in.Finding.Category
		cs, ok := byCategory[cat]
		if !ok {
			cs = &CategoryScore{Category: cat}
			byCategory[cat] = cs
		}
		cs.Findings = append(cs.Findings, ScoredFinding{Finding: in.Finding, RecencyFactor: recency, Score: score})
		cs.Score += score
	}

	result := RiskResult{CategoryScores: make(map[domain.Category]CategoryScore, len(byCategory))}

	// Overall is the mean of each populated category's own weighted score
	// (spec §4.6/§8 Scenario 2): a category's weight scales its contribution
	// to the overall score directly, it does not merely break ties among
	// categories the way dividing by the sum of weights would. A single
	// CRIMINAL finding scoring 60.75 at weight 1.5 must reach 91.125
	// overall, not collapse back to 60.75.
	var weightedSum float64
	var populated int
	for cat, cs := range byCategory {
		if cs.Score > 100 {
			cs.Score = 100
		}
		result.CategoryScores[cat] = *cs

		weightedSum += cs.Score * categoryWeight(cat)
		populated++
	}

	if populated > 0 {
		result.Overall = weightedSum / float64(populated)
		if result.Overall > 100 {
			result.Overall = 100
		}
	}

	result.Level = levelFor(result.Overall)
	result.Recommendation = recommendationFor(result.Level)
	return result
}

// recencyFactor implements the spec §4.6 lookup table: 1.0 (≤1y), 0.9
// (1-3y), 0.7 (3-7y), 0.5 (>7y), 0.8 (unknown/zero).
func recencyFactor(discoveredAt time.Time) float64 {
	if discoveredAt.IsZero() {
		return 0.8
	}
	age := time.Since(discoveredAt)
	year := 365 * 24 * time.Hour
	switch {
	case age <= year:
		return 1.0
	case age <= 3*year:
		return 0.9
	case age <= 7*year:
		return 0.7
	default:
		return 0.5
	}
}

func categoryWeight(cat domain.Category) float64 {
	if w, ok := categoryWeights[cat]; ok {
		return w
	}
	return defaultCategoryWeight
}

func levelFor(overall float64) Level {
	switch {
	case overall <= 25:
		return LevelLow
	case overall <= 50:
		return LevelModerate
	case overall <= 75:
		return LevelHigh
	default:
		return LevelCritical
	}
}

func recommendationFor(level Level) Recommendation {
	switch level {
	case LevelLow:
		return RecommendProceed
	case LevelModerate:
		return RecommendProceedWithCaution
	case LevelHigh:
		return RecommendReviewRequired
	default:
		return RecommendDoNotProceed
	}
}
