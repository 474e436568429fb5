package sar

import (
	"context"
	"strings"
	"time"

	"github.com/veriscope/screening/pkg/domain"
)

// AIAdapter is the optional model-assisted classification seam (spec §9
// Design Notes). A nil adapter means rule-only extraction; with an adapter
// wired, its label replaces the rule-based one only as revalidate allows.
type AIAdapter interface {
	Classify(ctx context.Context, text string) (category domain.Category, subCategory string, confidence float64, err error)
}

// minValidationConfidence is the floor an AI-proposed label must clear,
// with rule-derived keyword evidence present, to be kept (spec §4.5).
const minValidationConfidence = 0.7

// keywordRule maps a fact-value substring to a category/sub-category pair.
// This is intentionally a small seed set; pkg/risk's classifier carries the
// full 30+ sub-category table used for severity and scoring.
type keywordRule struct {
	keyword     string
	category    domain.Category
	subCategory string
}

var factKeywordRules = []keywordRule{
	{"felony", domain.CategoryCriminal, "CRIMINAL_FELONY"},
	{"misdemeanor", domain.CategoryCriminal, "CRIMINAL_MISDEMEANOR"},
	{"bankruptcy", domain.CategoryFinancial, "FINANCIAL_BANKRUPTCY"},
	{"lien", domain.CategoryFinancial, "FINANCIAL_LIEN"},
	{"sanction", domain.CategoryRegulatory, "REGULATORY_SANCTIONS"},
	{"pep", domain.CategoryRegulatory, "REGULATORY_PEP"},
	{"license revoked", domain.CategoryRegulatory, "REGULATORY_LICENSE_REVOKED"},
	{"lawsuit", domain.CategoryBehavioral, "BEHAVIORAL_CIVIL_LITIGATION"},
	{"adverse", domain.CategoryReputation, "REPUTATION_ADVERSE_MEDIA"},
}

// Extractor produces Findings from the accumulated KnowledgeBase fact set
// (spec §4.5).
type Extractor struct {
	ai AIAdapter
}

func NewExtractor(ai AIAdapter) *Extractor {
	return &Extractor{ai: ai}
}

// Extract walks every fact across every type and emits a Finding for each
// one that matches a keyword rule. Facts that match no rule produce no
// finding — absence of adverse language is not itself a finding.
func (e *Extractor) Extract(ctx context.Context, kb *domain.KnowledgeBase) []domain.Finding {
	var findings []domain.Finding

	for _, facts := range kb.AllFacts() {
		for _, f := range facts {
			rule, ok := matchKeyword(f.Value)
			if !ok {
				continue
			}

			finding := domain.Finding{
				ID:              domain.NewID(),
				Category:        rule.category,
				SubCategory:     rule.subCategory,
				Severity:        domain.SeverityMedium,
				Confidence:      f.Confidence,
				Corroborated:    f.Corroborated,
				Sources:         []string{f.SourceProvider},
				Summary:         f.Value,
				DiscoveredAt:    time.Now(),
			}

			if e.ai != nil {
				finding = e.revalidate(ctx, finding, f.Value)
			}

			findings = append(findings, finding)
		}
	}

	return findings
}

// revalidate lets the AI adapter propose a category/sub-category, keeping
// the proposal only when rule-derived keyword evidence is present with
// confidence at or above minValidationConfidence; otherwise the rule-based
// classification stands (spec §4.5).
func (e *Extractor) revalidate(ctx context.Context, finding domain.Finding, text string) domain.Finding {
	category, subCategory, confidence, err := e.ai.Classify(ctx, text)
	if err != nil {
		return finding
	}

	_, hasKeywordEvidence := matchKeyword(text)
	if !hasKeywordEvidence || confidence < minValidationConfidence {
		return finding
	}

	finding.Category = category
	finding.SubCategory = subCategory
	return finding
}

func matchKeyword(value string) (keywordRule, bool) {
	lower := strings.ToLower(value)
	for _, rule := range factKeywordRules {
		if strings.Contains(lower, rule.keyword) {
			return rule, true
		}
	}
	return keywordRule{}, false
}
