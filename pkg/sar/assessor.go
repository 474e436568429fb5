package sar

import (
	"fmt"

	"github.com/veriscope/screening/pkg/domain"
)

// AssessResult is the Assessor's output for one iteration (spec §4.5).
type AssessResult struct {
	Facts             []domain.Fact
	Inconsistencies   []domain.Inconsistency
	Gaps              []domain.Gap
	DiscoveredEntities []domain.DiscoveredEntity
}

// expectedFactCategories lists the fact categories the Assessor checks for
// when reporting gaps, per-type (spec §4.5 Expected-fact counts).
var expectedFactCategories = map[domain.InformationType][]string{
	domain.InfoIdentity:   {"full_name", "dob", "ssn_last4", "address", "aliases"},
	domain.InfoEmployment: {"employer", "title", "dates"},
	domain.InfoEducation:  {"institution", "degree", "dates"},
}

// Assessor consumes the Executor's results for one type/iteration and
// extracts Facts, Inconsistencies, Gaps, and DiscoveredEntities (spec
// §4.5).
type Assessor struct{}

func NewAssessor() *Assessor { return &Assessor{} }

func (a *Assessor) Assess(t domain.InformationType, iteration int, results []domain.QueryResult, kb *domain.KnowledgeBase) AssessResult {
	var out AssessResult

	for _, r := range results {
		if r.Status != domain.StatusSuccess {
			continue
		}
		for factType, raw := range r.NormalizedData {
			value, provenance := flattenFact(raw)
			fact := domain.Fact{
				Type:           factType,
				Value:          value,
				SourceProvider: provenance,
				Confidence:     0.8,
				Iteration:      iteration,
			}
			if conflict, ok := a.detectInconsistency(t, fact, kb); ok {
				out.Inconsistencies = append(out.Inconsistencies, conflict)
			}
			out.Facts = append(out.Facts, fact)

			if t == domain.InfoNetworkD2 || t == domain.InfoNetworkD3 {
				if factType == "associate" {
					out.DiscoveredEntities = append(out.DiscoveredEntities, domain.DiscoveredEntity{
						Name:       value,
						Relation:   "ASSOCIATE",
						Confidence: fact.Confidence,
					})
				}
			}
		}
	}

	out.Facts = corroborate(out.Facts, kb.Facts(t))
	out.Gaps = a.findGaps(t, kb)

	return out
}

// detectInconsistency compares a new fact against the existing KB for the
// type and flags conflicts by category (spec §4.5 examples: DATE_MINOR,
// EMPLOYMENT_GAP_HIDDEN, CREDENTIAL_INFLATION).
func (a *Assessor) detectInconsistency(t domain.InformationType, fact domain.Fact, kb *domain.KnowledgeBase) (domain.Inconsistency, bool) {
	for _, existing := range kb.Facts(t) {
		if existing.Type != fact.Type || existing.Value == fact.Value {
			continue
		}

		category := "CONFLICT"
		switch fact.Type {
		case "dob", "dates":
			category = "DATE_MINOR"
		case "employer", "title":
			category = "EMPLOYMENT_GAP_HIDDEN"
		case "degree":
			category = "CREDENTIAL_INFLATION"
		}

		return domain.Inconsistency{
			InfoType:    t,
			Category:    category,
			Description: fmt.Sprintf("%s mismatch: %q vs %q", fact.Type, existing.Value, fact.Value),
			FactA:       existing,
			FactB:       fact,
		}, true
	}
	return domain.Inconsistency{}, false
}

func (a *Assessor) findGaps(t domain.InformationType, kb *domain.KnowledgeBase) []domain.Gap {
	expected, ok := expectedFactCategories[t]
	if !ok {
		return nil
	}

	present := make(map[string]struct{})
	for _, f := range kb.Facts(t) {
		present[f.Type] = struct{}{}
	}

	var gaps []domain.Gap
	for _, category := range expected {
		if _, ok := present[category]; !ok {
			gaps = append(gaps, domain.Gap{InfoType: t, FactCategory: category, Reason: "not yet observed"})
		}
	}
	return gaps
}

// corroborate marks a fact as corroborated when at least one other fact
// (new or existing) shares its type/value but came from a different
// provider (spec §4.5 Corroboration factor).
func corroborate(newFacts []domain.Fact, existing []domain.Fact) []domain.Fact {
	all := append(append([]domain.Fact{}, existing...), newFacts...)
	for i := range newFacts {
		for _, other := range all {
			if other.SourceProvider != newFacts[i].SourceProvider &&
				other.Type == newFacts[i].Type && other.Value == newFacts[i].Value {
				newFacts[i].Corroborated = true
				break
			}
		}
	}
	return newFacts
}

func flattenFact(v any) (value, provenance string) {
	switch t := v.(type) {
	case string:
		return t, "provider"
	case map[string]any:
		val, _ := t["value"].(string)
		prov, _ := t["source"].(string)
		if prov == "" {
			prov = "provider"
		}
		return val, prov
	default:
		return fmt.Sprintf("%v", v), "provider"
	}
}
