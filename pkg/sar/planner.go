// Package sar implements the Search-Assess-Refine investigation loop: one
// independent sub-cycle per InformationType (Planner -> Executor ->
// Assessor -> Refiner/Controller), composed by ordered Phase Handlers
// (spec §4.5).
package sar

import (
	"github.com/veriscope/screening/pkg/compliance"
	"github.com/veriscope/screening/pkg/domain"
)

// PlanResult is the Planner's output for one type at one iteration.
type PlanResult struct {
	Queries          []domain.SearchQuery
	EnrichmentSources []string
	SkippedReason    string
}

// ProviderCapability is the subset of provider registry info the planner
// needs to avoid importing the provider package directly (SAR stays
// provider-agnostic; routing happens in the Executor).
type ProviderCapability struct {
	ProviderID string
	CheckTypes []string
}

// Planner generates SearchQueries for a type at a given iteration (spec
// §4.5).
type Planner struct {
	compliance *compliance.Engine
}

func NewPlanner(engine *compliance.Engine) *Planner {
	return &Planner{compliance: engine}
}

// Plan produces queries for iteration i over type t. i==1 emits INITIAL
// queries, one per capable+permitted provider per check type. i>1 emits
// ENRICHED queries (parameters drawn from other completed types' facts)
// plus GAP_FILL queries targeting the Assessor's reported gaps.
func (p *Planner) Plan(t domain.InformationType, iteration int, kb *domain.KnowledgeBase, providers []ProviderCapability, locale compliance.Locale, role domain.RoleCategory, tier domain.ServiceTier, checkType string, gaps []domain.Gap) PlanResult {
	decision := p.compliance.Evaluate(locale, checkType, role, tier)
	if !decision.Permitted {
		return PlanResult{SkippedReason: decision.BlockReason}
	}

	if iteration == 1 {
		return p.planInitial(t, providers, checkType)
	}
	return p.planEnriched(t, iteration, kb, providers, checkType, gaps)
}

func (p *Planner) planInitial(t domain.InformationType, providers []ProviderCapability, checkType string) PlanResult {
	seen := make(map[string]struct{})
	var queries []domain.SearchQuery
	for _, prov := range providers {
		if !hasCheckType(prov.CheckTypes, checkType) {
			continue
		}
		dedupKey := prov.ProviderID + ":" + checkType
		if _, ok := seen[dedupKey]; ok {
			continue
		}
		seen[dedupKey] = struct{}{}
		queries = append(queries, domain.SearchQuery{
			ID:         domain.NewID(),
			InfoType:   t,
			QueryType:  domain.QueryInitial,
			ProviderID: prov.ProviderID,
			CheckType:  checkType,
			Priority:   1,
		})
	}
	return PlanResult{Queries: queries}
}

func (p *Planner) planEnriched(t domain.InformationType, iteration int, kb *domain.KnowledgeBase, providers []ProviderCapability, checkType string, gaps []domain.Gap) PlanResult {
	enrichParams := enrichmentParams(t, kb)
	var sources []string
	for k := range enrichParams {
		sources = append(sources, k)
	}

	var queries []domain.SearchQuery
	for _, prov := range providers {
		if !hasCheckType(prov.CheckTypes, checkType) {
			continue
		}
		queries = append(queries, domain.SearchQuery{
			ID:         domain.NewID(),
			InfoType:   t,
			QueryType:  domain.QueryEnriched,
			ProviderID: prov.ProviderID,
			CheckType:  checkType,
			Params:     enrichParams,
			Priority:   2,
		})
	}

	for _, gap := range gaps {
		if gap.InfoType != t {
			continue
		}
		if len(providers) == 0 {
			continue
		}
		queries = append(queries, domain.SearchQuery{
			ID:         domain.NewID(),
			InfoType:   t,
			QueryType:  domain.QueryGapFill,
			ProviderID: providers[0].ProviderID,
			CheckType:  checkType,
			Params:     map[string]string{"gap_category": gap.FactCategory},
			Priority:   3,
		})
	}

	return PlanResult{Queries: queries, EnrichmentSources: sources}
}

// enrichmentParams pulls cross-type facts relevant to t (spec §4.5 examples:
// Criminal gains counties from Identity's address facts, AdverseMedia gains
// all known entities and locations, Network gains discovered associates).
func enrichmentParams(t domain.InformationType, kb *domain.KnowledgeBase) map[string]string {
	params := make(map[string]string)

	switch t {
	case domain.InfoCriminal, domain.InfoCivil:
		for _, f := range kb.Facts(domain.InfoIdentity) {
			if f.Type == "address" || f.Type == "county" {
				params["county"] = f.Value
			}
		}
	case domain.InfoAdverseMedia:
		var names []string
		for infoType, facts := range kb.AllFacts() {
			_ = infoType
			for _, f := range facts {
				if f.Type == "name" || f.Type == "alias" || f.Type == "employer" {
					names = append(names, f.Value)
				}
			}
		}
		if len(names) > 0 {
			params["entities"] = joinUnique(names)
		}
	case domain.InfoNetworkD2, domain.InfoNetworkD3:
		var associates []string
		for _, f := range kb.Facts(domain.InfoNetworkD2) {
			if f.Type == "associate" {
				associates = append(associates, f.Value)
			}
		}
		if len(associates) > 0 {
			params["associates"] = joinUnique(associates)
		}
	}

	return params
}

func hasCheckType(checkTypes []string, target string) bool {
	for _, c := range checkTypes {
		if c == target {
			return true
		}
	}
	return false
}

func joinUnique(vals []string) string {
	seen := make(map[string]struct{}, len(vals))
	var out []string
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	result := ""
	for i, v := range out {
		if i > 0 {
			result += ","
		}
		result += v
	}
	return result
}
