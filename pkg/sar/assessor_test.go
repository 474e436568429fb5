package sar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/sar"
)

func TestAssessor_ExtractsFactsFromSuccessfulResultsOnly(t *testing.T) {
	a := sar.NewAssessor()
	kb := domain.NewKnowledgeBase()
	results := []domain.QueryResult{
		{Status: domain.StatusSuccess, NormalizedData: map[string]any{"employer": "Acme"}},
		{Status: domain.StatusFailed, NormalizedData: map[string]any{"employer": "Ignored Co"}},
	}

	out := a.Assess(domain.InfoEmployment, 1, results, kb)

	require.Len(t, out.Facts, 1)
	assert.Equal(t, "Acme", out.Facts[0].Value)
}

func TestAssessor_FlattensStructuredFactWithProvenance(t *testing.T) {
	a := sar.NewAssessor()
	kb := domain.NewKnowledgeBase()
	results := []domain.QueryResult{
		{Status: domain.StatusSuccess, NormalizedData: map[string]any{"employer": map[string]any{"value": "Acme", "source": "clearbit"}}},
	}

	out := a.Assess(domain.InfoEmployment, 1, results, kb)

	require.Len(t, out.Facts, 1)
	assert.Equal(t, "Acme", out.Facts[0].Value)
	assert.Equal(t, "clearbit", out.Facts[0].SourceProvider)
}

func TestAssessor_ConflictingValueForSameFactTypeIsFlaggedAsInconsistency(t *testing.T) {
	a := sar.NewAssessor()
	kb := domain.NewKnowledgeBase()
	kb.Add(domain.InfoEmployment, domain.Fact{Type: "title", Value: "Manager", SourceProvider: "p1"})
	results := []domain.QueryResult{
		{Status: domain.StatusSuccess, NormalizedData: map[string]any{"title": "Director"}},
	}

	out := a.Assess(domain.InfoEmployment, 2, results, kb)

	require.Len(t, out.Inconsistencies, 1)
	assert.Equal(t, "EMPLOYMENT_GAP_HIDDEN", out.Inconsistencies[0].Category)
}

func TestAssessor_CorroboratesFactSharedByDifferentProviders(t *testing.T) {
	a := sar.NewAssessor()
	kb := domain.NewKnowledgeBase()
	kb.Add(domain.InfoEmployment, domain.Fact{Type: "employer", Value: "Acme", SourceProvider: "p1"})
	results := []domain.QueryResult{
		{Status: domain.StatusSuccess, NormalizedData: map[string]any{"employer": map[string]any{"value": "Acme", "source": "p2"}}},
	}

	out := a.Assess(domain.InfoEmployment, 2, results, kb)

	require.Len(t, out.Facts, 1)
	assert.True(t, out.Facts[0].Corroborated)
}

func TestAssessor_NetworkAssociateFactYieldsDiscoveredEntity(t *testing.T) {
	a := sar.NewAssessor()
	kb := domain.NewKnowledgeBase()
	results := []domain.QueryResult{
		{Status: domain.StatusSuccess, NormalizedData: map[string]any{"associate": "John Smith"}},
	}

	out := a.Assess(domain.InfoNetworkD2, 1, results, kb)

	require.Len(t, out.DiscoveredEntities, 1)
	assert.Equal(t, "John Smith", out.DiscoveredEntities[0].Name)
	assert.Equal(t, "ASSOCIATE", out.DiscoveredEntities[0].Relation)
}

func TestAssessor_ReportsGapsForMissingExpectedFactCategories(t *testing.T) {
	a := sar.NewAssessor()
	kb := domain.NewKnowledgeBase()
	kb.Add(domain.InfoIdentity, domain.Fact{Type: "full_name", Value: "Jane Doe"})

	out := a.Assess(domain.InfoIdentity, 1, nil, kb)

	var categories []string
	for _, g := range out.Gaps {
		categories = append(categories, g.FactCategory)
	}
	assert.Contains(t, categories, "dob")
	assert.Contains(t, categories, "address")
	assert.NotContains(t, categories, "full_name")
}

func TestAssessor_TypeWithNoExpectedCategoriesReportsNoGaps(t *testing.T) {
	a := sar.NewAssessor()
	kb := domain.NewKnowledgeBase()

	out := a.Assess(domain.InfoCriminal, 1, nil, kb)

	assert.Empty(t, out.Gaps)
}
