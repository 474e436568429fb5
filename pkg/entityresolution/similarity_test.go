package entityresolution_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/entityresolution"
)

func TestResolve_ExactNameAndDOBMatchIsHighCombinedScore(t *testing.T) {
	dob := time.Date(1980, 1, 2, 0, 0, 0, 0, time.UTC)
	subject := domain.SubjectIdentifiers{FullName: "John Smith", DOB: dob, Addresses: []string{"123 Main St"}}
	candidates := []entityresolution.Candidate{
		{EntityID: uuid.New(), FullName: "John Smith", DOB: dob, Addresses: []string{"123 Main St"}},
	}

	decision, _, score := entityresolution.Resolve(subject, candidates, domain.TierStandard)

	assert.Equal(t, entityresolution.DecisionMatchExisting, decision)
	assert.Greater(t, score.Combined, 0.85)
}

func TestResolve_NoCandidatesCreatesNew(t *testing.T) {
	decision, best, _ := entityresolution.Resolve(domain.SubjectIdentifiers{FullName: "Jane Doe"}, nil, domain.TierStandard)

	assert.Equal(t, entityresolution.DecisionCreateNew, decision)
	assert.Nil(t, best)
}

func TestResolve_EnhancedTierMidRangeScoreIsPendingReview(t *testing.T) {
	// Same DOB, similar name, no address: 0.40*JW(0.917) + 0.35 ≈ 0.717,
	// inside the Enhanced tier's [0.70, 0.85) review band.
	dob := time.Date(1980, 1, 2, 0, 0, 0, 0, time.UTC)
	subject := domain.SubjectIdentifiers{FullName: "Jon Smyth", DOB: dob}
	candidates := []entityresolution.Candidate{
		{EntityID: uuid.New(), FullName: "John Smith", DOB: dob},
	}

	decision, _, _ := entityresolution.Resolve(subject, candidates, domain.TierEnhanced)

	assert.Equal(t, entityresolution.DecisionPendingReview, decision)
}

func TestResolve_StandardTierHasNoPendingReviewBand(t *testing.T) {
	subject := domain.SubjectIdentifiers{FullName: "Completely Different Name"}
	candidates := []entityresolution.Candidate{
		{EntityID: uuid.New(), FullName: "John Smith"},
	}

	decision, _, _ := entityresolution.Resolve(subject, candidates, domain.TierStandard)

	assert.NotEqual(t, entityresolution.DecisionPendingReview, decision)
}

func TestResolve_BestOfMultipleCandidatesWins(t *testing.T) {
	dob := time.Date(1980, 1, 2, 0, 0, 0, 0, time.UTC)
	subject := domain.SubjectIdentifiers{FullName: "John Smith", DOB: dob, Addresses: []string{"123 Main St"}}
	candidates := []entityresolution.Candidate{
		{EntityID: uuid.New(), FullName: "Someone Else"},
		{EntityID: uuid.New(), FullName: "John Smith", DOB: dob, Addresses: []string{"123 Main St"}},
	}

	decision, best, _ := entityresolution.Resolve(subject, candidates, domain.TierStandard)

	assert.Equal(t, entityresolution.DecisionMatchExisting, decision)
	assert.Equal(t, "John Smith", best.FullName)
}
