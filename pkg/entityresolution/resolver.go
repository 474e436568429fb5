package entityresolution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veriscope/screening/pkg/domain"
)

// Fuzzy match weights (spec §4.2).
const (
	weightName    = 0.40
	weightDOB     = 0.35
	weightAddress = 0.25

	enhancedMatchThreshold  = 0.85
	enhancedReviewThreshold = 0.70
)

// Decision is the outcome of resolving a subject against the entity graph.
type Decision string

const (
	DecisionMatchExisting Decision = "MATCH_EXISTING"
	DecisionPendingReview Decision = "PENDING_REVIEW"
	DecisionCreateNew     Decision = "CREATE_NEW"
)

// Candidate is an existing entity considered during fuzzy matching, along
// with the plaintext fields needed to score it (callers decrypt identifiers
// before constructing a Candidate; this package never touches the vault).
type Candidate struct {
	EntityID  uuid.UUID
	FullName  string
	DOB       time.Time
	Addresses []string
}

// Store is the persistence seam entity resolution needs: identifier exact
// lookup and fuzzy candidate listing scoped to the caller's tenant/origin
// visibility rules.
type Store interface {
	FindByIdentifier(ctx context.Context, t domain.IdentifierType, value string) (*domain.Entity, error)
	FuzzyCandidates(ctx context.Context, tenantID *uuid.UUID) ([]Candidate, error)
}

// Score is the per-field and combined fuzzy match result.
type Score struct {
	NameScore    float64
	DOBScore     float64
	AddressScore float64
	Combined     float64
}

func scoreCandidate(subject domain.SubjectIdentifiers, cand Candidate) Score {
	s := Score{NameScore: jaroWinkler(subject.FullName, cand.FullName)}

	if !subject.DOB.IsZero() && !cand.DOB.IsZero() && subject.DOB.Equal(cand.DOB) {
		s.DOBScore = 1.0
	}

	best := 0.0
	for _, subjAddr := range subject.Addresses {
		for _, candAddr := range cand.Addresses {
			if v := tokenSortSimilarity(subjAddr, candAddr); v > best {
				best = v
			}
		}
	}
	s.AddressScore = best

	s.Combined = weightName*s.NameScore + weightDOB*s.DOBScore + weightAddress*s.AddressScore
	return s
}

// Resolve scores a subject against every fuzzy candidate and returns the
// best match's decision, per the tier-gated thresholds in spec §4.2.
func Resolve(subject domain.SubjectIdentifiers, candidates []Candidate, tier domain.ServiceTier) (Decision, *Candidate, Score) {
	var best *Candidate
	var bestScore Score

	for i := range candidates {
		sc := scoreCandidate(subject, candidates[i])
		if sc.Combined > bestScore.Combined {
			bestScore = sc
			best = &candidates[i]
		}
	}

	if best == nil {
		return DecisionCreateNew, nil, bestScore
	}

	switch tier {
	case domain.TierEnhanced:
		switch {
		case bestScore.Combined >= enhancedMatchThreshold:
			return DecisionMatchExisting, best, bestScore
		case bestScore.Combined >= enhancedReviewThreshold:
			return DecisionPendingReview, best, bestScore
		default:
			return DecisionCreateNew, nil, bestScore
		}
	default: // Standard
		if bestScore.Combined >= enhancedMatchThreshold {
			return DecisionMatchExisting, best, bestScore
		}
		return DecisionCreateNew, nil, bestScore
	}
}

// ExactMatch looks up an entity by a canonical identifier. Confidence is
// always 1.0 on hit (spec §4.2). A nil entity with nil error means no match.
func ExactMatch(ctx context.Context, store Store, t domain.IdentifierType, value string) (*domain.Entity, bool, error) {
	entity, err := store.FindByIdentifier(ctx, t, value)
	if err != nil {
		return nil, false, err
	}
	return entity, entity != nil, nil
}
