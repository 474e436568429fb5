package screening_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/pkg/compliance"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/entityresolution"
	"github.com/veriscope/screening/pkg/screening"
)

type stubResolver struct {
	entityID uuid.UUID
	decision entityresolution.Decision
	err      error
}

func (s stubResolver) Resolve(ctx context.Context, tenantID uuid.UUID, subject domain.SubjectIdentifiers, tier domain.ServiceTier) (uuid.UUID, entityresolution.Decision, error) {
	return s.entityID, s.decision, s.err
}

func TestRun_FailsValidationOnEmptySubjectName(t *testing.T) {
	o := &screening.Orchestrator{}

	out, err := o.Run(context.Background(), screening.Request{})

	require.NoError(t, err)
	assert.Equal(t, screening.PhaseFailed, out.Status)
	require.Len(t, out.Phases, 1)
	assert.Equal(t, screening.PhaseValidation, out.Phases[0].Name)
}

func TestRun_FailsValidationWithoutResolver(t *testing.T) {
	o := &screening.Orchestrator{}

	out, err := o.Run(context.Background(), screening.Request{
		Subject: domain.SubjectIdentifiers{FullName: "Jane Doe"},
	})

	require.NoError(t, err)
	assert.Equal(t, screening.PhaseFailed, out.Status)
}

func TestRun_HaltsOnPendingReviewEntityResolution(t *testing.T) {
	o := &screening.Orchestrator{
		Resolver: stubResolver{decision: entityresolution.DecisionPendingReview},
	}

	out, err := o.Run(context.Background(), screening.Request{
		Subject: domain.SubjectIdentifiers{FullName: "Jane Doe"},
	})

	require.NoError(t, err)
	assert.Equal(t, screening.PhaseHalted, out.Status)
	require.Len(t, out.Phases, 1)
	assert.Equal(t, screening.PhaseHalted, out.Phases[0].Status)
}

func TestRun_HaltsWhenEveryCheckIsComplianceBlocked(t *testing.T) {
	engine := compliance.NewEngine(nil, nil)
	o := &screening.Orchestrator{
		Resolver:   stubResolver{entityID: uuid.New(), decision: entityresolution.DecisionMatchExisting},
		Compliance: engine,
	}

	out, err := o.Run(context.Background(), screening.Request{
		Subject:      domain.SubjectIdentifiers{FullName: "Jane Doe"},
		Tier:         domain.TierStandard,
		InfoTypes:    []domain.InformationType{domain.InfoFinancial},
		CheckTypeFor: map[domain.InformationType]string{domain.InfoFinancial: "credit"},
	})

	require.NoError(t, err)
	assert.Equal(t, screening.PhaseHalted, out.Status)
	require.Len(t, out.Phases, 2)
	assert.Equal(t, screening.PhaseCompliance, out.Phases[1].Name)
	assert.Equal(t, screening.PhaseHalted, out.Phases[1].Status)
}

func TestRun_WarnsButProceedsWhenSomeChecksBlocked(t *testing.T) {
	engine := compliance.NewEngine(nil, nil)
	o := &screening.Orchestrator{
		Resolver:   stubResolver{entityID: uuid.New(), decision: entityresolution.DecisionCreateNew},
		Compliance: engine,
	}

	out, err := o.Run(context.Background(), screening.Request{
		Subject:      domain.SubjectIdentifiers{FullName: "Jane Doe"},
		Tier:         domain.TierStandard,
		InfoTypes:    []domain.InformationType{domain.InfoFinancial, domain.InfoReconciliation},
		CheckTypeFor: map[domain.InformationType]string{domain.InfoFinancial: "credit", domain.InfoReconciliation: "reconciliation"},
	})

	require.NoError(t, err)
	assert.NotEqual(t, screening.PhaseFailed, out.Status)
	require.GreaterOrEqual(t, len(out.Phases), 2)
	assert.Equal(t, screening.PhaseWarned, out.Phases[1].Status)
}

func TestRun_FailsValidationWithStructuredDetailOnD3BelowEnhancedTier(t *testing.T) {
	engine := compliance.NewEngine(nil, nil)
	o := &screening.Orchestrator{
		Resolver:   stubResolver{entityID: uuid.New(), decision: entityresolution.DecisionMatchExisting},
		Compliance: engine,
	}

	out, err := o.Run(context.Background(), screening.Request{
		Subject:      domain.SubjectIdentifiers{FullName: "Jane Doe"},
		Tier:         domain.TierStandard,
		SearchDegree: domain.DegreeD3,
	})

	require.NoError(t, err)
	assert.Equal(t, screening.PhaseFailed, out.Status)
	require.Len(t, out.Phases, 1)
	assert.Equal(t, screening.PhaseValidation, out.Phases[0].Name)
	assert.Equal(t, "d3_requires_enhanced", out.Phases[0].Detail)
}

func TestRun_HaltsOnMissingConsentToken(t *testing.T) {
	engine := compliance.NewEngine(nil, nil)
	o := &screening.Orchestrator{
		Resolver:   stubResolver{entityID: uuid.New(), decision: entityresolution.DecisionMatchExisting},
		Compliance: engine,
	}

	out, err := o.Run(context.Background(), screening.Request{
		Subject:      domain.SubjectIdentifiers{FullName: "Jane Doe"},
		Tier:         domain.TierStandard,
		InfoTypes:    []domain.InformationType{domain.InfoCriminal},
		CheckTypeFor: map[domain.InformationType]string{domain.InfoCriminal: "criminal"},
		ConsentToken: "",
	})

	require.NoError(t, err)
	assert.Equal(t, screening.PhaseHalted, out.Status)
	require.Len(t, out.Phases, 3)
	assert.Equal(t, screening.PhaseConsent, out.Phases[2].Name)
	assert.Equal(t, screening.PhaseHalted, out.Phases[2].Status)
}
