package entityresolution_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/entityresolution"
)

type fakeStore struct {
	entity *domain.Entity
	err    error
}

func (f fakeStore) FindByIdentifier(ctx context.Context, t domain.IdentifierType, value string) (*domain.Entity, error) {
	return f.entity, f.err
}
func (f fakeStore) FuzzyCandidates(ctx context.Context, tenantID *uuid.UUID) ([]entityresolution.Candidate, error) {
	return nil, nil
}

func TestExactMatch_HitReturnsEntityAndTrue(t *testing.T) {
	entity := &domain.Entity{ID: domain.NewID()}
	store := fakeStore{entity: entity}

	got, ok, err := entityresolution.ExactMatch(context.Background(), store, domain.IdentifierSSN, "123-45-6789")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entity, got)
}

func TestExactMatch_MissReturnsFalseWithoutError(t *testing.T) {
	store := fakeStore{}

	got, ok, err := entityresolution.ExactMatch(context.Background(), store, domain.IdentifierSSN, "000-00-0000")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestExactMatch_StoreErrorPropagates(t *testing.T) {
	store := fakeStore{err: errors.New("lookup failed")}

	_, _, err := entityresolution.ExactMatch(context.Background(), store, domain.IdentifierSSN, "x")

	assert.Error(t, err)
}
