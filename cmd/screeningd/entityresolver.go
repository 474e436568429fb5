package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veriscope/screening/internal/crypto"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/entityresolution"
	"github.com/veriscope/screening/pkg/store"
)

// entityResolverAdapter wires pkg/store.EntityStore into both
// entityresolution.Store (the scoring package's persistence seam) and
// screening.EntityResolver (the orchestrator's seam), sealing identifiers
// through a Vault before they ever reach storage.
type entityResolverAdapter struct {
	entities store.EntityStore
	vault    *crypto.Vault
}

func newEntityResolverAdapter(entities store.EntityStore, vault *crypto.Vault) *entityResolverAdapter {
	return &entityResolverAdapter{entities: entities, vault: vault}
}

// FindByIdentifier seals value and looks it up as a canonical identifier.
func (a *entityResolverAdapter) FindByIdentifier(ctx context.Context, t domain.IdentifierType, value string) (*domain.Entity, error) {
	sealed, err := a.vault.SealString(value)
	if err != nil {
		return nil, fmt.Errorf("entityresolver: seal identifier: %w", err)
	}
	return a.entities.FindByCanonicalIdentifier(ctx, t, sealed)
}

// FuzzyCandidates has no backing index in pkg/store.EntityStore (it has no
// list-all-entities operation), so it always returns no candidates; only
// exact-identifier matching is wired at this entrypoint. A dedicated
// candidate index is the natural next step if fuzzy matching needs to be
// exercised end to end.
func (a *entityResolverAdapter) FuzzyCandidates(ctx context.Context, tenantID *uuid.UUID) ([]entityresolution.Candidate, error) {
	return nil, nil
}

// Resolve implements screening.EntityResolver: exact SSN match first, then
// fuzzy scoring over FuzzyCandidates (empty here), creating a new entity on
// CREATE_NEW and surfacing PENDING_REVIEW as an error so the caller queues a
// manual review instead of screening an unresolved subject (spec §4.2).
func (a *entityResolverAdapter) Resolve(ctx context.Context, tenantID uuid.UUID, subject domain.SubjectIdentifiers, tier domain.ServiceTier) (uuid.UUID, entityresolution.Decision, error) {
	if subject.SSN != "" {
		if entity, ok, err := entityresolution.ExactMatch(ctx, a, domain.IdentifierSSN, subject.SSN); err != nil {
			return uuid.Nil, "", fmt.Errorf("entityresolver: exact match: %w", err)
		} else if ok {
			return entity.ID, entityresolution.DecisionMatchExisting, nil
		}
	}

	candidates, err := a.FuzzyCandidates(ctx, &tenantID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("entityresolver: fuzzy candidates: %w", err)
	}

	decision, match, _ := entityresolution.Resolve(subject, candidates, tier)
	switch decision {
	case entityresolution.DecisionMatchExisting:
		return match.EntityID, decision, nil
	case entityresolution.DecisionPendingReview:
		return uuid.Nil, decision, fmt.Errorf("entityresolver: subject requires manual review before screening")
	default:
		entityID, err := a.createEntity(ctx, tenantID, subject)
		if err != nil {
			return uuid.Nil, "", err
		}
		return entityID, entityresolution.DecisionCreateNew, nil
	}
}

func (a *entityResolverAdapter) createEntity(ctx context.Context, tenantID uuid.UUID, subject domain.SubjectIdentifiers) (uuid.UUID, error) {
	entityID := domain.NewID()
	identifiers := map[string]string{}
	if subject.SSN != "" {
		sealed, err := a.vault.SealString(subject.SSN)
		if err != nil {
			return uuid.Nil, fmt.Errorf("entityresolver: seal SSN: %w", err)
		}
		identifiers[string(domain.IdentifierSSN)] = sealed
	}

	entity := domain.Entity{
		ID:                   entityID,
		Type:                 domain.EntityPerson,
		TenantID:             &tenantID,
		DataOrigin:           domain.DataOriginCustomerProvided,
		CanonicalIdentifiers: identifiers,
		CreatedAt:            time.Now(),
	}
	if err := a.entities.CreateEntity(ctx, entity); err != nil {
		return uuid.Nil, fmt.Errorf("entityresolver: create entity: %w", err)
	}
	return entityID, nil
}
