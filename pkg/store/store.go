// Package store implements the persistence contract described in spec.md
// §6: Postgres-backed TenantStore and EntityStore, an embeddable
// SQLite-backed checkpoint store, and in-memory implementations (entities,
// cost, cache, monitoring subjects). Cost, cache and monitoring subjects
// have no database-backed implementation. It also carries the in-memory
// hash-chained append-only audit store, adapted from the teacher's
// pkg/store/audit_store.go.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
)

// ErrNotFound is returned by a lookup that finds no matching row, mirroring
// the teacher's store.ErrEntryNotFound.
var ErrNotFound = errors.New("store: not found")

// TenantStore persists Tenants (spec §3).
type TenantStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	Create(ctx context.Context, t domain.Tenant) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// EntityStore persists Entities, Identifiers, EntityRelations, and
// EntityProfiles (spec §3, §4.2).
type EntityStore interface {
	GetEntity(ctx context.Context, id uuid.UUID) (*domain.Entity, error)
	FindByCanonicalIdentifier(ctx context.Context, idType domain.IdentifierType, encryptedValue string) (*domain.Entity, error)
	CreateEntity(ctx context.Context, e domain.Entity) error
	MarkSuperseded(ctx context.Context, entityID, supersededBy uuid.UUID) error

	AppendIdentifier(ctx context.Context, id domain.Identifier) error
	Identifiers(ctx context.Context, entityID uuid.UUID) ([]domain.Identifier, error)

	AppendRelation(ctx context.Context, r domain.EntityRelation) error
	Relations(ctx context.Context, entityID uuid.UUID) ([]domain.EntityRelation, error)

	AppendProfile(ctx context.Context, p domain.EntityProfile) error
	LatestProfile(ctx context.Context, entityID uuid.UUID) (*domain.EntityProfile, error)
}
