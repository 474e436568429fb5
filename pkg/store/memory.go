package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
)

// MemoryTenantStore is an in-memory TenantStore for tests and for tenants
// with no configured persistence (mirrors the teacher's
// budget.MemoryStorage simplicity).
type MemoryTenantStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]domain.Tenant
	bySlug  map[string]uuid.UUID
}

func NewMemoryTenantStore() *MemoryTenantStore {
	return &MemoryTenantStore{
		tenants: make(map[uuid.UUID]domain.Tenant),
		bySlug:  make(map[string]uuid.UUID),
	}
}

func (s *MemoryTenantStore) Get(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryTenantStore) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.bySlug[slug]
	if !ok {
		return nil, ErrNotFound
	}
	t := s.tenants[id]
	return &t, nil
}

func (s *MemoryTenantStore) Create(ctx context.Context, t domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	s.bySlug[t.Slug] = t.ID
	return nil
}

func (s *MemoryTenantStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return ErrNotFound
	}
	t.Active = false
	s.tenants[id] = t
	return nil
}

// MemoryEntityStore is an in-memory EntityStore for tests and small
// deployments.
type MemoryEntityStore struct {
	mu          sync.RWMutex
	entities    map[uuid.UUID]domain.Entity
	byIdentity  map[string]uuid.UUID // "type:value" -> entity id
	identifiers map[uuid.UUID][]domain.Identifier
	relations   map[uuid.UUID][]domain.EntityRelation
	profiles    map[uuid.UUID][]domain.EntityProfile
}

func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{
		entities:    make(map[uuid.UUID]domain.Entity),
		byIdentity:  make(map[string]uuid.UUID),
		identifiers: make(map[uuid.UUID][]domain.Identifier),
		relations:   make(map[uuid.UUID][]domain.EntityRelation),
		profiles:    make(map[uuid.UUID][]domain.EntityProfile),
	}
}

func identityKey(idType domain.IdentifierType, value string) string {
	return string(idType) + ":" + value
}

func (s *MemoryEntityStore) GetEntity(ctx context.Context, id uuid.UUID) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryEntityStore) FindByCanonicalIdentifier(ctx context.Context, idType domain.IdentifierType, encryptedValue string) (*domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdentity[identityKey(idType, encryptedValue)]
	if !ok {
		return nil, ErrNotFound
	}
	e := s.entities[id]
	return &e, nil
}

func (s *MemoryEntityStore) CreateEntity(ctx context.Context, e domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e
	for idType, value := range e.CanonicalIdentifiers {
		s.byIdentity[identityKey(domain.IdentifierType(idType), value)] = e.ID
	}
	return nil
}

func (s *MemoryEntityStore) MarkSuperseded(ctx context.Context, entityID, supersededBy uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return ErrNotFound
	}
	e.Superseded = true
	e.SupersededBy = &supersededBy
	s.entities[entityID] = e
	return nil
}

func (s *MemoryEntityStore) AppendIdentifier(ctx context.Context, id domain.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identifiers[id.EntityID] = append(s.identifiers[id.EntityID], id)
	s.byIdentity[identityKey(id.Type, id.Value)] = id.EntityID
	return nil
}

func (s *MemoryEntityStore) Identifiers(ctx context.Context, entityID uuid.UUID) ([]domain.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Identifier(nil), s.identifiers[entityID]...), nil
}

func (s *MemoryEntityStore) AppendRelation(ctx context.Context, r domain.EntityRelation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations[r.FromID] = append(s.relations[r.FromID], r)
	s.relations[r.ToID] = append(s.relations[r.ToID], r)
	return nil
}

func (s *MemoryEntityStore) Relations(ctx context.Context, entityID uuid.UUID) ([]domain.EntityRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EntityRelation(nil), s.relations[entityID]...), nil
}

func (s *MemoryEntityStore) AppendProfile(ctx context.Context, p domain.EntityProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.EntityID] = append(s.profiles[p.EntityID], p)
	return nil
}

func (s *MemoryEntityStore) LatestProfile(ctx context.Context, entityID uuid.UUID) (*domain.EntityProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profiles := s.profiles[entityID]
	if len(profiles) == 0 {
		return nil, ErrNotFound
	}
	latest := profiles[0]
	for _, p := range profiles[1:] {
		if p.Version > latest.Version {
			latest = p
		}
	}
	return &latest, nil
}

// Versions returns every profile version for entityID sorted ascending,
// the shape the Delta Detector needs to diff the two most recent.
func (s *MemoryEntityStore) Versions(entityID uuid.UUID) []domain.EntityProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.EntityProfile(nil), s.profiles[entityID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}
