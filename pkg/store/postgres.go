package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/veriscope/screening/pkg/domain"
)

// PostgresTenantStore implements TenantStore against PostgreSQL, following
// the upsert style of the teacher's budget.PostgresStorage.
type PostgresTenantStore struct {
	db *sql.DB
}

func NewPostgresTenantStore(db *sql.DB) *PostgresTenantStore {
	return &PostgresTenantStore{db: db}
}

func (s *PostgresTenantStore) Get(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, active, created_at FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (s *PostgresTenantStore) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, active, created_at FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

func scanTenant(row *sql.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Active, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan tenant: %w", err)
	}
	return &t, nil
}

func (s *PostgresTenantStore) Create(ctx context.Context, t domain.Tenant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, slug, name, active, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Slug, t.Name, t.Active, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create tenant: %w", err)
	}
	return nil
}

func (s *PostgresTenantStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tenants SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: deactivate tenant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresEntityStore implements EntityStore against PostgreSQL. Identifier
// and profile rows are append-only: there is intentionally no UPDATE/DELETE
// method on this type for those tables (spec §3, §9).
type PostgresEntityStore struct {
	db *sql.DB
}

func NewPostgresEntityStore(db *sql.DB) *PostgresEntityStore {
	return &PostgresEntityStore{db: db}
}

func (s *PostgresEntityStore) GetEntity(ctx context.Context, id uuid.UUID) (*domain.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, tenant_id, data_origin, canonical_identifiers, superseded, superseded_by, created_at
		 FROM entities WHERE id = $1`, id)
	return scanEntity(row)
}

func (s *PostgresEntityStore) FindByCanonicalIdentifier(ctx context.Context, idType domain.IdentifierType, encryptedValue string) (*domain.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, tenant_id, data_origin, canonical_identifiers, superseded, superseded_by, created_at
		 FROM entities WHERE canonical_identifiers ->> $1 = $2 LIMIT 1`,
		string(idType), encryptedValue)
	return scanEntity(row)
}

func scanEntity(row *sql.Row) (*domain.Entity, error) {
	var (
		e          domain.Entity
		tenantID   sql.NullString
		idsJSON    []byte
		supersedBy sql.NullString
	)
	err := row.Scan(&e.ID, &e.Type, &tenantID, &e.DataOrigin, &idsJSON, &e.Superseded, &supersedBy, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan entity: %w", err)
	}
	if tenantID.Valid {
		id, parseErr := uuid.Parse(tenantID.String)
		if parseErr != nil {
			return nil, fmt.Errorf("store: parse tenant_id: %w", parseErr)
		}
		e.TenantID = &id
	}
	if supersedBy.Valid {
		id, parseErr := uuid.Parse(supersedBy.String)
		if parseErr != nil {
			return nil, fmt.Errorf("store: parse superseded_by: %w", parseErr)
		}
		e.SupersededBy = &id
	}
	if len(idsJSON) > 0 {
		if jsonErr := json.Unmarshal(idsJSON, &e.CanonicalIdentifiers); jsonErr != nil {
			return nil, fmt.Errorf("store: unmarshal canonical_identifiers: %w", jsonErr)
		}
	}
	return &e, nil
}

func (s *PostgresEntityStore) CreateEntity(ctx context.Context, e domain.Entity) error {
	idsJSON, err := json.Marshal(e.CanonicalIdentifiers)
	if err != nil {
		return fmt.Errorf("store: marshal canonical_identifiers: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, type, tenant_id, data_origin, canonical_identifiers, superseded, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Type, nullableUUID(e.TenantID), e.DataOrigin, idsJSON, e.Superseded, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: create entity: %w", err)
	}
	return nil
}

func (s *PostgresEntityStore) MarkSuperseded(ctx context.Context, entityID, supersededBy uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entities SET superseded = true, superseded_by = $2 WHERE id = $1`,
		entityID, supersededBy)
	if err != nil {
		return fmt.Errorf("store: mark superseded: %w", err)
	}
	return nil
}

func (s *PostgresEntityStore) AppendIdentifier(ctx context.Context, id domain.Identifier) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identifiers (entity_id, type, value, confidence, source, superseded, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id.EntityID, id.Type, id.Value, id.Confidence, id.Source, id.Superseded, id.DiscoveredAt)
	if err != nil {
		return fmt.Errorf("store: append identifier: %w", err)
	}
	return nil
}

func (s *PostgresEntityStore) Identifiers(ctx context.Context, entityID uuid.UUID) ([]domain.Identifier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, type, value, confidence, source, superseded, discovered_at
		 FROM identifiers WHERE entity_id = $1 ORDER BY discovered_at`, entityID)
	if err != nil {
		return nil, fmt.Errorf("store: list identifiers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Identifier
	for rows.Next() {
		var id domain.Identifier
		if scanErr := rows.Scan(&id.EntityID, &id.Type, &id.Value, &id.Confidence, &id.Source, &id.Superseded, &id.DiscoveredAt); scanErr != nil {
			return nil, fmt.Errorf("store: scan identifier: %w", scanErr)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresEntityStore) AppendRelation(ctx context.Context, r domain.EntityRelation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_relations (from_id, to_id, type, confidence, current, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.FromID, r.ToID, r.Type, r.Confidence, r.Current, r.DiscoveredAt)
	if err != nil {
		return fmt.Errorf("store: append relation: %w", err)
	}
	return nil
}

func (s *PostgresEntityStore) Relations(ctx context.Context, entityID uuid.UUID) ([]domain.EntityRelation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_id, to_id, type, confidence, current, discovered_at FROM entity_relations
		 WHERE from_id = $1 OR to_id = $1`, entityID)
	if err != nil {
		return nil, fmt.Errorf("store: list relations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.EntityRelation
	for rows.Next() {
		var r domain.EntityRelation
		if scanErr := rows.Scan(&r.FromID, &r.ToID, &r.Type, &r.Confidence, &r.Current, &r.DiscoveredAt); scanErr != nil {
			return nil, fmt.Errorf("store: scan relation: %w", scanErr)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresEntityStore) AppendProfile(ctx context.Context, p domain.EntityProfile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_profiles (entity_id, version, trigger, findings_blob, risk_score, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.EntityID, p.Version, p.Trigger, p.FindingsBlob, p.RiskScore, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: append profile: %w", err)
	}
	return nil
}

func (s *PostgresEntityStore) LatestProfile(ctx context.Context, entityID uuid.UUID) (*domain.EntityProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entity_id, version, trigger, findings_blob, risk_score, created_at
		 FROM entity_profiles WHERE entity_id = $1 ORDER BY version DESC LIMIT 1`, entityID)

	var p domain.EntityProfile
	err := row.Scan(&p.EntityID, &p.Version, &p.Trigger, &p.FindingsBlob, &p.RiskScore, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan profile: %w", err)
	}
	return &p, nil
}

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
