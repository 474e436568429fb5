package entityresolution

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/veriscope/screening/internal/reqctx"
	"github.com/veriscope/screening/internal/telemetry"
	"github.com/veriscope/screening/pkg/domain"
)

// MergeStore is the persistence seam MergeEntities needs: repointing
// relations/profiles, unioning identifiers, marking the loser superseded,
// and recording the audit event. MergeEntities calls these one after another
// and does not wrap them in a transaction: a failing step returns its error
// without undoing the steps before it, and a RecordAudit failure is logged
// while the merge still succeeds.
type MergeStore interface {
	RepointRelations(ctx context.Context, from, to uuid.UUID) error
	RepointProfiles(ctx context.Context, from, to uuid.UUID) error
	UnionIdentifiers(ctx context.Context, from, to uuid.UUID) error
	MarkSuperseded(ctx context.Context, loser, survivor uuid.UUID) error
	RecordAudit(ctx context.Context, event domain.AuditEvent) error
}

// MergeEntities merges b into a, keeping the chronologically older
// (lower-UUIDv7) entity as the canonical survivor regardless of call order
// (spec §4.2). Returns the survivor and loser IDs.
func MergeEntities(ctx context.Context, store MergeStore, a, b uuid.UUID) (survivor, loser uuid.UUID, err error) {
	if a == b {
		return a, b, nil
	}

	survivor, loser = a, b
	if domain.Older(b, a) {
		survivor, loser = b, a
	}

	if err := store.RepointRelations(ctx, loser, survivor); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if err := store.RepointProfiles(ctx, loser, survivor); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if err := store.UnionIdentifiers(ctx, loser, survivor); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if err := store.MarkSuperseded(ctx, loser, survivor); err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	rc, rcErr := reqctx.From(ctx)
	event := domain.AuditEvent{
		ID:           domain.NewID(),
		Type:         "ENTITY_MERGED",
		Severity:     domain.AuditInfo,
		ResourceType: "entity",
		ResourceID:   survivor.String(),
		Data: map[string]any{
			"survivor": survivor.String(),
			"loser":    loser.String(),
		},
		CreatedAt: time.Now().UTC(),
	}
	if rcErr == nil {
		event.TenantID = tenantPtr(rc.TenantID)
		event.ActorID = rc.ActorID
		event.CorrelationID = rc.CorrelationID
	}

	if err := store.RecordAudit(ctx, event); err != nil {
		// Audit backend outage must not roll back a structural merge; log
		// and continue (spec §4.1: "missing audit backend is non-fatal").
		telemetry.FromContext(ctx).Warn("entity merge audit record failed",
			"survivor", survivor, "loser", loser, "error", err)
	}

	return survivor, loser, nil
}

func tenantPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
