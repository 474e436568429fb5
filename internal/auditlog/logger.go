// Package auditlog accepts AuditEvents from every layer of the platform
// (spec §4.1). A missing audit backend is non-fatal: NewLogger(nil) returns
// a logger that only writes to the structured log, following the teacher's
// audit.StoreLogger pattern adapted to a pluggable backend instead of a
// single concrete store.
package auditlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/veriscope/screening/internal/reqctx"
	"github.com/veriscope/screening/internal/telemetry"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/store"
)

// Logger accepts audit events. Implementations must never reject an event
// for reasons other than a missing backend — audit logging is a side
// effect the caller cannot let fail the primary operation.
type Logger interface {
	Record(ctx context.Context, eventType string, severity domain.AuditSeverity, resourceType, resourceID string, data map[string]any) error
}

// SliceLogger accumulates events in memory; used in tests and in any
// in-process unit test that wants to assert which events fired.
type SliceLogger struct {
	Events []domain.AuditEvent
}

func NewSliceLogger() *SliceLogger { return &SliceLogger{} }

func (l *SliceLogger) Record(ctx context.Context, eventType string, severity domain.AuditSeverity, resourceType, resourceID string, data map[string]any) error {
	l.Events = append(l.Events, buildEvent(ctx, eventType, severity, resourceType, resourceID, data))
	return nil
}

// StoreLogger persists events to the hash-chained AuditStore, and always
// additionally writes a structured log line — mirroring the teacher's
// audit.StoreLogger, generalized to an injectable store.AuditStore instead
// of assuming one global instance.
type StoreLogger struct {
	backend *store.AuditStore
}

// NewLogger builds a StoreLogger. A nil backend yields a logger that only
// writes to the structured log and never fails the caller.
func NewLogger(backend *store.AuditStore) *StoreLogger {
	return &StoreLogger{backend: backend}
}

func (l *StoreLogger) Record(ctx context.Context, eventType string, severity domain.AuditSeverity, resourceType, resourceID string, data map[string]any) error {
	event := buildEvent(ctx, eventType, severity, resourceType, resourceID, data)

	logger := telemetry.FromContext(ctx)
	logger.Info("audit_event",
		slog.String("event_type", eventType),
		slog.String("severity", string(severity)),
		slog.String("resource_type", resourceType),
		slog.String("resource_id", resourceID),
	)

	if l.backend == nil {
		return nil
	}
	_, _, err := l.backend.Append(ctx, event)
	return err
}

func buildEvent(ctx context.Context, eventType string, severity domain.AuditSeverity, resourceType, resourceID string, data map[string]any) domain.AuditEvent {
	event := domain.AuditEvent{
		ID:           domain.NewID(),
		Type:         eventType,
		Severity:     severity,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Data:         data,
		CreatedAt:    time.Now().UTC(),
	}
	if rc, err := reqctx.From(ctx); err == nil {
		event.TenantID = &rc.TenantID
		event.ActorID = rc.ActorID
		event.CorrelationID = rc.CorrelationID
	}
	return event
}
