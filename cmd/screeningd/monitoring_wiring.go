package main

import (
	"context"
	"time"

	"github.com/veriscope/screening/internal/telemetry"
	"github.com/veriscope/screening/pkg/monitoring"
)

// monitoringHooks wires the Delta Detector, Alert Generator, and Vigilance
// Manager into the Scheduler's onCheck callback (spec §4.9), none of which
// the Scheduler needs to import directly.
type monitoringHooks struct {
	store     monitoring.SubjectStore
	deltas    *monitoring.DeltaDetector
	alerts    *monitoring.AlertGenerator
	vigilance *monitoring.VigilanceManager
}

func (h *monitoringHooks) onCheck(ctx context.Context, subject monitoring.MonitoredSubject, prev, curr monitoring.CheckResult) {
	delta := h.deltas.Detect(prev.Profile, curr.Profile)

	_, escalate, err := h.alerts.Generate(ctx, subject, time.Now(), delta)
	if err != nil {
		telemetry.FromContext(ctx).Warn("alert delivery failed", "subject_id", subject.SubjectID, "error", err)
	}
	if !escalate && !delta.Escalate {
		return
	}

	next := h.vigilance.Evaluate(subject.RoleCategory, subject.VigilanceLevel, curr.RiskScore)
	if !monitoring.Escalated(subject.VigilanceLevel, next) {
		return
	}
	if err := h.store.SetVigilanceLevel(ctx, subject.SubjectID, next); err != nil {
		telemetry.FromContext(ctx).Warn("vigilance escalation persist failed", "subject_id", subject.SubjectID, "error", err)
	}
}
