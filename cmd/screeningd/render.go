package main

import (
	"context"
	"time"

	"github.com/veriscope/screening/internal/telemetry"
	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/monitoring"
	"github.com/veriscope/screening/pkg/screening"
)

// logReportRenderer is the default ReportRenderer: it logs that a report
// was compiled rather than writing it to a document store or object bucket,
// standing in until a real rendering backend is configured.
type logReportRenderer struct{}

func (logReportRenderer) Render(ctx context.Context, compiled screening.CompiledResult) (screening.ReportMetadata, error) {
	meta := screening.ReportMetadata{
		ReportID:    domain.NewID(),
		Format:      "application/json",
		GeneratedAt: time.Now(),
		Location:    "log://screeningd",
	}
	telemetry.FromContext(ctx).Info("report rendered",
		"report_id", meta.ReportID,
		"risk_level", compiled.RiskResult.Level,
		"risk_score", compiled.RiskResult.Overall,
	)
	return meta, nil
}

// logAlertChannel is the default monitoring.Channel: it logs alerts rather
// than delivering them over email/webhook/SMS, standing in until a real
// delivery channel is configured.
type logAlertChannel struct{}

func (logAlertChannel) Send(ctx context.Context, alert monitoring.Alert) error {
	telemetry.FromContext(ctx).Warn("monitoring alert",
		"alert_id", alert.ID,
		"subject_id", alert.SubjectID,
		"tenant_id", alert.TenantID,
		"kind", alert.Kind,
		"severity", alert.Severity,
		"summary", alert.Summary,
	)
	return nil
}
