// Package telemetry wraps log/slog with the request-scoped fields the rest
// of the platform expects on every line: correlation_id and tenant_id,
// attached the same way the teacher attaches a Principal to outgoing log
// statements before writing them.
package telemetry

import (
	"context"
	"log/slog"
	"os"

	"github.com/veriscope/screening/internal/reqctx"
)

var base = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetOutput redirects the base logger, used by tests to capture output.
func SetOutput(h slog.Handler) {
	base = slog.New(h)
}

// FromContext returns a logger pre-populated with correlation_id and
// tenant_id when a RequestContext is present; otherwise it returns the bare
// base logger.
func FromContext(ctx context.Context) *slog.Logger {
	rc, err := reqctx.From(ctx)
	if err != nil {
		return base
	}
	return base.With(
		slog.String("correlation_id", rc.CorrelationID.String()),
		slog.String("tenant_id", rc.TenantID.String()),
	)
}
