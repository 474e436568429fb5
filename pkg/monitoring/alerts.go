package monitoring

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/risk"
)

// AlertKind is what triggered an alert.
type AlertKind string

const (
	AlertFindingNew     AlertKind = "FINDING_NEW"
	AlertFindingChanged AlertKind = "FINDING_CHANGED"
	AlertRiskIncreased  AlertKind = "RISK_INCREASED"
	AlertConnectionNew  AlertKind = "CONNECTION_NEW"
)

// Alert is one notification candidate produced from a Delta (spec §4.9).
type Alert struct {
	ID        uuid.UUID
	SubjectID uuid.UUID
	TenantID  uuid.UUID
	Kind      AlertKind
	Severity  domain.Severity
	Summary   string
	CreatedAt time.Time
}

// Channel delivers an alert to an external system (email/webhook/SMS). A
// Channel implementation owns its own transport; the generator only owns
// the retry policy around calling it.
type Channel interface {
	Send(ctx context.Context, alert Alert) error
}

// AlertConfig controls retry behavior and auto-escalation thresholds
// (spec §4.9, defaults from §6's configuration table).
type AlertConfig struct {
	RetryCount                int
	RetryDelay                time.Duration
	MaxAlertsBeforeEscalation int
	AlertWindowHours          int
}

func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		RetryCount:                3,
		RetryDelay:                time.Second,
		MaxAlertsBeforeEscalation: 3,
		AlertWindowHours:          24,
	}
}

// sentAlert is the minimal history record AlertGenerator keeps per subject
// to evaluate the unresolved-alert-count escalation rule.
type sentAlert struct {
	createdAt time.Time
	severity  domain.Severity
	resolved  bool
}

// AlertGenerator turns a Delta into threshold-gated alerts and delivers
// them through one or more channels, retrying transient failures with
// exponential backoff and jitter (grounded in the teacher's HTTP client
// retry loop).
type AlertGenerator struct {
	channels []Channel
	config   AlertConfig

	mu      sync.Mutex
	history map[uuid.UUID][]sentAlert
}

func NewAlertGenerator(config AlertConfig, channels ...Channel) *AlertGenerator {
	return &AlertGenerator{
		channels: channels,
		config:   config,
		history:  make(map[uuid.UUID][]sentAlert),
	}
}

// severityThreshold is the minimum severity a vigilance level will alert
// on: V1 alerts on CRITICAL only, V2 on HIGH+, V3 on MEDIUM+ (spec §4.9).
// V0 never alerts.
func severityThreshold(level VigilanceLevel) (domain.Severity, bool) {
	switch level {
	case VigilanceAnnual:
		return domain.SeverityCritical, true
	case VigilanceMonthly:
		return domain.SeverityHigh, true
	case VigilanceBiweekly:
		return domain.SeverityMedium, true
	default:
		return 0, false
	}
}

// candidates builds the alert set from a Delta, before threshold gating.
// POSITIVE-direction finding deltas never alert regardless of severity.
func candidates(subject MonitoredSubject, now time.Time, delta Delta) []Alert {
	var out []Alert

	for _, fd := range delta.Findings {
		if fd.Direction == DeltaPositive {
			continue
		}
		kind := AlertFindingChanged
		if fd.Kind == FindingNew {
			kind = AlertFindingNew
		}
		out = append(out, Alert{
			ID:        domain.NewID(),
			SubjectID: subject.SubjectID,
			TenantID:  subject.TenantID,
			Kind:      kind,
			Severity:  fd.Finding.Severity,
			Summary:   fd.Finding.Summary,
			CreatedAt: now,
		})
	}

	if delta.CurrentScore > delta.PreviousScore && levelRank7(delta.CurrentLevel) > levelRank7(delta.PreviousLevel) {
		out = append(out, Alert{
			ID:        domain.NewID(),
			SubjectID: subject.SubjectID,
			TenantID:  subject.TenantID,
			Kind:      AlertRiskIncreased,
			Severity:  severityForRiskLevel(delta.CurrentLevel),
			Summary:   fmt.Sprintf("risk level rose from %s to %s", delta.PreviousLevel, delta.CurrentLevel),
			CreatedAt: now,
		})
	}

	for _, cd := range delta.Connections {
		if cd.Kind != ConnectionNew {
			continue
		}
		out = append(out, Alert{
			ID:        domain.NewID(),
			SubjectID: subject.SubjectID,
			TenantID:  subject.TenantID,
			Kind:      AlertConnectionNew,
			Severity:  domain.SeverityMedium,
			Summary:   fmt.Sprintf("new connection to %s (propagated risk %.2f)", cd.Connection.Name, cd.Connection.PropagatedRisk),
			CreatedAt: now,
		})
	}

	return out
}

func severityForRiskLevel(l risk.Level) domain.Severity {
	switch l {
	case risk.LevelCritical:
		return domain.SeverityCritical
	case risk.LevelHigh:
		return domain.SeverityHigh
	case risk.LevelModerate:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// Generate evaluates a Delta against the subject's vigilance level, filters
// by the level's severity threshold, delivers surviving alerts through
// every configured channel, and reports whether this batch should trigger
// an auto-escalation of the subject's vigilance level.
func (g *AlertGenerator) Generate(ctx context.Context, subject MonitoredSubject, now time.Time, delta Delta) (alerts []Alert, escalate bool, err error) {
	threshold, alertable := severityThreshold(subject.VigilanceLevel)
	if !alertable {
		return nil, false, nil
	}

	for _, a := range candidates(subject, now, delta) {
		if a.Severity < threshold {
			continue
		}
		if deliverErr := g.deliver(ctx, a); deliverErr != nil {
			err = deliverErr
			continue
		}
		alerts = append(alerts, a)
		g.record(subject.SubjectID, a)
	}

	escalate = g.shouldEscalate(subject.SubjectID, now, alerts)
	return alerts, escalate, err
}

func (g *AlertGenerator) record(subjectID uuid.UUID, a Alert) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history[subjectID] = append(g.history[subjectID], sentAlert{createdAt: a.CreatedAt, severity: a.Severity})
}

// shouldEscalate implements auto-escalation: a single CRITICAL alert in
// this batch, or the count of unresolved alerts within the configured
// window exceeding max_alerts_before_escalation (spec §4.9).
func (g *AlertGenerator) shouldEscalate(subjectID uuid.UUID, now time.Time, batch []Alert) bool {
	for _, a := range batch {
		if a.Severity == domain.SeverityCritical {
			return true
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	window := time.Duration(g.config.AlertWindowHours) * time.Hour
	cutoff := now.Add(-window)
	unresolved := 0
	for _, a := range g.history[subjectID] {
		if a.resolved {
			continue
		}
		if a.createdAt.After(cutoff) {
			unresolved++
		}
	}
	return unresolved > g.config.MaxAlertsBeforeEscalation
}

// deliver sends to every configured channel, retrying each with
// exponential backoff and jitter. It returns the last channel's error if
// any channel never succeeds within the retry budget.
func (g *AlertGenerator) deliver(ctx context.Context, a Alert) error {
	var lastErr error
	for _, ch := range g.channels {
		if sendErr := g.sendWithRetry(ctx, ch, a); sendErr != nil {
			lastErr = sendErr
		}
	}
	return lastErr
}

func (g *AlertGenerator) sendWithRetry(ctx context.Context, ch Channel, a Alert) error {
	var err error
	for i := 0; i <= g.config.RetryCount; i++ {
		err = ch.Send(ctx, a)
		if err == nil {
			return nil
		}
		if i == g.config.RetryCount {
			break
		}

		backoff := time.Duration(math.Pow(2, float64(i))) * g.config.RetryDelay
		jitter := time.Duration(0)
		if n, jerr := rand.Int(rand.Reader, big.NewInt(int64(g.config.RetryDelay/2)+1)); jerr == nil {
			jitter = time.Duration(n.Int64())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return fmt.Errorf("monitoring: deliver alert %s: %w", a.ID, err)
}
