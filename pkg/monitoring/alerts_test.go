package monitoring_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/monitoring"
	"github.com/veriscope/screening/pkg/risk"
)

type memChannel struct {
	mu      sync.Mutex
	sent    []monitoring.Alert
	failN   int
	attempt int
}

func (c *memChannel) Send(ctx context.Context, a monitoring.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempt++
	if c.attempt <= c.failN {
		return errors.New("channel unavailable")
	}
	c.sent = append(c.sent, a)
	return nil
}

func fastAlertConfig() monitoring.AlertConfig {
	cfg := monitoring.DefaultAlertConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func criticalFinding() domain.Finding {
	return domain.Finding{Category: domain.CategoryCriminal, SubCategory: "FELONY", Summary: "felony conviction", Severity: domain.SeverityCritical}
}

func TestAlertGenerator_V1OnlyAlertsOnCritical(t *testing.T) {
	ch := &memChannel{}
	gen := monitoring.NewAlertGenerator(fastAlertConfig(), ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceAnnual}
	delta := monitoring.Delta{
		Findings: []monitoring.FindingDelta{
			{Finding: domain.Finding{Severity: domain.SeverityHigh, Summary: "high finding"}, Kind: monitoring.FindingNew, Direction: monitoring.DeltaNegative},
		},
	}

	alerts, _, err := gen.Generate(context.Background(), subject, time.Now(), delta)

	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestAlertGenerator_V3AlertsOnMediumAndAbove(t *testing.T) {
	ch := &memChannel{}
	gen := monitoring.NewAlertGenerator(fastAlertConfig(), ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceBiweekly}
	delta := monitoring.Delta{
		Findings: []monitoring.FindingDelta{
			{Finding: domain.Finding{Severity: domain.SeverityMedium, Summary: "medium finding"}, Kind: monitoring.FindingNew, Direction: monitoring.DeltaNegative},
		},
	}

	alerts, _, err := gen.Generate(context.Background(), subject, time.Now(), delta)

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Len(t, ch.sent, 1)
}

func TestAlertGenerator_PositiveDeltaNeverAlerts(t *testing.T) {
	ch := &memChannel{}
	gen := monitoring.NewAlertGenerator(fastAlertConfig(), ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceBiweekly}
	delta := monitoring.Delta{
		Findings: []monitoring.FindingDelta{
			{Finding: criticalFinding(), Kind: monitoring.FindingResolved, Direction: monitoring.DeltaPositive},
		},
	}

	alerts, escalate, err := gen.Generate(context.Background(), subject, time.Now(), delta)

	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.False(t, escalate)
}

func TestAlertGenerator_VigilanceNoneNeverAlerts(t *testing.T) {
	ch := &memChannel{}
	gen := monitoring.NewAlertGenerator(fastAlertConfig(), ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceNone}
	delta := monitoring.Delta{
		Findings: []monitoring.FindingDelta{
			{Finding: criticalFinding(), Kind: monitoring.FindingNew, Direction: monitoring.DeltaNegative},
		},
	}

	alerts, _, err := gen.Generate(context.Background(), subject, time.Now(), delta)

	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestAlertGenerator_SingleCriticalAlertAutoEscalates(t *testing.T) {
	ch := &memChannel{}
	gen := monitoring.NewAlertGenerator(fastAlertConfig(), ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceAnnual}
	delta := monitoring.Delta{
		Findings: []monitoring.FindingDelta{
			{Finding: criticalFinding(), Kind: monitoring.FindingNew, Direction: monitoring.DeltaNegative},
		},
	}

	_, escalate, err := gen.Generate(context.Background(), subject, time.Now(), delta)

	require.NoError(t, err)
	assert.True(t, escalate)
}

func TestAlertGenerator_UnresolvedCountExceedingMaxEscalates(t *testing.T) {
	ch := &memChannel{}
	cfg := fastAlertConfig()
	cfg.MaxAlertsBeforeEscalation = 2
	gen := monitoring.NewAlertGenerator(cfg, ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceBiweekly}
	now := time.Now()
	mediumDelta := func() monitoring.Delta {
		return monitoring.Delta{Findings: []monitoring.FindingDelta{
			{Finding: domain.Finding{Severity: domain.SeverityMedium, Summary: "medium finding"}, Kind: monitoring.FindingNew, Direction: monitoring.DeltaNegative},
		}}
	}

	_, e1, _ := gen.Generate(context.Background(), subject, now, mediumDelta())
	_, e2, _ := gen.Generate(context.Background(), subject, now, mediumDelta())
	_, e3, _ := gen.Generate(context.Background(), subject, now, mediumDelta())

	assert.False(t, e1)
	assert.False(t, e2)
	assert.True(t, e3)
}

func TestAlertGenerator_RetriesTransientDeliveryFailure(t *testing.T) {
	ch := &memChannel{failN: 2}
	gen := monitoring.NewAlertGenerator(fastAlertConfig(), ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceBiweekly}
	delta := monitoring.Delta{
		Findings: []monitoring.FindingDelta{
			{Finding: domain.Finding{Severity: domain.SeverityMedium, Summary: "medium finding"}, Kind: monitoring.FindingNew, Direction: monitoring.DeltaNegative},
		},
	}

	alerts, _, err := gen.Generate(context.Background(), subject, time.Now(), delta)

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Len(t, ch.sent, 1)
}

func TestAlertGenerator_ExhaustedRetriesReturnsError(t *testing.T) {
	ch := &memChannel{failN: 100}
	gen := monitoring.NewAlertGenerator(fastAlertConfig(), ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceBiweekly}
	delta := monitoring.Delta{
		Findings: []monitoring.FindingDelta{
			{Finding: domain.Finding{Severity: domain.SeverityMedium, Summary: "medium finding"}, Kind: monitoring.FindingNew, Direction: monitoring.DeltaNegative},
		},
	}

	alerts, _, err := gen.Generate(context.Background(), subject, time.Now(), delta)

	assert.Error(t, err)
	assert.Empty(t, alerts)
}

func TestAlertGenerator_RiskIncreaseProducesAlert(t *testing.T) {
	ch := &memChannel{}
	gen := monitoring.NewAlertGenerator(fastAlertConfig(), ch)
	subject := monitoring.MonitoredSubject{SubjectID: uuid.New(), VigilanceLevel: monitoring.VigilanceBiweekly}
	delta := monitoring.Delta{
		PreviousScore: 10,
		CurrentScore:  80,
		PreviousLevel: risk.LevelLow,
		CurrentLevel:  risk.LevelCritical,
	}

	alerts, _, err := gen.Generate(context.Background(), subject, time.Now(), delta)

	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, monitoring.AlertRiskIncreased, alerts[0].Kind)
}
