// Package monitoring runs the periodic re-screening loop: a Scheduler
// triggers due subjects through the Screening Orchestrator, a
// VigilanceManager tracks how often each subject is re-checked, a
// DeltaDetector diffs consecutive results, and an Alert Generator turns
// material deltas into threshold-gated notifications (spec §4.9).
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/compliance"
	"github.com/veriscope/screening/pkg/domain"
)

// VigilanceLevel sets a monitored subject's re-screening cadence.
type VigilanceLevel string

const (
	VigilanceNone     VigilanceLevel = "V0"
	VigilanceAnnual   VigilanceLevel = "V1"
	VigilanceMonthly  VigilanceLevel = "V2"
	VigilanceBiweekly VigilanceLevel = "V3"
)

// intervalFor returns the re-check cadence for a level. V0 has no ongoing
// checks — it is a one-shot screening never picked up by ExecuteDue.
func intervalFor(level VigilanceLevel) time.Duration {
	day := 24 * time.Hour
	switch level {
	case VigilanceAnnual:
		return 365 * day
	case VigilanceMonthly:
		return 30 * day
	case VigilanceBiweekly:
		return 15 * day
	default:
		return 0
	}
}

// MonitoredSubject is one subject under ongoing re-screening.
type MonitoredSubject struct {
	SubjectID      uuid.UUID
	TenantID       uuid.UUID
	EntityID       uuid.UUID
	Subject        domain.SubjectIdentifiers
	RoleCategory   domain.RoleCategory
	Locale         compliance.Locale
	Tier           domain.ServiceTier
	VigilanceLevel VigilanceLevel
	NextCheckAt    time.Time
	Paused         bool
}

// SubjectStore persists monitored subjects and their scheduling state.
type SubjectStore interface {
	ListDue(ctx context.Context, now time.Time) ([]MonitoredSubject, error)
	Advance(ctx context.Context, subjectID uuid.UUID, nextCheckAt time.Time) error
	SetVigilanceLevel(ctx context.Context, subjectID uuid.UUID, level VigilanceLevel) error
}

// ScreeningRunner is the seam to the Screening Orchestrator: one monitoring
// check is one screening run against the subject's current identifiers.
type ScreeningRunner interface {
	Run(ctx context.Context, subject MonitoredSubject) (*CheckResult, error)
}

// CheckResult is what a monitoring-triggered screening run reports back,
// reduced to what the Delta Detector and Vigilance Manager need.
type CheckResult struct {
	RiskScore float64
	Profile   ProfileSnapshot
}

// Scheduler drives execute_due: trigger every subject past its
// NextCheckAt, then advance the schedule (spec §4.9). Distinct subjects run
// concurrently; a per-subject lock ensures no two checks for the same
// subject overlap (spec §5).
type Scheduler struct {
	store   SubjectStore
	runner  ScreeningRunner
	onCheck func(ctx context.Context, subject MonitoredSubject, prev, curr CheckResult)

	mu     sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
	latest map[uuid.UUID]CheckResult
}

// NewScheduler builds a Scheduler. onCheck, if non-nil, is invoked after
// every successful run with the previous and current CheckResult so a
// caller can wire in delta detection and alerting without the Scheduler
// needing to know about either.
func NewScheduler(store SubjectStore, runner ScreeningRunner, onCheck func(ctx context.Context, subject MonitoredSubject, prev, curr CheckResult)) *Scheduler {
	return &Scheduler{
		store:   store,
		runner:  runner,
		onCheck: onCheck,
		locks:   make(map[uuid.UUID]*sync.Mutex),
		latest:  make(map[uuid.UUID]CheckResult),
	}
}

func (s *Scheduler) subjectLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// ExecuteDue runs every subject with NextCheckAt <= now and !Paused,
// concurrently, then advances each one's schedule by its vigilance
// interval. V0 subjects are never returned by ListDue and are not
// re-scheduled.
func (s *Scheduler) ExecuteDue(ctx context.Context, now time.Time) error {
	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("monitoring: list due subjects: %w", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(due))
	for i, subject := range due {
		wg.Add(1)
		go func(i int, subject MonitoredSubject) {
			defer wg.Done()
			errs[i] = s.runOne(ctx, subject, now)
		}(i, subject)
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (s *Scheduler) runOne(ctx context.Context, subject MonitoredSubject, now time.Time) error {
	lock := s.subjectLock(subject.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.runner.Run(ctx, subject)
	if err != nil {
		return fmt.Errorf("monitoring: screen subject %s: %w", subject.SubjectID, err)
	}

	s.mu.Lock()
	prev, hadPrev := s.latest[subject.SubjectID]
	s.latest[subject.SubjectID] = *result
	s.mu.Unlock()

	if s.onCheck != nil {
		if !hadPrev {
			prev = *result
		}
		s.onCheck(ctx, subject, prev, *result)
	}

	interval := intervalFor(subject.VigilanceLevel)
	if interval <= 0 {
		return nil
	}
	return s.store.Advance(ctx, subject.SubjectID, now.Add(interval))
}
