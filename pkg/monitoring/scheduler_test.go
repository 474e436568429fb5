package monitoring_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/pkg/monitoring"
)

type memSubjectStore struct {
	mu       sync.Mutex
	subjects map[uuid.UUID]monitoring.MonitoredSubject
}

func newMemSubjectStore(subjects ...monitoring.MonitoredSubject) *memSubjectStore {
	s := &memSubjectStore{subjects: make(map[uuid.UUID]monitoring.MonitoredSubject)}
	for _, sub := range subjects {
		s.subjects[sub.SubjectID] = sub
	}
	return s
}

func (s *memSubjectStore) ListDue(ctx context.Context, now time.Time) ([]monitoring.MonitoredSubject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []monitoring.MonitoredSubject
	for _, sub := range s.subjects {
		if !sub.Paused && !sub.NextCheckAt.After(now) {
			due = append(due, sub)
		}
	}
	return due, nil
}

func (s *memSubjectStore) Advance(ctx context.Context, subjectID uuid.UUID, nextCheckAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subjects[subjectID]
	sub.NextCheckAt = nextCheckAt
	s.subjects[subjectID] = sub
	return nil
}

func (s *memSubjectStore) SetVigilanceLevel(ctx context.Context, subjectID uuid.UUID, level monitoring.VigilanceLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subjects[subjectID]
	sub.VigilanceLevel = level
	s.subjects[subjectID] = sub
	return nil
}

type countingRunner struct {
	calls     int32
	inflight  int32
	maxInFlight int32
	mu        sync.Mutex
}

func (r *countingRunner) Run(ctx context.Context, subject monitoring.MonitoredSubject) (*monitoring.CheckResult, error) {
	atomic.AddInt32(&r.calls, 1)
	cur := atomic.AddInt32(&r.inflight, 1)
	defer atomic.AddInt32(&r.inflight, -1)

	r.mu.Lock()
	if cur > r.maxInFlight {
		r.maxInFlight = cur
	}
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	return &monitoring.CheckResult{RiskScore: 10}, nil
}

func TestScheduler_ExecuteDueRunsDueSubjectsAndAdvancesSchedule(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	subject := monitoring.MonitoredSubject{
		SubjectID:      uuid.New(),
		VigilanceLevel: monitoring.VigilanceMonthly,
		NextCheckAt:    now.Add(-time.Hour),
	}
	store := newMemSubjectStore(subject)
	runner := &countingRunner{}
	sched := monitoring.NewScheduler(store, runner, nil)

	err := sched.ExecuteDue(context.Background(), now)

	require.NoError(t, err)
	assert.EqualValues(t, 1, runner.calls)
	assert.True(t, store.subjects[subject.SubjectID].NextCheckAt.After(now))
}

func TestScheduler_ExecuteDueSkipsPausedAndNotYetDueSubjects(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	paused := monitoring.MonitoredSubject{SubjectID: uuid.New(), Paused: true, NextCheckAt: now.Add(-time.Hour)}
	notDue := monitoring.MonitoredSubject{SubjectID: uuid.New(), NextCheckAt: now.Add(time.Hour)}
	store := newMemSubjectStore(paused, notDue)
	runner := &countingRunner{}
	sched := monitoring.NewScheduler(store, runner, nil)

	err := sched.ExecuteDue(context.Background(), now)

	require.NoError(t, err)
	assert.EqualValues(t, 0, runner.calls)
}

func TestScheduler_DistinctSubjectsRunConcurrently(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	a := monitoring.MonitoredSubject{SubjectID: uuid.New(), NextCheckAt: now.Add(-time.Hour)}
	b := monitoring.MonitoredSubject{SubjectID: uuid.New(), NextCheckAt: now.Add(-time.Hour)}
	store := newMemSubjectStore(a, b)
	runner := &countingRunner{}
	sched := monitoring.NewScheduler(store, runner, nil)

	err := sched.ExecuteDue(context.Background(), now)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, runner.maxInFlight, int32(2))
}

func TestScheduler_OnCheckCallbackReceivesPreviousAndCurrentResult(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	subjectID := uuid.New()
	subject := monitoring.MonitoredSubject{SubjectID: subjectID, NextCheckAt: now.Add(-time.Hour)}
	store := newMemSubjectStore(subject)
	runner := &countingRunner{}

	var gotPrev, gotCurr monitoring.CheckResult
	var calls int
	sched := monitoring.NewScheduler(store, runner, func(ctx context.Context, s monitoring.MonitoredSubject, prev, curr monitoring.CheckResult) {
		calls++
		gotPrev, gotCurr = prev, curr
	})

	require.NoError(t, sched.ExecuteDue(context.Background(), now))
	assert.Equal(t, 1, calls)
	assert.Equal(t, gotPrev, gotCurr)
	assert.Equal(t, 10.0, gotCurr.RiskScore)
}
