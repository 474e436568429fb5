package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/monitoring"
)

// MemorySubjectStore is a process-local implementation of
// monitoring.SubjectStore, suitable for single-instance deployments and
// tests.
type MemorySubjectStore struct {
	mu       sync.Mutex
	subjects map[uuid.UUID]monitoring.MonitoredSubject
}

func NewMemorySubjectStore() *MemorySubjectStore {
	return &MemorySubjectStore{subjects: make(map[uuid.UUID]monitoring.MonitoredSubject)}
}

// Register enrolls a subject for monitoring, storing it as given: its
// vigilance level and NextCheckAt are taken from the caller unchanged.
func (s *MemorySubjectStore) Register(subject monitoring.MonitoredSubject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.SubjectID] = subject
}

func (s *MemorySubjectStore) ListDue(ctx context.Context, now time.Time) ([]monitoring.MonitoredSubject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []monitoring.MonitoredSubject
	for _, subj := range s.subjects {
		if subj.Paused || subj.VigilanceLevel == monitoring.VigilanceNone {
			continue
		}
		if subj.NextCheckAt.After(now) {
			continue
		}
		due = append(due, subj)
	}
	return due, nil
}

func (s *MemorySubjectStore) Advance(ctx context.Context, subjectID uuid.UUID, nextCheckAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj, ok := s.subjects[subjectID]
	if !ok {
		return ErrNotFound
	}
	subj.NextCheckAt = nextCheckAt
	s.subjects[subjectID] = subj
	return nil
}

func (s *MemorySubjectStore) SetVigilanceLevel(ctx context.Context, subjectID uuid.UUID, level monitoring.VigilanceLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subj, ok := s.subjects[subjectID]
	if !ok {
		return ErrNotFound
	}
	subj.VigilanceLevel = level
	s.subjects[subjectID] = subj
	return nil
}
