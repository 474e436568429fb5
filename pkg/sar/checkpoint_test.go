package sar_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/sar"
)

type memCheckpointStore struct {
	mu          sync.Mutex
	checkpoints []sar.Checkpoint
}

func (s *memCheckpointStore) AppendCheckpoint(ctx context.Context, cp sar.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = append(s.checkpoints, cp)
	return nil
}

func (s *memCheckpointStore) ListCheckpoints(ctx context.Context, screeningID uuid.UUID) ([]sar.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sar.Checkpoint
	for _, cp := range s.checkpoints {
		if cp.ScreeningID == screeningID {
			out = append(out, cp)
		}
	}
	return out, nil
}

func TestCheckpointer_RecordMarksTypeCompleteForScreening(t *testing.T) {
	store := &memCheckpointStore{}
	c := sar.NewCheckpointer(store)
	kb := domain.NewKnowledgeBase()
	kb.Add(domain.InfoEmployment, domain.Fact{Type: "employer", Value: "Acme"})
	screeningID := uuid.New()
	outcome := sar.TypeOutcome{InfoType: domain.InfoEmployment}

	require.NoError(t, c.Record(context.Background(), screeningID, sar.PhaseFoundation, kb, outcome, nil))

	assert.True(t, c.IsComplete(screeningID, domain.InfoEmployment))
	assert.False(t, c.IsComplete(screeningID, domain.InfoCriminal))
}

func TestCheckpointer_ResumeReplaysFactsAndReturnsCompletedSet(t *testing.T) {
	store := &memCheckpointStore{}
	writer := sar.NewCheckpointer(store)
	screeningID := uuid.New()
	kb := domain.NewKnowledgeBase()
	kb.Add(domain.InfoEmployment, domain.Fact{Type: "employer", Value: "Acme"})
	require.NoError(t, writer.Record(context.Background(), screeningID, sar.PhaseFoundation, kb, sar.TypeOutcome{InfoType: domain.InfoEmployment}, nil))

	reader := sar.NewCheckpointer(store)
	freshKB := domain.NewKnowledgeBase()

	completed, err := reader.Resume(context.Background(), screeningID, freshKB)

	require.NoError(t, err)
	assert.Contains(t, completed, domain.InfoEmployment)
	assert.True(t, reader.IsComplete(screeningID, domain.InfoEmployment))
	assert.Len(t, freshKB.Facts(domain.InfoEmployment), 1)
	assert.Equal(t, "Acme", freshKB.Facts(domain.InfoEmployment)[0].Value)
}

func TestCheckpointer_IsCompleteFalseForUnknownScreening(t *testing.T) {
	store := &memCheckpointStore{}
	c := sar.NewCheckpointer(store)

	assert.False(t, c.IsComplete(uuid.New(), domain.InfoIdentity))
}
