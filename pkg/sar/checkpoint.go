package sar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
)

// Checkpoint is an append-only snapshot of one InformationType's completed
// state, taken after the type finishes its SAR sub-cycle (spec §4.5).
type Checkpoint struct {
	ScreeningID uuid.UUID
	InfoType    domain.InformationType
	Phase       Phase
	State       domain.SARTypeState
	Facts       []domain.Fact
	Findings    []domain.Finding
	TakenAt     time.Time
}

// CheckpointStore persists Checkpoints. Implementations must never update or
// delete an existing row — only append (spec §9 Design Notes).
type CheckpointStore interface {
	AppendCheckpoint(ctx context.Context, cp Checkpoint) error
	ListCheckpoints(ctx context.Context, screeningID uuid.UUID) ([]Checkpoint, error)
}

// Checkpointer records per-type completion and answers resume queries: a
// screening resumes by skipping every InformationType with an existing
// checkpoint and replaying the orchestrator's phase control flow from
// there.
type Checkpointer struct {
	store CheckpointStore

	mu   sync.Mutex
	done map[uuid.UUID]map[domain.InformationType]struct{}
}

func NewCheckpointer(store CheckpointStore) *Checkpointer {
	return &Checkpointer{store: store, done: make(map[uuid.UUID]map[domain.InformationType]struct{})}
}

// Record appends a checkpoint for one completed type and marks it done for
// resume purposes.
func (c *Checkpointer) Record(ctx context.Context, screeningID uuid.UUID, phase Phase, kb *domain.KnowledgeBase, outcome TypeOutcome, findings []domain.Finding) error {
	cp := Checkpoint{
		ScreeningID: screeningID,
		InfoType:    outcome.InfoType,
		Phase:       phase,
		State:       outcome.State,
		Facts:       kb.Facts(outcome.InfoType),
		Findings:    findings,
		TakenAt:     time.Now(),
	}

	if err := c.store.AppendCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("sar: append checkpoint for %s: %w", outcome.InfoType, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done[screeningID] == nil {
		c.done[screeningID] = make(map[domain.InformationType]struct{})
	}
	c.done[screeningID][outcome.InfoType] = struct{}{}
	return nil
}

// Resume loads a screening's existing checkpoints and replays their facts
// into a fresh KnowledgeBase, returning the set of InformationTypes that
// should be skipped by the orchestrator on re-entry.
func (c *Checkpointer) Resume(ctx context.Context, screeningID uuid.UUID, kb *domain.KnowledgeBase) (map[domain.InformationType]struct{}, error) {
	checkpoints, err := c.store.ListCheckpoints(ctx, screeningID)
	if err != nil {
		return nil, fmt.Errorf("sar: list checkpoints for %s: %w", screeningID, err)
	}

	completed := make(map[domain.InformationType]struct{})
	for _, cp := range checkpoints {
		for _, f := range cp.Facts {
			kb.Add(cp.InfoType, f)
		}
		completed[cp.InfoType] = struct{}{}
	}

	c.mu.Lock()
	c.done[screeningID] = completed
	c.mu.Unlock()

	return completed, nil
}

// IsComplete reports whether a type already has a checkpoint for this
// screening, letting the orchestrator skip re-running it.
func (c *Checkpointer) IsComplete(screeningID uuid.UUID, t domain.InformationType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.done[screeningID][t]
	return ok
}
