package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
)

// AuditStore is an append-only, hash-chained log of domain.AuditEvents,
// adapted from the teacher's pkg/store.AuditStore: every entry's hash folds
// in the previous entry's hash, so altering or removing a past entry breaks
// every hash after it. There is deliberately no Update or Delete method on
// this type — retention is a policy decision made elsewhere, never a
// structural capability of the store (spec §3, §9).
type AuditStore struct {
	mu        sync.RWMutex
	entries   []chainedEvent
	byID      map[uuid.UUID]chainedEvent
	chainHead string
}

type chainedEvent struct {
	domain.AuditEvent
	PreviousHash string
	EntryHash    string
}

func NewAuditStore() *AuditStore {
	return &AuditStore{
		byID:      make(map[uuid.UUID]chainedEvent),
		chainHead: "genesis",
	}
}

// Append adds a new event to the chain. The event's ID is set if zero.
func (s *AuditStore) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, string, error) {
	if event.ID == uuid.Nil {
		event.ID = domain.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ce := chainedEvent{AuditEvent: event, PreviousHash: s.chainHead}
	hash, err := ce.computeHash()
	if err != nil {
		return domain.AuditEvent{}, "", fmt.Errorf("store: compute audit entry hash: %w", err)
	}
	ce.EntryHash = hash

	s.entries = append(s.entries, ce)
	s.byID[event.ID] = ce
	s.chainHead = hash

	return ce.AuditEvent, hash, nil
}

func (ce chainedEvent) computeHash() (string, error) {
	hashable := struct {
		ID           uuid.UUID
		Type         string
		ResourceType string
		ResourceID   string
		PreviousHash string
	}{
		ID:           ce.ID,
		Type:         ce.Type,
		ResourceType: ce.ResourceType,
		ResourceID:   ce.ResourceID,
		PreviousHash: ce.PreviousHash,
	}
	data, err := json.Marshal(hashable)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// Get retrieves an event by ID.
func (s *AuditStore) Get(ctx context.Context, id uuid.UUID) (*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ce, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	ev := ce.AuditEvent
	return &ev, nil
}

// ChainHead returns the current hash chain head.
func (s *AuditStore) ChainHead() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainHead
}

// VerifyChain recomputes every entry's hash and checks it against both the
// stored hash and the following entry's PreviousHash, failing on the first
// break.
func (s *AuditStore) VerifyChain() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expectedPrev := "genesis"
	for i, ce := range s.entries {
		if ce.PreviousHash != expectedPrev {
			return fmt.Errorf("store: audit chain broken at entry %d: previous hash mismatch", i)
		}
		computed, err := ce.computeHash()
		if err != nil {
			return fmt.Errorf("store: audit chain entry %d: %w", i, err)
		}
		if computed != ce.EntryHash {
			return fmt.Errorf("store: audit chain broken at entry %d: hash mismatch", i)
		}
		expectedPrev = ce.EntryHash
	}
	return nil
}

// Query returns every event matching the filter, in append order.
func (s *AuditStore) Query(filter AuditFilter) []domain.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditEvent
	for _, ce := range s.entries {
		if !filter.matches(ce.AuditEvent) {
			continue
		}
		out = append(out, ce.AuditEvent)
		if filter.MaxResults > 0 && len(out) >= filter.MaxResults {
			break
		}
	}
	return out
}

// AuditFilter narrows a Query call.
type AuditFilter struct {
	TenantID   *uuid.UUID
	Type       string
	ResourceID string
	MaxResults int
}

func (f AuditFilter) matches(e domain.AuditEvent) bool {
	if f.TenantID != nil {
		if e.TenantID == nil || *e.TenantID != *f.TenantID {
			return false
		}
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	return true
}

// Size returns the number of events in the store.
func (s *AuditStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
