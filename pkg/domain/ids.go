// Package domain holds the shared data model from spec.md §3: the
// persistent entities (Tenant, Entity, Identifier, EntityRelation,
// EntityProfile, CachedResponse, AuditEvent) and the in-memory investigation
// model (SubjectIdentifiers, KnowledgeBase, Fact, SearchQuery, QueryResult,
// Finding, SARIterationState).
package domain

import "github.com/google/uuid"

// NewID returns a time-ordered UUIDv7, relied on by dedup and checkpointing
// (spec §3: "natural sort equals creation order").
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the system RNG is broken; fall back to v4
		// rather than panic, since ordering is a performance property here,
		// not a correctness one enforced by this function.
		return uuid.New()
	}
	return id
}

// Older reports whether a is chronologically (and numerically) older than b
// under UUIDv7 ordering — the merge rule in spec §4.2 picks the lower
// UUIDv7 as the canonical survivor.
func Older(a, b uuid.UUID) bool {
	return compareBytes(a, b) < 0
}

func compareBytes(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
