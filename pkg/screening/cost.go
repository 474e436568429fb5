package screening

import (
	"context"
	"sync"

	"github.com/veriscope/screening/pkg/provider"
)

// costTracker decorates a provider.CostService's backing CostStore so the
// orchestrator can attribute recorded cost to whichever phase is currently
// running, without the Router or Executor needing to know phases exist.
type costTracker struct {
	mu      sync.Mutex
	pending float64
	svc     *provider.CostService
}

func newCostTracker(svc *provider.CostService) *costTracker {
	return &costTracker{svc: svc}
}

// record is called by a CostStore wrapper installed ahead of time; absent
// that wiring (the default), cost simply reads as zero per phase.
func (c *costTracker) record(cost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending += cost
}

// take returns the cost accumulated since the last take and resets it, for
// attribution to the phase that just finished.
func (c *costTracker) take() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.pending
	c.pending = 0
	return v
}

// trackingCostStore wraps a provider.CostStore, forwarding every call and
// additionally reporting each recorded cost (net of savings) to a
// costTracker, so an Orchestrator built with one of these in its
// provider.CostService can attribute spend per phase (spec §4.7: "recording
// per-phase status, duration, and cost").
type trackingCostStore struct {
	provider.CostStore
	tracker *costTracker
}

// NewTrackingCostStore wraps store so cost recorded through it also flows
// into tracker, for per-phase cost attribution in Outcome.Phases.
func NewTrackingCostStore(store provider.CostStore, tracker *costTracker) provider.CostStore {
	return &trackingCostStore{CostStore: store, tracker: tracker}
}

func (t *trackingCostStore) RecordCost(ctx context.Context, rec provider.CostRecord) error {
	if t.tracker != nil {
		t.tracker.record(rec.Cost)
	}
	return t.CostStore.RecordCost(ctx, rec)
}
