package monitoring

import (
	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/risk"
)

// connectionRiskChangeThreshold is the minimum propagated-risk change for a
// connection to be reported as new/lost rather than ignored as noise (spec
// §4.9).
const connectionRiskChangeThreshold = 0.2

// ProfileSnapshot is the subset of a compiled screening result the Delta
// Detector diffs against the previous version (spec §4.9).
type ProfileSnapshot struct {
	RiskScore   float64
	RiskLevel   risk.Level
	Findings    []domain.Finding
	Connections []ConnectionSnapshot
}

// ConnectionSnapshot is one discovered entity's propagated risk at the time
// a profile was captured.
type ConnectionSnapshot struct {
	EntityID        uuid.UUID
	Name            string
	PropagatedRisk  float64
}

// DeltaDirection classifies whether a finding delta represents the subject
// looking better (POSITIVE) or worse (NEGATIVE). POSITIVE deltas never
// alert regardless of severity (spec §4.9).
type DeltaDirection string

const (
	DeltaPositive DeltaDirection = "POSITIVE"
	DeltaNegative DeltaDirection = "NEGATIVE"
)

// FindingDeltaKind is how a finding changed between two profile versions.
type FindingDeltaKind string

const (
	FindingNew      FindingDeltaKind = "NEW"
	FindingChanged  FindingDeltaKind = "CHANGED"
	FindingResolved FindingDeltaKind = "RESOLVED"
)

// FindingDelta is one finding's change between profile versions.
type FindingDelta struct {
	Finding          domain.Finding
	Kind             FindingDeltaKind
	PreviousSeverity domain.Severity
	Direction        DeltaDirection
}

// ConnectionDeltaKind is whether a connection appeared or disappeared.
type ConnectionDeltaKind string

const (
	ConnectionNew  ConnectionDeltaKind = "NEW"
	ConnectionLost ConnectionDeltaKind = "LOST"
)

// ConnectionDelta is one connection's appearance/disappearance between
// profile versions, gated by connectionRiskChangeThreshold.
type ConnectionDelta struct {
	Connection ConnectionSnapshot
	Kind       ConnectionDeltaKind
	RiskChange float64
}

// Delta is the Delta Detector's full diff between two profile versions
// (spec §4.9).
type Delta struct {
	PreviousScore float64
	CurrentScore  float64
	ScoreDelta    float64
	PreviousLevel risk.Level
	CurrentLevel  risk.Level
	Findings      []FindingDelta
	Connections   []ConnectionDelta
	Escalate      bool
}

// DeltaDetector diffs two consecutive compiled profiles for a monitored
// subject (spec §4.9).
type DeltaDetector struct{}

func NewDeltaDetector() *DeltaDetector { return &DeltaDetector{} }

// Detect computes the full Delta between prev and curr. Escalate is true if
// any new finding is CRITICAL, the risk level increased, or any finding's
// severity rose to CRITICAL (spec §4.9); a risk-level downgrade is
// recorded on the Delta but never flips Escalate back off on its own — the
// Vigilance Manager's never-auto-downgrade rule is enforced by its own
// Evaluate method, not here.
func (d *DeltaDetector) Detect(prev, curr ProfileSnapshot) Delta {
	out := Delta{
		PreviousScore: prev.RiskScore,
		CurrentScore:  curr.RiskScore,
		ScoreDelta:    curr.RiskScore - prev.RiskScore,
		PreviousLevel: prev.RiskLevel,
		CurrentLevel:  curr.RiskLevel,
	}

	out.Findings = diffFindings(prev.Findings, curr.Findings)
	out.Connections = diffConnections(prev.Connections, curr.Connections)

	if levelRank7(out.CurrentLevel) > levelRank7(out.PreviousLevel) {
		out.Escalate = true
	}
	for _, fd := range out.Findings {
		if fd.Kind == FindingNew && fd.Finding.Severity == domain.SeverityCritical {
			out.Escalate = true
		}
		if fd.Kind == FindingChanged && fd.Finding.Severity == domain.SeverityCritical && fd.PreviousSeverity != domain.SeverityCritical {
			out.Escalate = true
		}
	}

	return out
}

func levelRank7(l risk.Level) int {
	switch l {
	case risk.LevelLow:
		return 0
	case risk.LevelModerate:
		return 1
	case risk.LevelHigh:
		return 2
	case risk.LevelCritical:
		return 3
	default:
		return -1
	}
}

func findingKey(f domain.Finding) string {
	return string(f.Category) + ":" + f.SubCategory + ":" + f.Summary
}

func diffFindings(prev, curr []domain.Finding) []FindingDelta {
	prevByKey := make(map[string]domain.Finding, len(prev))
	for _, f := range prev {
		prevByKey[findingKey(f)] = f
	}
	currByKey := make(map[string]domain.Finding, len(curr))
	for _, f := range curr {
		currByKey[findingKey(f)] = f
	}

	var deltas []FindingDelta
	for key, f := range currByKey {
		prior, existed := prevByKey[key]
		switch {
		case !existed:
			deltas = append(deltas, FindingDelta{Finding: f, Kind: FindingNew, Direction: DeltaNegative})
		case prior.Severity != f.Severity:
			direction := DeltaNegative
			if f.Severity < prior.Severity {
				direction = DeltaPositive
			}
			deltas = append(deltas, FindingDelta{Finding: f, Kind: FindingChanged, PreviousSeverity: prior.Severity, Direction: direction})
		}
	}
	for key, f := range prevByKey {
		if _, stillPresent := currByKey[key]; !stillPresent {
			deltas = append(deltas, FindingDelta{Finding: f, Kind: FindingResolved, PreviousSeverity: f.Severity, Direction: DeltaPositive})
		}
	}
	return deltas
}

func diffConnections(prev, curr []ConnectionSnapshot) []ConnectionDelta {
	prevByID := make(map[uuid.UUID]ConnectionSnapshot, len(prev))
	for _, c := range prev {
		prevByID[c.EntityID] = c
	}
	currByID := make(map[uuid.UUID]ConnectionSnapshot, len(curr))
	for _, c := range curr {
		currByID[c.EntityID] = c
	}

	var deltas []ConnectionDelta
	for id, c := range currByID {
		prior, existed := prevByID[id]
		change := c.PropagatedRisk
		if existed {
			change = c.PropagatedRisk - prior.PropagatedRisk
		}
		if !existed && change >= connectionRiskChangeThreshold {
			deltas = append(deltas, ConnectionDelta{Connection: c, Kind: ConnectionNew, RiskChange: change})
		}
	}
	for id, c := range prevByID {
		if _, stillPresent := currByID[id]; !stillPresent && c.PropagatedRisk >= connectionRiskChangeThreshold {
			deltas = append(deltas, ConnectionDelta{Connection: c, Kind: ConnectionLost, RiskChange: -c.PropagatedRisk})
		}
	}
	return deltas
}
